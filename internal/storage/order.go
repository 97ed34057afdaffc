package storage

import (
	"sort"
	"strings"
	"time"

	"quill/internal/models"
)

// newer orders by creation time, falling back to the id so entities created
// within the same clock tick still sort deterministically.
func newer(aAt time.Time, aID int64, bAt time.Time, bID int64) bool {
	if aAt.Equal(bAt) {
		return aID > bID
	}
	return aAt.After(bAt)
}

func sortPostsNewestFirst(posts []*models.Post) {
	sort.Slice(posts, func(i, j int) bool {
		return newer(posts[i].CreatedAt, posts[i].ID, posts[j].CreatedAt, posts[j].ID)
	})
}

func sortMessagesOldestFirst(msgs []models.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		return newer(msgs[j].CreatedAt, msgs[j].ID, msgs[i].CreatedAt, msgs[i].ID)
	})
}

// collectConversations groups the messages exchanged by userID per
// correspondent, keeping the newest message and the number of unread
// messages the correspondent sent. Only OtherUser.ID is filled in. The
// result is ordered by last message, newest first.
func collectConversations(userID int64, msgs []models.Message) []models.Conversation {
	byOther := map[int64]*models.Conversation{}
	var order []int64
	for _, m := range msgs {
		var other int64
		switch userID {
		case m.SenderID:
			other = m.ReceiverID
		case m.ReceiverID:
			other = m.SenderID
		default:
			continue
		}

		c, ok := byOther[other]
		if !ok {
			c = &models.Conversation{OtherUser: models.AuthorSummary{ID: other}, LastMessage: m}
			byOther[other] = c
			order = append(order, other)
		} else if newer(m.CreatedAt, m.ID, c.LastMessage.CreatedAt, c.LastMessage.ID) {
			c.LastMessage = m
		}
		if m.ReceiverID == userID && m.SenderID == other && !m.Read {
			c.UnreadCount++
		}
	}

	out := make([]models.Conversation, 0, len(order))
	for _, id := range order {
		out = append(out, *byOther[id])
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessage, out[j].LastMessage
		return newer(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return out
}

// topTags returns the TrendingTagLimit most used tags, most used first and
// alphabetical among equal counts.
func topTags(counts map[string]int) []models.TagCount {
	tags := make([]models.TagCount, 0, len(counts))
	for tag, n := range counts {
		tags = append(tags, models.TagCount{Tag: tag, Count: n})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})
	if len(tags) > TrendingTagLimit {
		tags = tags[:TrendingTagLimit]
	}
	return tags
}

// matchesSearch reports whether needle, already lower-cased, occurs in the
// post's title, content or any of its tags.
func matchesSearch(p *models.Post, needle string) bool {
	if strings.Contains(strings.ToLower(p.Title), needle) ||
		strings.Contains(strings.ToLower(p.Content), needle) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

func hasTag(p *models.Post, tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// window applies offset and limit to items. A non-positive limit keeps
// everything after offset.
func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// lastN keeps the final n elements of items.
func lastN[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[len(items)-n:]
	}
	return items
}

func copyTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
