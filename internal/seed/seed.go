// Package seed loads a small demo community into a store.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"quill/internal/auth"
	"quill/internal/models"
	"quill/internal/storage"
)

// DemoPassword is the password of every demo account.
const DemoPassword = "password123"

type demoUser struct {
	username, displayName, bio string
}

type demoPost struct {
	author         int
	title, content string
	tags           []string
	published      bool
}

var (
	users = []demoUser{
		{"alice", "Alice Walker", "Writes about distributed systems."},
		{"bob", "Bob Stone", "Backend engineer, occasional poet."},
		{"carol", "Carol Diaz", "Design, typography and the web."},
	}
	posts = []demoPost{
		{0, "Consensus without tears", "A gentle walk through leader election and log replication.", []string{"distributed-systems", "go"}, true},
		{1, "Channels are not queues", "Why unbuffered channels are a synchronization tool first.", []string{"go", "concurrency"}, true},
		{2, "Choosing a type scale", "Modular scales, line height and reading comfort.", []string{"design", "typography"}, true},
		{1, "Notes on backpressure", "Drafting thoughts on bounded work queues.", []string{"go"}, false},
	}
	follows  = [][2]int{{0, 1}, {1, 0}, {2, 0}}
	likes    = [][2]int{{1, 0}, {2, 0}, {0, 1}}
	comments = []struct {
		user, post int
		text       string
	}{
		{1, 0, "Great overview, the diagrams helped."},
		{2, 1, "This finally made select click for me."},
	}
	messages = []struct {
		from, to int
		text     string
	}{
		{1, 0, "Loved the consensus post!"},
		{0, 1, "Thanks Bob, a follow-up is coming."},
		{2, 0, "Coffee next week?"},
	}
)

// Load creates the demo data. It does nothing when the demo users already
// exist.
func Load(ctx context.Context, store storage.Storage) error {
	_, err := store.GetUserByUsername(ctx, users[0].username)
	if err == nil {
		log.Info().Msg("demo data already present")
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	ids := make([]int64, len(users))
	for i, u := range users {
		bio := u.bio
		created, err := store.CreateUser(ctx, models.NewUser{
			Email:        u.username + "@example.com",
			Username:     u.username,
			PasswordHash: hash,
			DisplayName:  u.displayName,
			Bio:          &bio,
		})
		if err != nil {
			return fmt.Errorf("create user %s: %w", u.username, err)
		}
		ids[i] = created.ID
	}

	postIDs := make([]int64, len(posts))
	for i, p := range posts {
		created, err := store.CreatePost(ctx, models.NewPost{
			Title:     p.title,
			Content:   p.content,
			Excerpt:   p.content,
			AuthorID:  ids[p.author],
			Tags:      p.tags,
			Published: p.published,
		})
		if err != nil {
			return fmt.Errorf("create post %q: %w", p.title, err)
		}
		postIDs[i] = created.ID
	}

	for _, f := range follows {
		if _, err := store.FollowUser(ctx, ids[f[0]], ids[f[1]]); err != nil {
			return fmt.Errorf("follow: %w", err)
		}
	}
	for _, l := range likes {
		if _, err := store.LikePost(ctx, ids[l[0]], postIDs[l[1]]); err != nil {
			return fmt.Errorf("like: %w", err)
		}
	}
	for _, c := range comments {
		_, err := store.CreateComment(ctx, models.NewComment{PostID: postIDs[c.post], UserID: ids[c.user], Content: c.text})
		if err != nil {
			return fmt.Errorf("comment: %w", err)
		}
	}
	for _, m := range messages {
		_, err := store.SendMessage(ctx, models.NewMessage{SenderID: ids[m.from], ReceiverID: ids[m.to], Content: m.text})
		if err != nil {
			return fmt.Errorf("message: %w", err)
		}
	}

	log.Info().Int("users", len(users)).Int("posts", len(posts)).Msg("demo data loaded")
	return nil
}
