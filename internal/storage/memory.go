package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"quill/internal/models"
)

// pair keys the uniqueness indices: (user, post) for likes and bookmarks,
// (follower, following) for follows.
type pair struct{ a, b int64 }

// MemStorage keeps all entities in process memory. Data lives as long as the
// value does. It is safe for concurrent use.
type MemStorage struct {
	mu  sync.RWMutex
	now func() time.Time

	users     map[int64]*models.User
	posts     map[int64]*models.Post
	likes     map[int64]*models.Like
	comments  map[int64]*models.Comment
	bookmarks map[int64]*models.Bookmark
	follows   map[int64]*models.Follow
	messages  map[int64]*models.Message

	userByEmail    map[string]int64
	userByUsername map[string]int64
	likeIdx        map[pair]int64
	bookmarkIdx    map[pair]int64
	followIdx      map[pair]int64
	likeCount      map[int64]int
	commentCount   map[int64]int
	followerCount  map[int64]int
	followingCount map[int64]int

	seq struct {
		user, post, like, comment, bookmark, follow, message int64
	}
}

type MemOption func(*MemStorage)

// WithClock replaces the time source used to stamp new entities.
func WithClock(now func() time.Time) MemOption {
	return func(s *MemStorage) { s.now = now }
}

func NewMemStorage(opts ...MemOption) *MemStorage {
	s := &MemStorage{
		now:            func() time.Time { return time.Now().UTC() },
		users:          map[int64]*models.User{},
		posts:          map[int64]*models.Post{},
		likes:          map[int64]*models.Like{},
		comments:       map[int64]*models.Comment{},
		bookmarks:      map[int64]*models.Bookmark{},
		follows:        map[int64]*models.Follow{},
		messages:       map[int64]*models.Message{},
		userByEmail:    map[string]int64{},
		userByUsername: map[string]int64{},
		likeIdx:        map[pair]int64{},
		bookmarkIdx:    map[pair]int64{},
		followIdx:      map[pair]int64{},
		likeCount:      map[int64]int{},
		commentCount:   map[int64]int{},
		followerCount:  map[int64]int{},
		followingCount: map[int64]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Storage = (*MemStorage)(nil)

// -------- Users

func (s *MemStorage) CreateUser(_ context.Context, in models.NewUser) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.userByEmail[in.Email]; ok {
		return nil, ErrConflict
	}
	if _, ok := s.userByUsername[in.Username]; ok {
		return nil, ErrConflict
	}

	s.seq.user++
	u := &models.User{
		ID:           s.seq.user,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		DisplayName:  in.DisplayName,
		Bio:          in.Bio,
		AvatarURL:    in.AvatarURL,
		CreatedAt:    s.now(),
	}
	s.users[u.ID] = u
	s.userByEmail[u.Email] = u.ID
	s.userByUsername[u.Username] = u.ID
	cp := *u
	return &cp, nil
}

func (s *MemStorage) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userCopy(id)
}

func (s *MemStorage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userByEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return s.userCopy(id)
}

func (s *MemStorage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userByUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	return s.userCopy(id)
}

func (s *MemStorage) userCopy(id int64) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemStorage) UpdateUser(_ context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.Bio != nil {
		u.Bio = upd.Bio
	}
	if upd.AvatarURL != nil {
		u.AvatarURL = upd.AvatarURL
	}
	cp := *u
	return &cp, nil
}

func (s *MemStorage) GetUserProfile(_ context.Context, id, viewerID int64) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	p := s.profileLocked(u, viewerID)
	return &p, nil
}

func (s *MemStorage) profileLocked(u *models.User, viewerID int64) models.UserProfile {
	posts := 0
	for _, p := range s.posts {
		if p.AuthorID == u.ID && p.Published {
			posts++
		}
	}
	_, following := s.followIdx[pair{viewerID, u.ID}]
	return models.UserProfile{
		User:           *u,
		PostCount:      posts,
		FollowerCount:  s.followerCount[u.ID],
		FollowingCount: s.followingCount[u.ID],
		IsFollowing:    viewerID != 0 && following,
	}
}

// GetSuggestedAuthors returns up to limit users other than userID in
// registration order.
func (s *MemStorage) GetSuggestedAuthors(_ context.Context, userID int64, limit int) ([]models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		if id != userID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ids = window(ids, 0, limit)

	out := make([]models.UserProfile, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.profileLocked(s.users[id], userID))
	}
	return out, nil
}

// -------- Posts

func (s *MemStorage) GetPosts(_ context.Context, q models.PostQuery) ([]models.PostWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var match func(*models.Post) bool
	paged := false
	switch {
	case q.Search != "":
		needle := strings.ToLower(q.Search)
		match = func(p *models.Post) bool { return matchesSearch(p, needle) }
	case q.Tag != "":
		match = func(p *models.Post) bool { return hasTag(p, q.Tag) }
	case q.AuthorID != 0:
		match = func(p *models.Post) bool { return p.AuthorID == q.AuthorID }
	default:
		match = func(*models.Post) bool { return true }
		paged = true
	}

	var posts []*models.Post
	for _, p := range s.posts {
		if p.Published && match(p) {
			posts = append(posts, p)
		}
	}
	sortPostsNewestFirst(posts)
	if paged {
		posts = window(posts, q.Offset, q.Limit)
	}
	return s.enrichAllLocked(posts, q.ViewerID), nil
}

func (s *MemStorage) GetPost(_ context.Context, id, viewerID int64) (*models.PostWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := s.enrichLocked(p, viewerID)
	return &out, nil
}

// GetFeed lists published posts by the authors userID follows.
func (s *MemStorage) GetFeed(_ context.Context, userID int64, limit, offset int) ([]models.PostWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var posts []*models.Post
	for _, p := range s.posts {
		if _, ok := s.followIdx[pair{userID, p.AuthorID}]; ok && p.Published {
			posts = append(posts, p)
		}
	}
	sortPostsNewestFirst(posts)
	return s.enrichAllLocked(window(posts, offset, limit), userID), nil
}

func (s *MemStorage) enrichLocked(p *models.Post, viewerID int64) models.PostWithAuthor {
	out := models.PostWithAuthor{
		Post:         *p,
		Author:       models.AuthorSummary{ID: p.AuthorID},
		LikeCount:    s.likeCount[p.ID],
		CommentCount: s.commentCount[p.ID],
	}
	out.Tags = copyTags(p.Tags)
	if a, ok := s.users[p.AuthorID]; ok {
		out.Author = models.SummaryOf(a)
	}
	if viewerID != 0 {
		_, out.IsLiked = s.likeIdx[pair{viewerID, p.ID}]
		_, out.IsBookmarked = s.bookmarkIdx[pair{viewerID, p.ID}]
	}
	return out
}

func (s *MemStorage) enrichAllLocked(posts []*models.Post, viewerID int64) []models.PostWithAuthor {
	out := make([]models.PostWithAuthor, 0, len(posts))
	for _, p := range posts {
		out = append(out, s.enrichLocked(p, viewerID))
	}
	return out
}

func (s *MemStorage) CreatePost(_ context.Context, in models.NewPost) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq.post++
	now := s.now()
	p := &models.Post{
		ID:        s.seq.post,
		Title:     in.Title,
		Content:   in.Content,
		Excerpt:   in.Excerpt,
		AuthorID:  in.AuthorID,
		ImageURL:  in.ImageURL,
		Tags:      copyTags(in.Tags),
		Published: in.Published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.posts[p.ID] = p
	return s.postCopy(p), nil
}

func (s *MemStorage) postCopy(p *models.Post) *models.Post {
	cp := *p
	cp.Tags = copyTags(p.Tags)
	return &cp
}

func (s *MemStorage) UpdatePost(_ context.Context, id, userID int64, upd models.PostUpdate) (*models.Post, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok || p.AuthorID != userID {
		return nil, false, nil
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Content != nil {
		p.Content = *upd.Content
	}
	if upd.Excerpt != nil {
		p.Excerpt = *upd.Excerpt
	}
	if upd.ImageURL != nil {
		p.ImageURL = upd.ImageURL
	}
	if upd.Tags != nil {
		p.Tags = copyTags(*upd.Tags)
	}
	if upd.Published != nil {
		p.Published = *upd.Published
	}
	p.UpdatedAt = s.now()
	return s.postCopy(p), true, nil
}

// DeletePost removes the post along with its likes, comments and bookmarks.
func (s *MemStorage) DeletePost(_ context.Context, id, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok || p.AuthorID != userID {
		return false, nil
	}
	delete(s.posts, id)

	for lid, l := range s.likes {
		if l.PostID == id {
			delete(s.likes, lid)
			delete(s.likeIdx, pair{l.UserID, id})
		}
	}
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	for bid, b := range s.bookmarks {
		if b.PostID == id {
			delete(s.bookmarks, bid)
			delete(s.bookmarkIdx, pair{b.UserID, id})
		}
	}
	delete(s.likeCount, id)
	delete(s.commentCount, id)
	return true, nil
}

func (s *MemStorage) GetTrendingTags(_ context.Context) ([]models.TagCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int{}
	for _, p := range s.posts {
		if !p.Published {
			continue
		}
		for _, t := range p.Tags {
			counts[t]++
		}
	}
	return topTags(counts), nil
}

// -------- Likes & bookmarks

// LikePost records that userID likes postID. Liking twice returns the
// existing like.
func (s *MemStorage) LikePost(_ context.Context, userID, postID int64) (*models.Like, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pair{userID, postID}
	if id, ok := s.likeIdx[key]; ok {
		cp := *s.likes[id]
		return &cp, nil
	}
	s.seq.like++
	l := &models.Like{ID: s.seq.like, UserID: userID, PostID: postID, CreatedAt: s.now()}
	s.likes[l.ID] = l
	s.likeIdx[key] = l.ID
	s.likeCount[postID]++
	cp := *l
	return &cp, nil
}

func (s *MemStorage) UnlikePost(_ context.Context, userID, postID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pair{userID, postID}
	id, ok := s.likeIdx[key]
	if !ok {
		return false, nil
	}
	delete(s.likes, id)
	delete(s.likeIdx, key)
	s.likeCount[postID]--
	return true, nil
}

func (s *MemStorage) BookmarkPost(_ context.Context, userID, postID int64) (*models.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pair{userID, postID}
	if id, ok := s.bookmarkIdx[key]; ok {
		cp := *s.bookmarks[id]
		return &cp, nil
	}
	s.seq.bookmark++
	b := &models.Bookmark{ID: s.seq.bookmark, UserID: userID, PostID: postID, CreatedAt: s.now()}
	s.bookmarks[b.ID] = b
	s.bookmarkIdx[key] = b.ID
	cp := *b
	return &cp, nil
}

func (s *MemStorage) UnbookmarkPost(_ context.Context, userID, postID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pair{userID, postID}
	id, ok := s.bookmarkIdx[key]
	if !ok {
		return false, nil
	}
	delete(s.bookmarks, id)
	delete(s.bookmarkIdx, key)
	return true, nil
}

// GetBookmarkedPosts lists the posts userID bookmarked, most recently
// bookmarked first. Unpublished posts are only listed for their author.
func (s *MemStorage) GetBookmarkedPosts(_ context.Context, userID int64) ([]models.PostWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var marks []*models.Bookmark
	for _, b := range s.bookmarks {
		if b.UserID == userID {
			marks = append(marks, b)
		}
	}
	sort.Slice(marks, func(i, j int) bool {
		return newer(marks[i].CreatedAt, marks[i].ID, marks[j].CreatedAt, marks[j].ID)
	})

	out := make([]models.PostWithAuthor, 0, len(marks))
	for _, b := range marks {
		p, ok := s.posts[b.PostID]
		if !ok || (!p.Published && p.AuthorID != userID) {
			continue
		}
		out = append(out, s.enrichLocked(p, userID))
	}
	return out, nil
}

// -------- Comments

func (s *MemStorage) GetComments(_ context.Context, postID int64) ([]models.CommentWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.CommentWithAuthor{}
	for _, c := range s.comments {
		if c.PostID != postID {
			continue
		}
		cw := models.CommentWithAuthor{Comment: *c, Author: models.AuthorSummary{ID: c.UserID}}
		if u, ok := s.users[c.UserID]; ok {
			cw.Author = models.SummaryOf(u)
		}
		out = append(out, cw)
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID)
	})
	return out, nil
}

func (s *MemStorage) CreateComment(_ context.Context, in models.NewComment) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq.comment++
	c := &models.Comment{
		ID:        s.seq.comment,
		PostID:    in.PostID,
		UserID:    in.UserID,
		Content:   in.Content,
		CreatedAt: s.now(),
	}
	s.comments[c.ID] = c
	s.commentCount[c.PostID]++
	cp := *c
	return &cp, nil
}

func (s *MemStorage) DeleteComment(_ context.Context, id, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(s.comments, id)
	s.commentCount[c.PostID]--
	return true, nil
}

// -------- Social graph

func (s *MemStorage) FollowUser(_ context.Context, followerID, followingID int64) (*models.Follow, error) {
	if followerID == followingID {
		return nil, ErrSelfFollow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pair{followerID, followingID}
	if id, ok := s.followIdx[key]; ok {
		cp := *s.follows[id]
		return &cp, nil
	}
	s.seq.follow++
	f := &models.Follow{ID: s.seq.follow, FollowerID: followerID, FollowingID: followingID, CreatedAt: s.now()}
	s.follows[f.ID] = f
	s.followIdx[key] = f.ID
	s.followerCount[followingID]++
	s.followingCount[followerID]++
	cp := *f
	return &cp, nil
}

func (s *MemStorage) UnfollowUser(_ context.Context, followerID, followingID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pair{followerID, followingID}
	id, ok := s.followIdx[key]
	if !ok {
		return false, nil
	}
	delete(s.follows, id)
	delete(s.followIdx, key)
	s.followerCount[followingID]--
	s.followingCount[followerID]--
	return true, nil
}

func (s *MemStorage) IsFollowing(_ context.Context, followerID, followingID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.followIdx[pair{followerID, followingID}]
	return ok, nil
}

func (s *MemStorage) GetFollowers(_ context.Context, userID, viewerID int64) ([]models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relatedLocked(viewerID, func(f *models.Follow) (int64, bool) {
		return f.FollowerID, f.FollowingID == userID
	}), nil
}

func (s *MemStorage) GetFollowing(_ context.Context, userID, viewerID int64) ([]models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relatedLocked(viewerID, func(f *models.Follow) (int64, bool) {
		return f.FollowingID, f.FollowerID == userID
	}), nil
}

// relatedLocked collects the profiles on the far side of the follows selected
// by pick, newest relation first.
func (s *MemStorage) relatedLocked(viewerID int64, pick func(*models.Follow) (int64, bool)) []models.UserProfile {
	var rel []*models.Follow
	for _, f := range s.follows {
		if _, ok := pick(f); ok {
			rel = append(rel, f)
		}
	}
	sort.Slice(rel, func(i, j int) bool {
		return newer(rel[i].CreatedAt, rel[i].ID, rel[j].CreatedAt, rel[j].ID)
	})

	out := make([]models.UserProfile, 0, len(rel))
	for _, f := range rel {
		id, _ := pick(f)
		if u, ok := s.users[id]; ok {
			out = append(out, s.profileLocked(u, viewerID))
		}
	}
	return out
}

// -------- Messages

func (s *MemStorage) SendMessage(_ context.Context, in models.NewMessage) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq.message++
	m := &models.Message{
		ID:         s.seq.message,
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Content:    in.Content,
		CreatedAt:  s.now(),
	}
	s.messages[m.ID] = m
	cp := *m
	return &cp, nil
}

func (s *MemStorage) GetConversations(_ context.Context, userID int64) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mine []models.Message
	for _, m := range s.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			mine = append(mine, *m)
		}
	}
	convs := collectConversations(userID, mine)
	for i := range convs {
		if u, ok := s.users[convs[i].OtherUser.ID]; ok {
			convs[i].OtherUser = models.SummaryOf(u)
		}
	}
	return convs, nil
}

// GetMessages returns the history between userID and otherID, oldest first,
// keeping only the latest limit messages.
func (s *MemStorage) GetMessages(_ context.Context, userID, otherID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Message{}
	for _, m := range s.messages {
		if (m.SenderID == userID && m.ReceiverID == otherID) ||
			(m.SenderID == otherID && m.ReceiverID == userID) {
			out = append(out, *m)
		}
	}
	sortMessagesOldestFirst(out)
	return lastN(out, limit), nil
}

func (s *MemStorage) MarkMessagesAsRead(_ context.Context, userID, otherID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, m := range s.messages {
		if m.SenderID == otherID && m.ReceiverID == userID && !m.Read {
			m.Read = true
			changed = true
		}
	}
	return changed, nil
}

func (s *MemStorage) GetUnreadMessageCount(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, m := range s.messages {
		if m.ReceiverID == userID && !m.Read {
			n++
		}
	}
	return n, nil
}
