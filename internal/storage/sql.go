package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"quill/internal/db"
	"quill/internal/models"
)

// SQLStorage keeps entities in a SQL database (SQLite or Postgres) whose
// schema was created by db.Migrate. Queries are written with '?' and rebound
// to the driver's placeholder style.
type SQLStorage struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLStorage(conn *sqlx.DB) *SQLStorage {
	return &SQLStorage{db: conn, now: func() time.Time { return time.Now().UTC() }}
}

var _ Storage = (*SQLStorage)(nil)

const userColumns = `u.id, u.email, u.username, u.password_hash, u.display_name, u.bio, u.avatar_url, u.created_at`

// postSelect yields one enriched post per row. Its two placeholders are the
// viewer id for is_liked and is_bookmarked.
const postSelect = `SELECT p.id, p.title, p.content, p.excerpt, p.author_id, p.image_url, p.published,
		p.created_at, p.updated_at,
		u.display_name AS author_display_name, u.username AS author_username, u.avatar_url AS author_avatar_url,
		(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id) AS like_count,
		(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
		EXISTS(SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = ?) AS is_liked,
		EXISTS(SELECT 1 FROM bookmarks b WHERE b.post_id = p.id AND b.user_id = ?) AS is_bookmarked
	FROM posts p JOIN users u ON u.id = p.author_id`

// profileSelect yields one profile per row. Its placeholders are the
// published flag for post_count and the viewer id for is_following.
const profileSelect = `SELECT ` + userColumns + `,
		(SELECT COUNT(*) FROM posts p WHERE p.author_id = u.id AND p.published = ?) AS post_count,
		(SELECT COUNT(*) FROM follows f WHERE f.following_id = u.id) AS follower_count,
		(SELECT COUNT(*) FROM follows f WHERE f.follower_id = u.id) AS following_count,
		EXISTS(SELECT 1 FROM follows f WHERE f.follower_id = ? AND f.following_id = u.id) AS is_following
	FROM users u`

const newestPosts = ` ORDER BY p.created_at DESC, p.id DESC`

type postRow struct {
	models.Post
	AuthorDisplayName string  `db:"author_display_name"`
	AuthorUsername    string  `db:"author_username"`
	AuthorAvatarURL   *string `db:"author_avatar_url"`
	LikeCount         int     `db:"like_count"`
	CommentCount      int     `db:"comment_count"`
	IsLiked           bool    `db:"is_liked"`
	IsBookmarked      bool    `db:"is_bookmarked"`
}

func (r postRow) view() models.PostWithAuthor {
	return models.PostWithAuthor{
		Post: r.Post,
		Author: models.AuthorSummary{
			ID:          r.AuthorID,
			DisplayName: r.AuthorDisplayName,
			Username:    r.AuthorUsername,
			AvatarURL:   r.AuthorAvatarURL,
		},
		LikeCount:    r.LikeCount,
		CommentCount: r.CommentCount,
		IsLiked:      r.IsLiked,
		IsBookmarked: r.IsBookmarked,
	}
}

type profileRow struct {
	models.User
	PostCount      int  `db:"post_count"`
	FollowerCount  int  `db:"follower_count"`
	FollowingCount int  `db:"following_count"`
	IsFollowing    bool `db:"is_following"`
}

func (r profileRow) view() models.UserProfile {
	return models.UserProfile{
		User:           r.User,
		PostCount:      r.PostCount,
		FollowerCount:  r.FollowerCount,
		FollowingCount: r.FollowingCount,
		IsFollowing:    r.IsFollowing,
	}
}

func (s *SQLStorage) get(ctx context.Context, dst any, query string, args ...any) error {
	err := s.db.GetContext(ctx, dst, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *SQLStorage) selectAll(ctx context.Context, dst any, query string, args ...any) error {
	return s.db.SelectContext(ctx, dst, s.db.Rebind(query), args...)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	Rebind(query string) string
}

// insert runs an INSERT ... RETURNING id statement.
func insert(ctx context.Context, q queryer, query string, args ...any) (int64, error) {
	var id int64
	err := q.QueryRowxContext(ctx, q.Rebind(query), args...).Scan(&id)
	return id, err
}

// pageClause renders LIMIT/OFFSET. SQLite needs a LIMIT before OFFSET, so an
// unbounded page is spelled LIMIT -1 there.
func (s *SQLStorage) pageClause(limit, offset int) (string, []any) {
	switch {
	case limit > 0 && offset > 0:
		return ` LIMIT ? OFFSET ?`, []any{limit, offset}
	case limit > 0:
		return ` LIMIT ?`, []any{limit}
	case offset > 0 && s.db.DriverName() == db.DriverSQLite:
		return ` LIMIT -1 OFFSET ?`, []any{offset}
	case offset > 0:
		return ` OFFSET ?`, []any{offset}
	}
	return "", nil
}

// isUniqueViolation reports whether err is a unique constraint failure from
// either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// -------- Users

func (s *SQLStorage) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	var taken int
	err := s.get(ctx, &taken, `SELECT COUNT(*) FROM users WHERE email = ? OR username = ?`, in.Email, in.Username)
	if err != nil {
		return nil, errors.Wrap(err, "check user uniqueness")
	}
	if taken > 0 {
		return nil, ErrConflict
	}

	u := &models.User{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		DisplayName:  in.DisplayName,
		Bio:          in.Bio,
		AvatarURL:    in.AvatarURL,
		CreatedAt:    s.now(),
	}
	u.ID, err = insert(ctx, s.db, `INSERT INTO users(email,username,password_hash,display_name,bio,avatar_url,created_at)
		VALUES(?,?,?,?,?,?,?) RETURNING id`,
		u.Email, u.Username, u.PasswordHash, u.DisplayName, u.Bio, u.AvatarURL, u.CreatedAt)
	if isUniqueViolation(err) {
		// lost a race with a concurrent registration
		return nil, ErrConflict
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	return u, nil
}

func (s *SQLStorage) getUserBy(ctx context.Context, column string, v any) (*models.User, error) {
	var u models.User
	err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users u WHERE u.`+column+` = ?`, v)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "get user by %s", column)
	}
	return &u, nil
}

func (s *SQLStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.getUserBy(ctx, "id", id)
}

func (s *SQLStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserBy(ctx, "email", email)
}

func (s *SQLStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUserBy(ctx, "username", username)
}

func (s *SQLStorage) UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
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
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET display_name = ?, bio = ?, avatar_url = ? WHERE id = ?`),
		u.DisplayName, u.Bio, u.AvatarURL, id)
	if err != nil {
		return nil, errors.Wrap(err, "update user")
	}
	return u, nil
}

func (s *SQLStorage) GetUserProfile(ctx context.Context, id, viewerID int64) (*models.UserProfile, error) {
	var row profileRow
	err := s.get(ctx, &row, profileSelect+` WHERE u.id = ?`, true, viewerID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "get profile")
	}
	p := row.view()
	return &p, nil
}

func (s *SQLStorage) GetSuggestedAuthors(ctx context.Context, userID int64, limit int) ([]models.UserProfile, error) {
	page, pageArgs := s.pageClause(limit, 0)
	args := append([]any{true, userID, userID}, pageArgs...)
	var rows []profileRow
	if err := s.selectAll(ctx, &rows, profileSelect+` WHERE u.id <> ? ORDER BY u.id`+page, args...); err != nil {
		return nil, errors.Wrap(err, "suggested authors")
	}
	return profiles(rows), nil
}

func profiles(rows []profileRow) []models.UserProfile {
	out := make([]models.UserProfile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.view())
	}
	return out
}

// -------- Posts

func (s *SQLStorage) GetPosts(ctx context.Context, q models.PostQuery) ([]models.PostWithAuthor, error) {
	where := ` WHERE p.published = ?`
	args := []any{q.ViewerID, q.ViewerID, true}
	page := ""

	switch {
	case q.Search != "":
		// SQLite's LOWER and LIKE only fold ASCII, so matching happens here
		// with the same rules as the memory store.
		posts, err := s.queryPosts(ctx, postSelect+where+newestPosts, args...)
		if err != nil {
			return nil, err
		}
		needle := strings.ToLower(q.Search)
		found := posts[:0]
		for _, p := range posts {
			if matchesSearch(&p.Post, needle) {
				found = append(found, p)
			}
		}
		return found, nil
	case q.Tag != "":
		where += ` AND EXISTS(SELECT 1 FROM post_tags t WHERE t.post_id = p.id AND t.tag = ?)`
		args = append(args, q.Tag)
	case q.AuthorID != 0:
		where += ` AND p.author_id = ?`
		args = append(args, q.AuthorID)
	default:
		var pageArgs []any
		page, pageArgs = s.pageClause(q.Limit, q.Offset)
		args = append(args, pageArgs...)
	}

	return s.queryPosts(ctx, postSelect+where+newestPosts+page, args...)
}

func (s *SQLStorage) queryPosts(ctx context.Context, query string, args ...any) ([]models.PostWithAuthor, error) {
	var rows []postRow
	if err := s.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "query posts")
	}
	out := make([]models.PostWithAuthor, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.view())
	}
	if err := s.attachTags(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStorage) attachTags(ctx context.Context, posts []models.PostWithAuthor) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]int64, len(posts))
	byID := make(map[int64]*models.PostWithAuthor, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
		posts[i].Tags = []string{}
		byID[posts[i].ID] = &posts[i]
	}

	query, args, err := sqlx.In(`SELECT post_id, tag FROM post_tags WHERE post_id IN (?) ORDER BY post_id, position`, ids)
	if err != nil {
		return errors.Wrap(err, "build tag query")
	}
	var tags []struct {
		PostID int64  `db:"post_id"`
		Tag    string `db:"tag"`
	}
	if err := s.selectAll(ctx, &tags, query, args...); err != nil {
		return errors.Wrap(err, "load tags")
	}
	for _, t := range tags {
		p := byID[t.PostID]
		p.Tags = append(p.Tags, t.Tag)
	}
	return nil
}

func (s *SQLStorage) GetPost(ctx context.Context, id, viewerID int64) (*models.PostWithAuthor, error) {
	posts, err := s.queryPosts(ctx, postSelect+` WHERE p.id = ?`, viewerID, viewerID, id)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrNotFound
	}
	return &posts[0], nil
}

func (s *SQLStorage) GetFeed(ctx context.Context, userID int64, limit, offset int) ([]models.PostWithAuthor, error) {
	page, pageArgs := s.pageClause(limit, offset)
	args := append([]any{userID, userID, true, userID}, pageArgs...)
	return s.queryPosts(ctx, postSelect+` WHERE p.published = ?
		AND p.author_id IN (SELECT following_id FROM follows WHERE follower_id = ?)`+newestPosts+page, args...)
}

func (s *SQLStorage) CreatePost(ctx context.Context, in models.NewPost) (*models.Post, error) {
	now := s.now()
	p := &models.Post{
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

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		p.ID, err = insert(ctx, tx, `INSERT INTO posts(title,content,excerpt,author_id,image_url,published,created_at,updated_at)
			VALUES(?,?,?,?,?,?,?,?) RETURNING id`,
			p.Title, p.Content, p.Excerpt, p.AuthorID, p.ImageURL, p.Published, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "insert post")
		}
		return writeTags(ctx, tx, p.ID, p.Tags)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func writeTags(ctx context.Context, tx *sqlx.Tx, postID int64, tags []string) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM post_tags WHERE post_id = ?`), postID); err != nil {
		return errors.Wrap(err, "clear tags")
	}
	for i, t := range tags {
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO post_tags(post_id,position,tag) VALUES(?,?,?)`), postID, i, t)
		if err != nil {
			return errors.Wrap(err, "insert tag")
		}
	}
	return nil
}

func (s *SQLStorage) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (s *SQLStorage) ownedPost(ctx context.Context, id, userID int64) (*models.Post, error) {
	var p models.Post
	err := s.get(ctx, &p, `SELECT id, title, content, excerpt, author_id, image_url, published, created_at, updated_at
		FROM posts WHERE id = ? AND author_id = ?`, id, userID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLStorage) UpdatePost(ctx context.Context, id, userID int64, upd models.PostUpdate) (*models.Post, bool, error) {
	p, err := s.ownedPost(ctx, id, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Wrap(err, "load post")
	}

	p.Tags = []string{}
	if err := s.selectAll(ctx, &p.Tags, `SELECT tag FROM post_tags WHERE post_id = ? ORDER BY position`, id); err != nil {
		return nil, false, errors.Wrap(err, "load tags")
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
	if upd.Published != nil {
		p.Published = *upd.Published
	}
	p.UpdatedAt = s.now()

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE posts SET title = ?, content = ?, excerpt = ?, image_url = ?,
			published = ?, updated_at = ? WHERE id = ?`),
			p.Title, p.Content, p.Excerpt, p.ImageURL, p.Published, p.UpdatedAt, p.ID)
		if err != nil {
			return errors.Wrap(err, "update post")
		}
		if upd.Tags != nil {
			p.Tags = copyTags(*upd.Tags)
			return writeTags(ctx, tx, p.ID, p.Tags)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// DeletePost removes the post along with its tags, likes, comments and
// bookmarks.
func (s *SQLStorage) DeletePost(ctx context.Context, id, userID int64) (bool, error) {
	deleted := false
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM posts WHERE id = ? AND author_id = ?`), id, userID)
		if err != nil {
			return errors.Wrap(err, "delete post")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "rows affected")
		}
		if n == 0 {
			return nil
		}
		deleted = true
		for _, table := range []string{"post_tags", "likes", "comments", "bookmarks"} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE post_id = ?`), id); err != nil {
				return errors.Wrapf(err, "delete %s", table)
			}
		}
		return nil
	})
	return deleted, err
}

func (s *SQLStorage) GetTrendingTags(ctx context.Context) ([]models.TagCount, error) {
	var tags []models.TagCount
	err := s.selectAll(ctx, &tags, `SELECT t.tag AS tag, COUNT(*) AS count
		FROM post_tags t JOIN posts p ON p.id = t.post_id
		WHERE p.published = ?
		GROUP BY t.tag
		ORDER BY count DESC, t.tag ASC
		LIMIT ?`, true, TrendingTagLimit)
	if err != nil {
		return nil, errors.Wrap(err, "trending tags")
	}
	if tags == nil {
		tags = []models.TagCount{}
	}
	return tags, nil
}

// -------- Likes & bookmarks

// upsertPair inserts a (user, post) relation unless it exists, then returns
// the stored row.
func (s *SQLStorage) upsertPair(ctx context.Context, dst any, table string, userID, postID int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO `+table+`(user_id,post_id,created_at) VALUES(?,?,?)
		ON CONFLICT(user_id, post_id) DO NOTHING`), userID, postID, s.now())
	if err != nil {
		return errors.Wrapf(err, "insert into %s", table)
	}
	err = s.get(ctx, dst, `SELECT id, user_id, post_id, created_at FROM `+table+` WHERE user_id = ? AND post_id = ?`, userID, postID)
	return errors.Wrapf(err, "load from %s", table)
}

func (s *SQLStorage) deletePair(ctx context.Context, table string, userID, postID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM `+table+` WHERE user_id = ? AND post_id = ?`), userID, postID)
	if err != nil {
		return false, errors.Wrapf(err, "delete from %s", table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func (s *SQLStorage) LikePost(ctx context.Context, userID, postID int64) (*models.Like, error) {
	var l models.Like
	if err := s.upsertPair(ctx, &l, "likes", userID, postID); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *SQLStorage) UnlikePost(ctx context.Context, userID, postID int64) (bool, error) {
	return s.deletePair(ctx, "likes", userID, postID)
}

func (s *SQLStorage) BookmarkPost(ctx context.Context, userID, postID int64) (*models.Bookmark, error) {
	var b models.Bookmark
	if err := s.upsertPair(ctx, &b, "bookmarks", userID, postID); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *SQLStorage) UnbookmarkPost(ctx context.Context, userID, postID int64) (bool, error) {
	return s.deletePair(ctx, "bookmarks", userID, postID)
}

func (s *SQLStorage) GetBookmarkedPosts(ctx context.Context, userID int64) ([]models.PostWithAuthor, error) {
	return s.queryPosts(ctx, postSelect+` JOIN bookmarks bm ON bm.post_id = p.id
		WHERE bm.user_id = ? AND (p.published = ? OR p.author_id = ?)
		ORDER BY bm.created_at DESC, bm.id DESC`, userID, userID, userID, true, userID)
}

// -------- Comments

func (s *SQLStorage) GetComments(ctx context.Context, postID int64) ([]models.CommentWithAuthor, error) {
	var rows []struct {
		models.Comment
		DisplayName string  `db:"display_name"`
		Username    string  `db:"username"`
		AvatarURL   *string `db:"avatar_url"`
	}
	err := s.selectAll(ctx, &rows, `SELECT c.id, c.post_id, c.user_id, c.content, c.created_at,
			u.display_name, u.username, u.avatar_url
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ?
		ORDER BY c.created_at, c.id`, postID)
	if err != nil {
		return nil, errors.Wrap(err, "get comments")
	}
	out := make([]models.CommentWithAuthor, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.CommentWithAuthor{
			Comment: r.Comment,
			Author:  models.AuthorSummary{ID: r.UserID, DisplayName: r.DisplayName, Username: r.Username, AvatarURL: r.AvatarURL},
		})
	}
	return out, nil
}

func (s *SQLStorage) CreateComment(ctx context.Context, in models.NewComment) (*models.Comment, error) {
	c := &models.Comment{PostID: in.PostID, UserID: in.UserID, Content: in.Content, CreatedAt: s.now()}
	var err error
	c.ID, err = insert(ctx, s.db, `INSERT INTO comments(post_id,user_id,content,created_at) VALUES(?,?,?,?) RETURNING id`,
		c.PostID, c.UserID, c.Content, c.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert comment")
	}
	return c, nil
}

func (s *SQLStorage) DeleteComment(ctx context.Context, id, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM comments WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return false, errors.Wrap(err, "delete comment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

// -------- Social graph

func (s *SQLStorage) FollowUser(ctx context.Context, followerID, followingID int64) (*models.Follow, error) {
	if followerID == followingID {
		return nil, ErrSelfFollow
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO follows(follower_id,following_id,created_at) VALUES(?,?,?)
		ON CONFLICT(follower_id, following_id) DO NOTHING`), followerID, followingID, s.now())
	if err != nil {
		return nil, errors.Wrap(err, "insert follow")
	}
	var f models.Follow
	err = s.get(ctx, &f, `SELECT id, follower_id, following_id, created_at FROM follows
		WHERE follower_id = ? AND following_id = ?`, followerID, followingID)
	if err != nil {
		return nil, errors.Wrap(err, "load follow")
	}
	return &f, nil
}

func (s *SQLStorage) UnfollowUser(ctx context.Context, followerID, followingID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM follows WHERE follower_id = ? AND following_id = ?`),
		followerID, followingID)
	if err != nil {
		return false, errors.Wrap(err, "delete follow")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func (s *SQLStorage) IsFollowing(ctx context.Context, followerID, followingID int64) (bool, error) {
	var n int
	err := s.get(ctx, &n, `SELECT COUNT(*) FROM follows WHERE follower_id = ? AND following_id = ?`, followerID, followingID)
	if err != nil {
		return false, errors.Wrap(err, "is following")
	}
	return n > 0, nil
}

func (s *SQLStorage) GetFollowers(ctx context.Context, userID, viewerID int64) ([]models.UserProfile, error) {
	var rows []profileRow
	err := s.selectAll(ctx, &rows, profileSelect+` JOIN follows r ON r.follower_id = u.id
		WHERE r.following_id = ? ORDER BY r.created_at DESC, r.id DESC`, true, viewerID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get followers")
	}
	return profiles(rows), nil
}

func (s *SQLStorage) GetFollowing(ctx context.Context, userID, viewerID int64) ([]models.UserProfile, error) {
	var rows []profileRow
	err := s.selectAll(ctx, &rows, profileSelect+` JOIN follows r ON r.following_id = u.id
		WHERE r.follower_id = ? ORDER BY r.created_at DESC, r.id DESC`, true, viewerID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get following")
	}
	return profiles(rows), nil
}

// -------- Messages

const messageColumns = `id, sender_id, receiver_id, content, is_read, created_at`

func (s *SQLStorage) SendMessage(ctx context.Context, in models.NewMessage) (*models.Message, error) {
	m := &models.Message{SenderID: in.SenderID, ReceiverID: in.ReceiverID, Content: in.Content, CreatedAt: s.now()}
	var err error
	m.ID, err = insert(ctx, s.db, `INSERT INTO messages(sender_id,receiver_id,content,is_read,created_at)
		VALUES(?,?,?,?,?) RETURNING id`, m.SenderID, m.ReceiverID, m.Content, false, m.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert message")
	}
	return m, nil
}

func (s *SQLStorage) GetConversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	var msgs []models.Message
	err := s.selectAll(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE sender_id = ? OR receiver_id = ?`, userID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load messages")
	}
	convs := collectConversations(userID, msgs)
	if len(convs) == 0 {
		return convs, nil
	}

	ids := make([]int64, len(convs))
	for i, c := range convs {
		ids[i] = c.OtherUser.ID
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users u WHERE u.id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "build user query")
	}
	var users []models.User
	if err := s.selectAll(ctx, &users, query, args...); err != nil {
		return nil, errors.Wrap(err, "load correspondents")
	}
	byID := make(map[int64]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for i := range convs {
		if u, ok := byID[convs[i].OtherUser.ID]; ok {
			convs[i].OtherUser = models.SummaryOf(u)
		}
	}
	return convs, nil
}

func (s *SQLStorage) GetMessages(ctx context.Context, userID, otherID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	msgs := []models.Message{}
	err := s.selectAll(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, otherID, otherID, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "get messages")
	}
	sortMessagesOldestFirst(msgs)
	return msgs, nil
}

func (s *SQLStorage) MarkMessagesAsRead(ctx context.Context, userID, otherID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE messages SET is_read = ?
		WHERE sender_id = ? AND receiver_id = ? AND is_read = ?`), true, otherID, userID, false)
	if err != nil {
		return false, errors.Wrap(err, "mark read")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func (s *SQLStorage) GetUnreadMessageCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.get(ctx, &n, `SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND is_read = ?`, userID, false)
	if err != nil {
		return 0, errors.Wrap(err, "unread count")
	}
	return n, nil
}
