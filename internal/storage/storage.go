// Package storage holds every domain entity of the blog and assembles the
// derived read models (enriched posts, profiles, conversations) at query time.
//
// Storage is the capability set; MemStorage keeps everything in process
// memory and SQLStorage keeps it in a SQL database. Both honour the same
// contract:
//
//   - lookups of a missing entity return ErrNotFound;
//   - ownership-gated mutations return false when the acting user does not
//     own the resource or it does not exist, without telling the two apart;
//   - FollowUser with the same follower and target returns ErrSelfFollow.
//
// Any other error reports a backend failure. A viewerID of 0 means "no
// viewer": viewer-relative flags are then false.
package storage

import (
	"context"
	"errors"

	"quill/internal/models"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrSelfFollow = errors.New("users cannot follow themselves")
	ErrConflict   = errors.New("email or username already taken")
)

const (
	TrendingTagLimit    = 10
	DefaultMessageLimit = 50
)

type Storage interface {
	// Users
	CreateUser(ctx context.Context, u models.NewUser) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error)
	GetUserProfile(ctx context.Context, id, viewerID int64) (*models.UserProfile, error)
	GetSuggestedAuthors(ctx context.Context, userID int64, limit int) ([]models.UserProfile, error)

	// Posts
	GetPosts(ctx context.Context, q models.PostQuery) ([]models.PostWithAuthor, error)
	GetPost(ctx context.Context, id, viewerID int64) (*models.PostWithAuthor, error)
	GetFeed(ctx context.Context, userID int64, limit, offset int) ([]models.PostWithAuthor, error)
	CreatePost(ctx context.Context, p models.NewPost) (*models.Post, error)
	UpdatePost(ctx context.Context, id, userID int64, upd models.PostUpdate) (*models.Post, bool, error)
	DeletePost(ctx context.Context, id, userID int64) (bool, error)
	GetTrendingTags(ctx context.Context) ([]models.TagCount, error)

	// Likes and bookmarks
	LikePost(ctx context.Context, userID, postID int64) (*models.Like, error)
	UnlikePost(ctx context.Context, userID, postID int64) (bool, error)
	BookmarkPost(ctx context.Context, userID, postID int64) (*models.Bookmark, error)
	UnbookmarkPost(ctx context.Context, userID, postID int64) (bool, error)
	GetBookmarkedPosts(ctx context.Context, userID int64) ([]models.PostWithAuthor, error)

	// Comments
	GetComments(ctx context.Context, postID int64) ([]models.CommentWithAuthor, error)
	CreateComment(ctx context.Context, c models.NewComment) (*models.Comment, error)
	DeleteComment(ctx context.Context, id, userID int64) (bool, error)

	// Social graph
	FollowUser(ctx context.Context, followerID, followingID int64) (*models.Follow, error)
	UnfollowUser(ctx context.Context, followerID, followingID int64) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID int64) (bool, error)
	GetFollowers(ctx context.Context, userID, viewerID int64) ([]models.UserProfile, error)
	GetFollowing(ctx context.Context, userID, viewerID int64) ([]models.UserProfile, error)

	// Messages
	SendMessage(ctx context.Context, m models.NewMessage) (*models.Message, error)
	GetConversations(ctx context.Context, userID int64) ([]models.Conversation, error)
	GetMessages(ctx context.Context, userID, otherID int64, limit int) ([]models.Message, error)
	MarkMessagesAsRead(ctx context.Context, userID, otherID int64) (bool, error)
	GetUnreadMessageCount(ctx context.Context, userID int64) (int, error)
}
