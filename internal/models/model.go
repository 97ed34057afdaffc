package models

import "time"

type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	DisplayName  string    `json:"displayName" db:"display_name"`
	Bio          *string   `json:"bio,omitempty" db:"bio"`
	AvatarURL    *string   `json:"avatarUrl,omitempty" db:"avatar_url"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// NewUser is the pre-validated input of user registration. PasswordHash is
// already hashed by the caller.
type NewUser struct {
	Email        string
	Username     string
	PasswordHash string
	DisplayName  string
	Bio          *string
	AvatarURL    *string
}

// UserUpdate carries the mutable profile fields; nil leaves a field unchanged.
type UserUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

type Post struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Excerpt   string    `json:"excerpt" db:"excerpt"`
	AuthorID  int64     `json:"authorId" db:"author_id"`
	ImageURL  *string   `json:"imageUrl,omitempty" db:"image_url"`
	Tags      []string  `json:"tags" db:"-"`
	Published bool      `json:"published" db:"published"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type NewPost struct {
	Title     string
	Content   string
	Excerpt   string
	AuthorID  int64
	ImageURL  *string
	Tags      []string
	Published bool
}

type PostUpdate struct {
	Title     *string   `json:"title,omitempty"`
	Content   *string   `json:"content,omitempty"`
	Excerpt   *string   `json:"excerpt,omitempty"`
	ImageURL  *string   `json:"imageUrl,omitempty"`
	Tags      *[]string `json:"tags,omitempty"`
	Published *bool     `json:"published,omitempty"`
}

type Like struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	PostID    int64     `json:"postId" db:"post_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type Comment struct {
	ID        int64     `json:"id" db:"id"`
	PostID    int64     `json:"postId" db:"post_id"`
	UserID    int64     `json:"userId" db:"user_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type NewComment struct {
	PostID  int64
	UserID  int64
	Content string
}

type Bookmark struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	PostID    int64     `json:"postId" db:"post_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type Follow struct {
	ID          int64     `json:"id" db:"id"`
	FollowerID  int64     `json:"followerId" db:"follower_id"`
	FollowingID int64     `json:"followingId" db:"following_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type Message struct {
	ID         int64     `json:"id" db:"id"`
	SenderID   int64     `json:"senderId" db:"sender_id"`
	ReceiverID int64     `json:"receiverId" db:"receiver_id"`
	Content    string    `json:"content" db:"content"`
	Read       bool      `json:"read" db:"is_read"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

type NewMessage struct {
	SenderID   int64
	ReceiverID int64
	Content    string
}

// AuthorSummary is the denormalized slice of a User embedded in read models.
type AuthorSummary struct {
	ID          int64   `json:"id"`
	DisplayName string  `json:"displayName"`
	Username    string  `json:"username"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

func SummaryOf(u *User) AuthorSummary {
	return AuthorSummary{ID: u.ID, DisplayName: u.DisplayName, Username: u.Username, AvatarURL: u.AvatarURL}
}

type PostWithAuthor struct {
	Post
	Author       AuthorSummary `json:"author"`
	LikeCount    int           `json:"likeCount"`
	CommentCount int           `json:"commentCount"`
	IsLiked      bool          `json:"isLiked"`
	IsBookmarked bool          `json:"isBookmarked"`
}

type CommentWithAuthor struct {
	Comment
	Author AuthorSummary `json:"author"`
}

type UserProfile struct {
	User
	PostCount      int  `json:"postCount"`
	FollowerCount  int  `json:"followerCount"`
	FollowingCount int  `json:"followingCount"`
	IsFollowing    bool `json:"isFollowing"`
}

type Conversation struct {
	OtherUser   AuthorSummary `json:"otherUser"`
	LastMessage Message       `json:"lastMessage"`
	UnreadCount int           `json:"unreadCount"`
}

type TagCount struct {
	Tag   string `json:"tag" db:"tag"`
	Count int    `json:"count" db:"count"`
}

// PostQuery selects one of the listing modes, in priority order:
// Search, Tag, AuthorID, then the default feed of all published posts.
type PostQuery struct {
	Search   string
	Tag      string
	AuthorID int64
	Limit    int
	Offset   int
	ViewerID int64
}
