package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/auth"
	"quill/internal/models"
	"quill/internal/storage"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStorage()
	require.NoError(t, Load(ctx, store))

	alice, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(DemoPassword, alice.PasswordHash))

	published, err := store.GetPosts(ctx, models.PostQuery{})
	require.NoError(t, err)
	assert.Len(t, published, 3)

	profile, err := store.GetUserProfile(ctx, alice.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, profile.FollowerCount)

	unread, err := store.GetUnreadMessageCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	tags, err := store.GetTrendingTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TagCount{Tag: "go", Count: 2}, tags[0])
}

func TestLoadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStorage()
	require.NoError(t, Load(ctx, store))
	require.NoError(t, Load(ctx, store))

	posts, err := store.GetPosts(ctx, models.PostQuery{})
	require.NoError(t, err)
	assert.Len(t, posts, 3)
}
