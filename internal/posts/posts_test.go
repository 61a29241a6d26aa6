package posts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emilythestrangee/threadvote/backend/internal/apperr"
	"github.com/emilythestrangee/threadvote/backend/internal/database"
	"github.com/emilythestrangee/threadvote/backend/internal/database/dbtest"
	"github.com/emilythestrangee/threadvote/backend/internal/models"
	"github.com/emilythestrangee/threadvote/backend/internal/posts"
	"github.com/emilythestrangee/threadvote/backend/internal/votes"
)

func TestPostLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	alice := models.User{Username: "alice", Email: "alice@example.com", Password: "x"}
	bob := models.User{Username: "bob", Email: "bob@example.com", Password: "x"}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)

	tr := &database.Transactor{DB: db, MaxAttempts: 3}
	voteSvc := votes.NewService(votes.NewGormStore(tr), votes.Applier{SelfVoteKarma: true}, zap.NewNop())
	svc := posts.NewService(db, voteSvc, zap.NewNop())

	created, err := svc.Create(ctx, alice.ID, models.CreatePostRequest{Title: " Hello ", Content: "world", Community: "golang"})
	require.NoError(t, err)
	assert.Equal(t, "Hello", created.Title)
	assert.Zero(t, created.VoteCount)
	assert.Equal(t, "alice", created.AuthorUsername)

	_, err = voteSvc.Cast(ctx, bob.ID, votes.Target{Kind: votes.KindPost, ID: created.ID}, votes.Up)
	require.NoError(t, err)

	seen, err := svc.Get(ctx, bob.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, seen.VoteCount)
	assert.Equal(t, 1, seen.UserVote)

	list, err := svc.List(ctx, 0, "golang", 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Zero(t, list[0].UserVote)

	_, err = svc.Update(ctx, bob.ID, created.ID, models.UpdatePostRequest{Title: "mine now"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	updated, err := svc.Update(ctx, alice.ID, created.ID, models.UpdatePostRequest{Content: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)

	assert.ErrorIs(t, svc.Delete(ctx, bob.ID, created.ID), apperr.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, alice.ID, created.ID))

	gone, err := svc.Get(ctx, 0, created.ID)
	require.NoError(t, err)
	assert.True(t, gone.IsDeleted)
	assert.Equal(t, models.DeletedMarker, gone.Content)
	assert.Nil(t, gone.AuthorID)
	assert.Equal(t, 1, gone.VoteCount)

	list, err = svc.List(ctx, 0, "", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = voteSvc.Cast(ctx, bob.ID, votes.Target{Kind: votes.KindPost, ID: created.ID}, votes.Down)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Get(ctx, 0, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
