package votes

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emilythestrangee/threadvote/backend/internal/apperr"
	"github.com/emilythestrangee/threadvote/backend/internal/models"
)

const (
	author = 10
	u1     = 1
	u2     = 2
)

var post = Target{Kind: KindPost, ID: 100}

func newTestService(store *memStore) *Service {
	return NewService(store, Applier{SelfVoteKarma: true}, zap.NewNop())
}

func intPtr(v int) *int { return &v }

func TestNextTransition(t *testing.T) {
	cases := []struct {
		prior, req Direction
		want       Direction
		delta      int
		tr         Transition
	}{
		{None, Up, Up, 1, Created},
		{None, Down, Down, -1, Created},
		{Up, Up, None, -1, Removed},
		{Down, Down, None, 1, Removed},
		{Down, Up, Up, 2, Switched},
		{Up, Down, Down, -2, Switched},
	}
	for _, tc := range cases {
		got, delta, tr := next(tc.prior, tc.req)
		assert.Equal(t, tc.want, got, "prior=%d req=%d", tc.prior, tc.req)
		assert.Equal(t, tc.delta, delta, "prior=%d req=%d", tc.prior, tc.req)
		assert.Equal(t, tc.tr, tr, "prior=%d req=%d", tc.prior, tc.req)
	}
}

func TestToggleRestoresScore(t *testing.T) {
	store := newMemStore()
	store.addTarget(post, author, 0)
	svc := newTestService(store)
	ctx := context.Background()

	res, err := svc.Cast(ctx, u1, post, Up)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, Up, res.UserVote)

	res, err = svc.Cast(ctx, u1, post, Up)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, None, res.UserVote)
	assert.Equal(t, Removed, res.Transition)
	assert.Zero(t, store.rows())
	assert.Zero(t, store.karmaOf(author))
}

func TestDownThenUpOnScoredPost(t *testing.T) {
	store := newMemStore()
	store.addTarget(post, author, 5)
	svc := newTestService(store)
	ctx := context.Background()

	res, err := svc.Cast(ctx, u2, post, Down)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Score)

	res, err = svc.Cast(ctx, u2, post, Up)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Score)
	assert.Equal(t, Up, res.UserVote)
	assert.Equal(t, Switched, res.Transition)
}

func TestSwitchMovesScoreByTwo(t *testing.T) {
	store := newMemStore()
	store.addTarget(post, author, 0)
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.Cast(ctx, u1, post, Up)
	require.NoError(t, err)
	second, err := svc.Cast(ctx, u1, post, Down)
	require.NoError(t, err)

	assert.Equal(t, -2, second.Score-first.Score)
	assert.Equal(t, 1, store.rows())
}

func TestKarmaMatchesActiveVotes(t *testing.T) {
	store := newMemStore()
	comment := Target{Kind: KindComment, ID: 7}
	store.addTarget(post, author, 0)
	store.addTarget(comment, author, 0)
	svc := newTestService(store)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(42))
	targets := []Target{post, comment}
	for i := 0; i < 500; i++ {
		voter := 1 + rng.Intn(5)
		d := Up
		if rng.Intn(2) == 0 {
			d = Down
		}
		_, err := svc.Cast(ctx, voter, targets[rng.Intn(2)], d)
		require.NoError(t, err)
	}

	active := 0
	for k, d := range store.ledger {
		assert.NotEqual(t, None, d, "no-vote must never be stored")
		if k.target == post || k.target == comment {
			active += int(d)
		}
	}
	assert.Equal(t, active, store.karmaOf(author))
	assert.Equal(t, active, store.score(post)+store.score(comment))
}

func TestCastRejectsMissingAndDeletedTargets(t *testing.T) {
	store := newMemStore()
	deleted := Target{Kind: KindComment, ID: 3}
	store.targets[deleted] = Votable{Target: deleted, AuthorID: author, Exists: true, Deleted: true}
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Cast(ctx, u1, Target{Kind: KindPost, ID: 404}, Up)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Cast(ctx, u1, deleted, Up)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Zero(t, store.rows())
}

func TestCastRollsBackWhenKarmaFails(t *testing.T) {
	store := newMemStore()
	store.addTarget(post, author, 3)
	store.failNext = errors.New("connection reset")
	svc := newTestService(store)

	_, err := svc.Cast(context.Background(), u1, post, Up)
	require.Error(t, err)

	assert.Equal(t, 3, store.score(post))
	assert.Zero(t, store.karmaOf(author))
	assert.Zero(t, store.rows())
}

func TestSelfVoteKarmaPolicy(t *testing.T) {
	ctx := context.Background()

	store := newMemStore()
	store.addTarget(post, author, 0)
	_, err := NewService(store, Applier{SelfVoteKarma: true}, zap.NewNop()).Cast(ctx, author, post, Up)
	require.NoError(t, err)
	assert.Equal(t, 1, store.karmaOf(author))

	store = newMemStore()
	store.addTarget(post, author, 0)
	res, err := NewService(store, Applier{SelfVoteKarma: false}, zap.NewNop()).Cast(ctx, author, post, Up)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	assert.Zero(t, store.karmaOf(author))
}

func TestHandleRejectsAmbiguousTargets(t *testing.T) {
	store := newMemStore()
	store.addTarget(post, author, 0)
	store.addTarget(Target{Kind: KindComment, ID: 7}, author, 0)
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Handle(ctx, u1, models.VoteRequest{VoteType: 1, PostID: intPtr(100), CommentID: intPtr(7)})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = svc.Handle(ctx, u1, models.VoteRequest{VoteType: 1})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = svc.Handle(ctx, u1, models.VoteRequest{VoteType: 2, PostID: intPtr(100)})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	assert.Zero(t, store.rows())
	assert.Zero(t, store.score(post))
	assert.Zero(t, store.karmaOf(author))
}

func TestHandleResponse(t *testing.T) {
	store := newMemStore()
	store.addTarget(Target{Kind: KindComment, ID: 7}, author, 2)
	svc := newTestService(store)

	resp, err := svc.Handle(context.Background(), u1, models.VoteRequest{VoteType: -1, CommentID: intPtr(7)})
	require.NoError(t, err)
	assert.Equal(t, models.VoteResponse{EntityID: 7, EntityType: "COMMENT", VoteCount: 1, UserVote: -1}, resp)
}

func TestCastRequiresActor(t *testing.T) {
	store := newMemStore()
	store.addTarget(post, author, 0)

	_, err := newTestService(store).Cast(context.Background(), 0, post, Up)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestConcurrentVotersDoNotLoseUpdates(t *testing.T) {
	store := newMemStore()
	store.addTarget(post, author, 0)
	svc := newTestService(store)

	var wg sync.WaitGroup
	for voter := 1; voter <= 50; voter++ {
		wg.Add(1)
		go func(voter int) {
			defer wg.Done()
			_, err := svc.Cast(context.Background(), voter, post, Up)
			assert.NoError(t, err)
		}(voter)
	}
	wg.Wait()

	assert.Equal(t, 50, store.score(post))
	assert.Equal(t, 50, store.karmaOf(author))
}

func TestUserVotes(t *testing.T) {
	store := newMemStore()
	store.addTarget(post, author, 0)
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Cast(ctx, u1, post, Down)
	require.NoError(t, err)

	got, err := svc.UserVotes(ctx, u1, KindPost, []int{100, 101})
	require.NoError(t, err)
	assert.Equal(t, map[int]int{100: -1}, got)

	got, err = svc.UserVotes(ctx, 0, KindPost, []int{100})
	require.NoError(t, err)
	assert.Empty(t, got)
}
