package votes

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/emilythestrangee/threadvote/backend/internal/apperr"
	"github.com/emilythestrangee/threadvote/backend/internal/models"
)

// Transition names the ledger write a vote request turned into.
type Transition string

const (
	Created  Transition = "created"
	Removed  Transition = "removed"
	Switched Transition = "switched"
)

// next computes the tri-state toggle. Voting the same way twice removes the
// vote; voting the other way flips it.
func next(prior, requested Direction) (Direction, int, Transition) {
	switch prior {
	case None:
		return requested, int(requested), Created
	case requested:
		return None, -int(requested), Removed
	default:
		return requested, 2 * int(requested), Switched
	}
}

// Result is the outcome of one vote request.
type Result struct {
	Target     Target
	Score      int
	UserVote   Direction
	Transition Transition
}

type Service struct {
	store   Store
	applier Applier
	log     *zap.Logger
	cast    *prometheus.CounterVec
}

type Option func(*Service)

// WithCounter counts applied votes by entity type and transition.
func WithCounter(c *prometheus.CounterVec) Option {
	return func(s *Service) { s.cast = c }
}

func NewService(store Store, applier Applier, log *zap.Logger, opts ...Option) *Service {
	s := &Service{store: store, applier: applier, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cast applies voterID's vote in direction d to target. The ledger write and
// the score and karma changes commit together.
func (s *Service) Cast(ctx context.Context, voterID int, target Target, d Direction) (Result, error) {
	if voterID <= 0 {
		return Result{}, apperr.Unauthorized("User not authenticated")
	}
	if err := target.validate(); err != nil {
		return Result{}, err
	}
	if d != Up && d != Down {
		return Result{}, apperr.Invalid("Vote type must be -1 or 1, got %d", d)
	}

	var res Result
	err := s.store.Atomic(ctx, func(tx Tx) error {
		v, err := tx.Registry.Resolve(ctx, target)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", target, err)
		}
		if !v.Exists || v.Deleted {
			return apperr.NotFound(entityName(target.Kind), target.ID)
		}

		prior, err := tx.Ledger.Find(ctx, voterID, target)
		if err != nil {
			return fmt.Errorf("find vote: %w", err)
		}

		userVote, delta, tr := next(prior, d)
		switch tr {
		case Created:
			err = tx.Ledger.Insert(ctx, voterID, target, d)
		case Removed:
			err = tx.Ledger.Remove(ctx, voterID, target, prior)
		case Switched:
			err = tx.Ledger.Switch(ctx, voterID, target, prior, d)
		}
		if err != nil {
			return fmt.Errorf("%s vote: %w", tr, err)
		}

		score, err := s.applier.Apply(ctx, tx, v, voterID, delta)
		if err != nil {
			return err
		}

		res = Result{Target: target, Score: score, UserVote: userVote, Transition: tr}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if s.cast != nil {
		s.cast.WithLabelValues(string(target.Kind), string(res.Transition)).Inc()
	}
	s.log.Debug("vote applied",
		zap.Int("voter_id", voterID),
		zap.String("target", target.String()),
		zap.String("transition", string(res.Transition)),
		zap.Int("score", res.Score),
	)
	return res, nil
}

// Handle validates a wire request and casts it. Exactly one of PostID and
// CommentID must be set.
func (s *Service) Handle(ctx context.Context, voterID int, req models.VoteRequest) (models.VoteResponse, error) {
	var target Target
	switch {
	case req.PostID != nil && req.CommentID != nil:
		return models.VoteResponse{}, apperr.Invalid("Provide either postId or commentId, not both")
	case req.PostID != nil:
		target = Target{Kind: KindPost, ID: *req.PostID}
	case req.CommentID != nil:
		target = Target{Kind: KindComment, ID: *req.CommentID}
	default:
		return models.VoteResponse{}, apperr.Invalid("Either postId or commentId must be provided")
	}

	d, err := ParseDirection(req.VoteType)
	if err != nil {
		return models.VoteResponse{}, err
	}

	res, err := s.Cast(ctx, voterID, target, d)
	if err != nil {
		return models.VoteResponse{}, err
	}
	return models.VoteResponse{
		EntityID:   res.Target.ID,
		EntityType: string(res.Target.Kind),
		VoteCount:  res.Score,
		UserVote:   int(res.UserVote),
	}, nil
}

// UserVotes returns voterID's standing votes on the given ids of one kind.
// Ids without a vote are absent from the map. Anonymous callers get an empty
// map.
func (s *Service) UserVotes(ctx context.Context, voterID int, kind Kind, ids []int) (map[int]int, error) {
	if voterID <= 0 || len(ids) == 0 {
		return map[int]int{}, nil
	}
	return s.store.UserVotes(ctx, voterID, kind, ids)
}

func entityName(k Kind) string {
	if k == KindComment {
		return "Comment"
	}
	return "Post"
}
