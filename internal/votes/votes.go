// Package votes keeps the vote ledger: at most one vote per user per post or
// comment, with the target's score and its author's karma moved in the same
// transaction as the ledger row.
package votes

import (
	"context"
	"fmt"

	"github.com/emilythestrangee/threadvote/backend/internal/apperr"
)

// Kind is the type of content a vote points at.
type Kind string

const (
	KindPost    Kind = "POST"
	KindComment Kind = "COMMENT"
)

// Target identifies one votable post or comment.
type Target struct {
	Kind Kind
	ID   int
}

func (t Target) String() string {
	return fmt.Sprintf("%s %d", t.Kind, t.ID)
}

func (t Target) validate() error {
	if t.Kind != KindPost && t.Kind != KindComment {
		return apperr.Invalid("unknown vote target %q", t.Kind)
	}
	if t.ID <= 0 {
		return apperr.Invalid("%s id must be positive", t.Kind)
	}
	return nil
}

// Direction is a stored vote value. None is never stored: it is the absence
// of a ledger row.
type Direction int8

const (
	Down Direction = -1
	None Direction = 0
	Up   Direction = 1
)

// ParseDirection accepts only +1 and -1.
func ParseDirection(v int) (Direction, error) {
	switch v {
	case 1:
		return Up, nil
	case -1:
		return Down, nil
	default:
		return None, apperr.Invalid("Vote type must be -1 or 1, got %d", v)
	}
}

// Votable is what the registry knows about a target.
type Votable struct {
	Target   Target
	Score    int
	AuthorID int
	Exists   bool
	Deleted  bool
}

// Registry resolves votable targets and moves their score. It has no rules of
// its own.
type Registry interface {
	Resolve(ctx context.Context, t Target) (Votable, error)
	// AddScore adds delta to the stored score in a single atomic statement
	// and returns the new value.
	AddScore(ctx context.Context, t Target, delta int) (int, error)
}

// Ledger stores vote rows. Switch and Remove are conditional on the row still
// holding the expected direction.
type Ledger interface {
	Find(ctx context.Context, voterID int, t Target) (Direction, error)
	Insert(ctx context.Context, voterID int, t Target, d Direction) error
	Switch(ctx context.Context, voterID int, t Target, from, to Direction) error
	Remove(ctx context.Context, voterID int, t Target, d Direction) error
}

// KarmaStore moves a user's karma by delta.
type KarmaStore interface {
	Adjust(ctx context.Context, userID, delta int) error
}

// Tx is the set of stores bound to one transaction.
type Tx struct {
	Registry Registry
	Ledger   Ledger
	Karma    KarmaStore
}

// Store runs fn atomically: every write made through tx commits, or none do.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	UserVotes(ctx context.Context, voterID int, kind Kind, ids []int) (map[int]int, error)
}
