package votes

import (
	"context"
	"fmt"
)

// Applier moves a target's score and its author's karma by the same delta.
// It must run inside the Tx of the ledger write it accounts for.
type Applier struct {
	// SelfVoteKarma applies karma even when the voter authored the target.
	SelfVoteKarma bool
}

// Apply returns the target's new score.
func (a Applier) Apply(ctx context.Context, tx Tx, target Votable, voterID, delta int) (int, error) {
	score, err := tx.Registry.AddScore(ctx, target.Target, delta)
	if err != nil {
		return 0, fmt.Errorf("add score to %s: %w", target.Target, err)
	}

	if delta == 0 || (!a.SelfVoteKarma && voterID == target.AuthorID) {
		return score, nil
	}
	if err := tx.Karma.Adjust(ctx, target.AuthorID, delta); err != nil {
		return 0, fmt.Errorf("adjust karma of user %d: %w", target.AuthorID, err)
	}
	return score, nil
}
