package votes

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/emilythestrangee/threadvote/backend/internal/apperr"
)

type voteKey struct {
	voter  int
	target Target
}

// memStore is an in-memory Store. Atomic holds a lock for the whole unit of
// work and restores a snapshot when fn fails.
type memStore struct {
	mu       sync.Mutex
	targets  map[Target]Votable
	karma    map[int]int
	ledger   map[voteKey]Direction
	failNext error // returned by the next karma adjustment
}

func newMemStore() *memStore {
	return &memStore{
		targets: map[Target]Votable{},
		karma:   map[int]int{},
		ledger:  map[voteKey]Direction{},
	}
}

func (m *memStore) addTarget(t Target, author, score int) {
	m.targets[t] = Votable{Target: t, Score: score, AuthorID: author, Exists: true}
	if _, ok := m.karma[author]; !ok {
		m.karma[author] = 0
	}
}

func (m *memStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	targets := maps.Clone(m.targets)
	karma := maps.Clone(m.karma)
	ledger := maps.Clone(m.ledger)

	tx := Tx{Registry: memRegistry{m}, Ledger: memLedger{m}, Karma: memKarma{m}}
	if err := fn(tx); err != nil {
		m.targets, m.karma, m.ledger = targets, karma, ledger
		return err
	}
	return nil
}

func (m *memStore) UserVotes(ctx context.Context, voterID int, kind Kind, ids []int) (map[int]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]int{}
	for _, id := range ids {
		if d, ok := m.ledger[voteKey{voterID, Target{kind, id}}]; ok {
			out[id] = int(d)
		}
	}
	return out, nil
}

func (m *memStore) score(t Target) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.targets[t].Score
}

func (m *memStore) karmaOf(user int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.karma[user]
}

func (m *memStore) rows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ledger)
}

type memRegistry struct{ m *memStore }

func (r memRegistry) Resolve(_ context.Context, t Target) (Votable, error) {
	v, ok := r.m.targets[t]
	if !ok {
		return Votable{Target: t}, nil
	}
	return v, nil
}

func (r memRegistry) AddScore(_ context.Context, t Target, delta int) (int, error) {
	v, ok := r.m.targets[t]
	if !ok {
		return 0, apperr.NotFound("target", t.ID)
	}
	v.Score += delta
	r.m.targets[t] = v
	return v.Score, nil
}

type memLedger struct{ m *memStore }

func (l memLedger) Find(_ context.Context, voter int, t Target) (Direction, error) {
	return l.m.ledger[voteKey{voter, t}], nil
}

func (l memLedger) Insert(_ context.Context, voter int, t Target, d Direction) error {
	k := voteKey{voter, t}
	if _, ok := l.m.ledger[k]; ok {
		return errors.New("duplicate vote")
	}
	l.m.ledger[k] = d
	return nil
}

func (l memLedger) Switch(_ context.Context, voter int, t Target, from, to Direction) error {
	k := voteKey{voter, t}
	if l.m.ledger[k] != from {
		return errors.New("vote changed")
	}
	l.m.ledger[k] = to
	return nil
}

func (l memLedger) Remove(_ context.Context, voter int, t Target, d Direction) error {
	k := voteKey{voter, t}
	if l.m.ledger[k] != d {
		return errors.New("vote changed")
	}
	delete(l.m.ledger, k)
	return nil
}

type memKarma struct{ m *memStore }

func (k memKarma) Adjust(_ context.Context, user, delta int) error {
	if err := k.m.failNext; err != nil {
		k.m.failNext = nil
		return err
	}
	if _, ok := k.m.karma[user]; !ok {
		return apperr.NotFound("User", user)
	}
	k.m.karma[user] += delta
	return nil
}
