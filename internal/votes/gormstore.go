package votes

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/emilythestrangee/threadvote/backend/internal/apperr"
	"github.com/emilythestrangee/threadvote/backend/internal/database"
	"github.com/emilythestrangee/threadvote/backend/internal/models"
)

// GormStore is the PostgreSQL-backed Store.
type GormStore struct {
	tr *database.Transactor
}

func NewGormStore(tr *database.Transactor) *GormStore {
	return &GormStore{tr: tr}
}

func (s *GormStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	return s.tr.Run(ctx, func(db *gorm.DB) error {
		return fn(Tx{
			Registry: gormRegistry{db: db},
			Ledger:   gormLedger{db: db},
			Karma:    gormKarma{db: db},
		})
	})
}

func (s *GormStore) UserVotes(ctx context.Context, voterID int, kind Kind, ids []int) (map[int]int, error) {
	col, err := targetColumn(kind)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		TargetID int
		VoteType int
	}
	err = s.tr.DB.WithContext(ctx).
		Model(&models.Vote{}).
		Select(col+" AS target_id, vote_type").
		Where("user_id = ? AND "+col+" IN ?", voterID, ids).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load user votes: %w", err)
	}

	out := make(map[int]int, len(rows))
	for _, r := range rows {
		out[r.TargetID] = r.VoteType
	}
	return out, nil
}

func targetTable(k Kind) (string, error) {
	switch k {
	case KindPost:
		return "posts", nil
	case KindComment:
		return "comments", nil
	}
	return "", apperr.Invalid("unknown vote target %q", k)
}

func targetColumn(k Kind) (string, error) {
	switch k {
	case KindPost:
		return "post_id", nil
	case KindComment:
		return "comment_id", nil
	}
	return "", apperr.Invalid("unknown vote target %q", k)
}

type gormRegistry struct {
	db *gorm.DB
}

func (r gormRegistry) Resolve(ctx context.Context, t Target) (Votable, error) {
	table, err := targetTable(t.Kind)
	if err != nil {
		return Votable{}, err
	}

	var row struct {
		Score     int
		AuthorID  int
		IsDeleted bool
	}
	res := r.db.WithContext(ctx).Table(table).
		Select("score, author_id, is_deleted").
		Where("id = ?", t.ID).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return Votable{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Votable{Target: t}, nil
	}

	return Votable{
		Target:   t,
		Score:    row.Score,
		AuthorID: row.AuthorID,
		Exists:   true,
		Deleted:  row.IsDeleted,
	}, nil
}

func (r gormRegistry) AddScore(ctx context.Context, t Target, delta int) (int, error) {
	table, err := targetTable(t.Kind)
	if err != nil {
		return 0, err
	}

	var score int
	res := r.db.WithContext(ctx).
		Raw("UPDATE "+table+" SET score = score + ? WHERE id = ? RETURNING score", delta, t.ID).
		Scan(&score)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperr.NotFound(entityName(t.Kind), t.ID)
	}
	return score, nil
}

type gormLedger struct {
	db *gorm.DB
}

func (l gormLedger) scope(ctx context.Context, voterID int, t Target) (*gorm.DB, error) {
	col, err := targetColumn(t.Kind)
	if err != nil {
		return nil, err
	}
	return l.db.WithContext(ctx).Model(&models.Vote{}).
		Where("user_id = ? AND "+col+" = ?", voterID, t.ID), nil
}

func (l gormLedger) Find(ctx context.Context, voterID int, t Target) (Direction, error) {
	q, err := l.scope(ctx, voterID, t)
	if err != nil {
		return None, err
	}

	var v models.Vote
	err = q.Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return None, nil
	}
	if err != nil {
		return None, err
	}
	return Direction(v.VoteType), nil
}

func (l gormLedger) Insert(ctx context.Context, voterID int, t Target, d Direction) error {
	vote := models.Vote{UserID: voterID, VoteType: int16(d)}
	id := t.ID
	switch t.Kind {
	case KindPost:
		vote.PostID = &id
	case KindComment:
		vote.CommentID = &id
	default:
		return apperr.Invalid("unknown vote target %q", t.Kind)
	}
	// A concurrent insert for the same pair fails on the unique index and
	// the transaction is replayed.
	return l.db.WithContext(ctx).Create(&vote).Error
}

func (l gormLedger) Switch(ctx context.Context, voterID int, t Target, from, to Direction) error {
	q, err := l.scope(ctx, voterID, t)
	if err != nil {
		return err
	}
	res := q.Where("vote_type = ?", int16(from)).Update("vote_type", int16(to))
	return checkAffected(res)
}

func (l gormLedger) Remove(ctx context.Context, voterID int, t Target, d Direction) error {
	q, err := l.scope(ctx, voterID, t)
	if err != nil {
		return err
	}
	res := q.Where("vote_type = ?", int16(d)).Delete(&models.Vote{})
	return checkAffected(res)
}

func checkAffected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return database.ErrConflict
	}
	return nil
}

type gormKarma struct {
	db *gorm.DB
}

func (k gormKarma) Adjust(ctx context.Context, userID, delta int) error {
	res := k.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("karma", gorm.Expr("karma + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("User", userID)
	}
	return nil
}
