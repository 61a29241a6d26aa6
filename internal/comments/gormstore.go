package comments

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

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

func (s *GormStore) db(ctx context.Context) *gorm.DB {
	return s.tr.DB.WithContext(ctx)
}

func (s *GormStore) LivePost(ctx context.Context, postID int) (bool, error) {
	var n int64
	err := s.db(ctx).Model(&models.Post{}).
		Where("id = ? AND is_deleted = ?", postID, false).
		Count(&n).Error
	return n > 0, err
}

func (s *GormStore) Get(ctx context.Context, id int) (models.Comment, error) {
	var c models.Comment
	err := s.db(ctx).Preload("Author").First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c, apperr.NotFound("Comment", id)
	}
	return c, err
}

func (s *GormStore) Create(ctx context.Context, c *models.Comment) error {
	return s.tr.Run(ctx, func(tx *gorm.DB) error {
		// a replayed attempt must insert afresh
		c.ID = 0
		if err := lockPost(tx, c.PostID); err != nil {
			return err
		}
		if err := tx.Omit("Author").Create(c).Error; err != nil {
			return err
		}
		if err := recount(tx, c.PostID); err != nil {
			return err
		}
		return tx.First(&c.Author, c.AuthorID).Error
	})
}

func (s *GormStore) UpdateContent(ctx context.Context, id int, content string) (models.Comment, error) {
	res := s.db(ctx).Model(&models.Comment{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("content", content)
	if res.Error != nil {
		return models.Comment{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.Comment{}, apperr.NotFound("Comment", id)
	}
	return s.Get(ctx, id)
}

func (s *GormStore) SoftDelete(ctx context.Context, id int) error {
	return s.tr.Run(ctx, func(tx *gorm.DB) error {
		var c models.Comment
		if err := tx.Select("id, post_id").Where("id = ? AND is_deleted = ?", id, false).Take(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("Comment", id)
			}
			return err
		}
		if err := lockPost(tx, c.PostID); err != nil {
			return err
		}

		err := tx.Model(&models.Comment{}).Where("id = ?", id).Updates(map[string]any{
			"is_deleted": true,
			"content":    models.DeletedMarker,
		}).Error
		if err != nil {
			return err
		}
		return recount(tx, c.PostID)
	})
}

// ListByPost returns every comment of the post, deleted ones included, with
// authors loaded.
func (s *GormStore) ListByPost(ctx context.Context, postID int) ([]models.Comment, error) {
	var list []models.Comment
	err := s.db(ctx).Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at DESC, id DESC").
		Find(&list).Error
	return list, err
}

func (s *GormStore) ListByAuthor(ctx context.Context, authorID, offset, limit int) ([]models.Comment, int64, error) {
	q := s.db(ctx).Model(&models.Comment{}).
		Where("author_id = ? AND is_deleted = ?", authorID, false).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.Comment
	err := q.Preload("Author").
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	return list, total, err
}

// lockPost takes the post row lock before comments change, so concurrent
// writers on one post serialize and each recount sees the others' rows.
func lockPost(tx *gorm.DB, postID int) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Take(&models.Post{}, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("Post", postID)
	}
	return err
}

// recount sets the post's comment count from the live rows rather than
// incrementing, so the counter cannot drift.
func recount(tx *gorm.DB, postID int) error {
	return tx.Exec(
		"UPDATE posts SET comment_count = (SELECT COUNT(*) FROM comments WHERE post_id = ? AND is_deleted = false) WHERE id = ?",
		postID, postID,
	).Error
}
