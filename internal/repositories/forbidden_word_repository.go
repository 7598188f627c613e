package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

type ForbiddenWordRepository interface {
	List(ctx context.Context) ([]models.ForbiddenWord, error)
}

type ForbiddenWordRepo struct {
	db *sqlx.DB
}

func NewForbiddenWordRepo(db *sqlx.DB) *ForbiddenWordRepo {
	return &ForbiddenWordRepo{db: db}
}

func (r *ForbiddenWordRepo) List(ctx context.Context) ([]models.ForbiddenWord, error) {
	var out []models.ForbiddenWord
	err := r.db.SelectContext(ctx, &out, `SELECT word, language FROM forbidden_words ORDER BY id`)
	return out, err
}

var _ ForbiddenWordRepository = (*ForbiddenWordRepo)(nil)
