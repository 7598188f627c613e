package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

type StickerRepository interface {
	Get(ctx context.Context, id string) (models.Sticker, error)
	List(ctx context.Context) ([]models.Sticker, error)
}

type StickerRepo struct {
	db *sqlx.DB
}

func NewStickerRepo(db *sqlx.DB) *StickerRepo {
	return &StickerRepo{db: db}
}

const stickerColumns = `id, name, category, image, tier, file, duration, vip_level, created_at`

func (r *StickerRepo) Get(ctx context.Context, id string) (models.Sticker, error) {
	var s models.Sticker
	err := r.db.GetContext(ctx, &s, `SELECT `+stickerColumns+` FROM stickers WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Sticker{}, ErrStickerNotFound
	}
	return s, err
}

func (r *StickerRepo) List(ctx context.Context) ([]models.Sticker, error) {
	var out []models.Sticker
	err := r.db.SelectContext(ctx, &out, `SELECT `+stickerColumns+` FROM stickers ORDER BY category, created_at`)
	return out, err
}

var _ StickerRepository = (*StickerRepo)(nil)
