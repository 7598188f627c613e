package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

// GiftRepository reads the gift catalog. Hidden gifts are still returned so
// old ledger entries keep their details.
type GiftRepository interface {
	GetMany(ctx context.Context, ids []string) (map[string]models.Gift, error)
}

type GiftRepo struct {
	db *sqlx.DB
}

func NewGiftRepo(db *sqlx.DB) *GiftRepo {
	return &GiftRepo{db: db}
}

const giftColumns = `id, name, price, image, file, duration, tier`

func (r *GiftRepo) GetMany(ctx context.Context, ids []string) (map[string]models.Gift, error) {
	out := make(map[string]models.Gift, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Gift
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+giftColumns+` FROM gifts WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, g := range rows {
		out[g.ID] = g
	}
	return out, nil
}

var _ GiftRepository = (*GiftRepo)(nil)
