package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// RelationshipRepository answers friendship and block questions between two users.
type RelationshipRepository interface {
	IsFriend(ctx context.Context, a, b string) (bool, error)
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

type RelationshipRepo struct {
	db *sqlx.DB
}

func NewRelationshipRepo(db *sqlx.DB) *RelationshipRepo {
	return &RelationshipRepo{db: db}
}

func (r *RelationshipRepo) IsFriend(ctx context.Context, a, b string) (bool, error) {
	if a > b {
		a, b = b, a
	}
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM friendships WHERE user_a=$1 AND user_b=$2)`, a, b)
	return exists, err
}

// IsBlocked is true when either user blocked the other.
func (r *RelationshipRepo) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(
        SELECT 1 FROM blocks
        WHERE (blocker_id=$1 AND blocked_id=$2) OR (blocker_id=$2 AND blocked_id=$1)
    )`, a, b)
	return exists, err
}

var _ RelationshipRepository = (*RelationshipRepo)(nil)
