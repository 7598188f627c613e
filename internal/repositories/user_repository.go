package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

// UserRepository is the read side of the user directory and settings store.
type UserRepository interface {
	GetDisplayInfo(ctx context.Context, userID string) (models.UserInfo, error)
	GetDisplayInfos(ctx context.Context, userIDs []string) (map[string]models.UserInfo, error)
	IsPro(ctx context.Context, userID string) (bool, error)
	VIPLevel(ctx context.Context, userID string) (int, error)
	GetSettings(ctx context.Context, userID string) (models.Settings, error)
}

type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userInfoColumns = `id, public_id, name, avatar, is_online, last_seen`

// GetDisplayInfo returns the placeholder for deleted or unknown users instead of failing.
func (r *UserRepo) GetDisplayInfo(ctx context.Context, userID string) (models.UserInfo, error) {
	var info models.UserInfo
	err := r.db.GetContext(ctx, &info, `SELECT `+userInfoColumns+` FROM users WHERE id=$1 AND deleted_at IS NULL`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DeletedUserPlaceholder(userID), nil
	}
	if err != nil {
		return models.UserInfo{}, err
	}
	return info, nil
}

func (r *UserRepo) GetDisplayInfos(ctx context.Context, userIDs []string) (map[string]models.UserInfo, error) {
	out := make(map[string]models.UserInfo, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []models.UserInfo
	err := r.db.SelectContext(ctx, &rows, `SELECT `+userInfoColumns+` FROM users WHERE id = ANY($1) AND deleted_at IS NULL`, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	for _, id := range userIDs {
		if _, ok := out[id]; !ok {
			out[id] = models.DeletedUserPlaceholder(id)
		}
	}
	return out, nil
}

func (r *UserRepo) IsPro(ctx context.Context, userID string) (bool, error) {
	var pro bool
	err := r.db.GetContext(ctx, &pro, `SELECT is_pro FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return pro, err
}

func (r *UserRepo) VIPLevel(ctx context.Context, userID string) (int, error) {
	var level int
	err := r.db.GetContext(ctx, &level, `SELECT vip_level FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return level, err
}

// GetSettings falls back to the all-enabled defaults when the user has no settings row.
func (r *UserRepo) GetSettings(ctx context.Context, userID string) (models.Settings, error) {
	var s models.Settings
	err := r.db.GetContext(ctx, &s, `SELECT friends_messages, system_messages, gifts_from_possible_friends, add_followers FROM user_settings WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, err
	}
	return s, nil
}

var _ UserRepository = (*UserRepo)(nil)
