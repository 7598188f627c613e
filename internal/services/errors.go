package services

import (
	"errors"
	"fmt"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/repositories"
)

// translate maps store sentinels to API errors and wraps everything else with op.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrConversationNotFound):
		return apperrors.ErrConversationNotFound
	case errors.Is(err, repositories.ErrConversationExists):
		return apperrors.ErrConversationExists
	case errors.Is(err, repositories.ErrMessageNotFound):
		return apperrors.ErrMessageNotFound
	case errors.Is(err, repositories.ErrStickerNotFound):
		return apperrors.ErrStickerNotFound
	case errors.Is(err, repositories.ErrInvalidID):
		return apperrors.ErrInvalidID
	case errors.Is(err, repositories.ErrInsufficientFunds):
		return apperrors.ErrInsufficientCredits
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
