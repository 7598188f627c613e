package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

func TestWalletDeduct(t *testing.T) {
	ctx := context.Background()
	wallets, d := newWalletStore(map[string]int64{"A": 500}), &dispatcherRecorder{}
	svc := NewWalletService(wallets, d, nil, zerolog.Nop())

	balance, err := svc.Deduct(ctx, "A", 0, "noop", "")
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)
	assert.Empty(t, d.calls)

	balance, err = svc.Deduct(ctx, "A", 300, "sticker", "ملصق")
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)
	require.Len(t, d.calls, 1)
	payload := d.calls[0].Payload.(models.BalanceChangePayload)
	assert.Equal(t, int64(300), payload.Amount)
	assert.Equal(t, "debit", payload.Type)
	assert.Equal(t, "ملصق", payload.DescriptionAr)

	_, err = svc.Deduct(ctx, "A", 300, "again", "")
	assert.ErrorIs(t, err, apperrors.ErrInsufficientCredits)
	assert.Len(t, d.calls, 1)

	balance, err = svc.Balance(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)
}
