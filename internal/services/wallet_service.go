package services

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// WalletService debits credits and tells the user their new balance.
type WalletService struct {
	wallets    repositories.WalletRepository
	dispatcher Dispatcher
	audit      *telemetry.AuditEmitter
	log        zerolog.Logger
}

func NewWalletService(wallets repositories.WalletRepository, dispatcher Dispatcher, audit *telemetry.AuditEmitter, log zerolog.Logger) *WalletService {
	return &WalletService{wallets: wallets, dispatcher: dispatcher, audit: audit, log: log}
}

// Deduct atomically debits amount. A non-positive amount changes nothing and returns
// the current balance.
func (s *WalletService) Deduct(ctx context.Context, userID string, amount int64, reason, reasonAr string) (int64, error) {
	if amount <= 0 {
		balance, err := s.wallets.Balance(ctx, userID)
		if err != nil {
			return 0, translate("load balance", err)
		}
		return balance, nil
	}

	balance, err := s.wallets.Debit(ctx, userID, amount, reason, reasonAr)
	if err != nil {
		return 0, translate("debit wallet", err)
	}

	s.dispatcher.DeliverToUser(ctx, models.EventUserBalanceChange, models.BalanceChangePayload{
		Amount:        amount,
		NewBalance:    balance,
		Type:          "debit",
		Description:   reason,
		DescriptionAr: reasonAr,
	}, userID, false)
	s.audit.Emit(ctx, "INFO", telemetry.ActionWalletDebit, reason, observability.RequestIDFromContext(ctx), &userID, map[string]string{
		"amount":  strconv.FormatInt(amount, 10),
		"balance": strconv.FormatInt(balance, 10),
	})
	return balance, nil
}

func (s *WalletService) Balance(ctx context.Context, userID string) (int64, error) {
	balance, err := s.wallets.Balance(ctx, userID)
	if err != nil {
		return 0, translate("load balance", err)
	}
	return balance, nil
}
