package repositories

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationExists   = errors.New("conversation already exists")
	ErrMessageNotFound      = errors.New("message not found")
	ErrStickerNotFound      = errors.New("sticker not found")
	ErrInvalidID            = errors.New("invalid id")
	// ErrStaleWrite is returned when a conditional update lost to a concurrent writer.
	ErrStaleWrite = errors.New("stale write")
	// ErrInsufficientFunds is returned by a debit that would overdraw the wallet.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
