package repository

import (
	"context"

	"points-ledger/internal/domain"
)

// TransferRepository persists user-to-user transfers. The store is
// append-only: there are deliberately no update or delete operations.
type TransferRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, transfer *domain.Transfer) (int64, error)
	// ListBySender returns the user's outgoing transfers annotated with the
	// receiver's nickname as the counterparty.
	ListBySender(ctx context.Context, senderID int64) ([]domain.HistoryEntry, error)
	// ListByReceiver returns the user's incoming transfers annotated with
	// the sender's nickname as the counterparty.
	ListByReceiver(ctx context.Context, receiverID int64) ([]domain.HistoryEntry, error)
	// ListAll returns every transfer with both parties' nicknames resolved.
	ListAll(ctx context.Context) ([]domain.AuditEntry, error)
}

// AdjustmentRepository persists administrative adjustments. Append-only,
// same as TransferRepository.
type AdjustmentRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, adjustment *domain.Adjustment) (int64, error)
	// ListByUser returns adjustments targeting the user, annotated with the
	// issuing admin's nickname as the counterparty.
	ListByUser(ctx context.Context, userID int64) ([]domain.HistoryEntry, error)
	// ListAll returns every adjustment with admin and target nicknames.
	ListAll(ctx context.Context) ([]domain.AuditEntry, error)
}

// BalanceReader derives a user's balance from the recorded history.
// Implementations must compute the value in a single statement so a
// concurrent append is observed either fully or not at all.
type BalanceReader interface {
	BalanceOf(ctx context.Context, userID int64) (int64, error)
}
