package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"points-ledger/internal/domain"
	"points-ledger/internal/repository"
)

const createTransfersTable = `
CREATE TABLE IF NOT EXISTS transfers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id INTEGER NOT NULL REFERENCES users(id),
	receiver_id INTEGER NOT NULL REFERENCES users(id),
	amount INTEGER NOT NULL CHECK (amount > 0),
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transfers_sender ON transfers(sender_id);
CREATE INDEX IF NOT EXISTS idx_transfers_receiver ON transfers(receiver_id);
`

type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

var _ repository.TransferRepository = (*TransferRepository)(nil)
var _ repository.BalanceReader = (*TransferRepository)(nil)

func (r *TransferRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTransfersTable); err != nil {
		return fmt.Errorf("create transfers table: %w", err)
	}
	return nil
}

func (r *TransferRepository) Create(ctx context.Context, transfer *domain.Transfer) (int64, error) {
	transfer.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO transfers (sender_id, receiver_id, amount, created_at)
VALUES (?, ?, ?, ?)`,
		transfer.SenderID,
		transfer.ReceiverID,
		transfer.Amount,
		transfer.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert transfer: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transfer last insert id: %w", err)
	}
	transfer.ID = id
	return id, nil
}

// BalanceOf derives the user's balance as received − sent + adjusted.
// A single statement keeps the three sums consistent with any concurrent
// append: an insert lands either before or after the whole read.
func (r *TransferRepository) BalanceOf(ctx context.Context, userID int64) (int64, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT
	COALESCE((SELECT SUM(amount) FROM transfers WHERE receiver_id = ?), 0)
	- COALESCE((SELECT SUM(amount) FROM transfers WHERE sender_id = ?), 0)
	+ COALESCE((SELECT SUM(amount) FROM adjustments WHERE user_id = ?), 0)`,
		userID, userID, userID,
	)

	var balance int64
	if err := row.Scan(&balance); err != nil {
		return 0, fmt.Errorf("derive balance: %w", err)
	}
	return balance, nil
}

func (r *TransferRepository) ListBySender(ctx context.Context, senderID int64) ([]domain.HistoryEntry, error) {
	return r.listEntries(ctx, domain.EntrySent, `
SELECT t.id, u.nickname, t.amount, t.created_at
FROM transfers t
JOIN users u ON t.receiver_id = u.id
WHERE t.sender_id = ?`,
		senderID,
	)
}

func (r *TransferRepository) ListByReceiver(ctx context.Context, receiverID int64) ([]domain.HistoryEntry, error) {
	return r.listEntries(ctx, domain.EntryReceived, `
SELECT t.id, u.nickname, t.amount, t.created_at
FROM transfers t
JOIN users u ON t.sender_id = u.id
WHERE t.receiver_id = ?`,
		receiverID,
	)
}

func (r *TransferRepository) listEntries(ctx context.Context, kind domain.EntryKind, query string, userID int64) ([]domain.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s transfers: %w", kind, err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		entry := domain.HistoryEntry{Kind: kind}
		if err := rows.Scan(&entry.RecordID, &entry.Counterparty, &entry.Amount, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s transfer: %w", kind, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s transfers: %w", kind, err)
	}
	return entries, nil
}

func (r *TransferRepository) ListAll(ctx context.Context) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT t.id, s.nickname, rcv.nickname, t.amount, t.created_at
FROM transfers t
JOIN users s ON t.sender_id = s.id
JOIN users rcv ON t.receiver_id = rcv.id`)
	if err != nil {
		return nil, fmt.Errorf("list all transfers: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		entry := domain.AuditEntry{Kind: domain.AuditTransfer}
		if err := rows.Scan(&entry.RecordID, &entry.Sender, &entry.Receiver, &entry.Amount, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer audit row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer audit rows: %w", err)
	}
	return entries, nil
}
