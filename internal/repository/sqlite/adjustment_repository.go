package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"points-ledger/internal/domain"
	"points-ledger/internal/repository"
)

const createAdjustmentsTable = `
CREATE TABLE IF NOT EXISTS adjustments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	admin_id INTEGER NOT NULL REFERENCES users(id),
	user_id INTEGER NOT NULL REFERENCES users(id),
	amount INTEGER NOT NULL,
	reason TEXT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_adjustments_user ON adjustments(user_id);
`

type AdjustmentRepository struct {
	db *sql.DB
}

func NewAdjustmentRepository(db *sql.DB) repository.AdjustmentRepository {
	return &AdjustmentRepository{db: db}
}

func (r *AdjustmentRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAdjustmentsTable); err != nil {
		return fmt.Errorf("create adjustments table: %w", err)
	}
	return nil
}

func (r *AdjustmentRepository) Create(ctx context.Context, adjustment *domain.Adjustment) (int64, error) {
	adjustment.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO adjustments (admin_id, user_id, amount, reason, created_at)
VALUES (?, ?, ?, ?, ?)`,
		adjustment.AdminID,
		adjustment.UserID,
		adjustment.Amount,
		nullableString(adjustment.Reason),
		adjustment.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert adjustment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("adjustment last insert id: %w", err)
	}
	adjustment.ID = id
	return id, nil
}

func (r *AdjustmentRepository) ListByUser(ctx context.Context, userID int64) ([]domain.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT a.id, u.nickname, a.amount, a.reason, a.created_at
FROM adjustments a
JOIN users u ON a.admin_id = u.id
WHERE a.user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		entry := domain.HistoryEntry{Kind: domain.EntryAdjustment}
		var reason sql.NullString
		if err := rows.Scan(&entry.RecordID, &entry.Counterparty, &entry.Amount, &reason, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		if reason.Valid {
			entry.Reason = &reason.String
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate adjustments: %w", err)
	}
	return entries, nil
}

func (r *AdjustmentRepository) ListAll(ctx context.Context) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT a.id, adm.nickname, u.nickname, a.amount, a.reason, a.created_at
FROM adjustments a
JOIN users adm ON a.admin_id = adm.id
JOIN users u ON a.user_id = u.id`)
	if err != nil {
		return nil, fmt.Errorf("list all adjustments: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		entry := domain.AuditEntry{Kind: domain.AuditAdjustment}
		var reason sql.NullString
		if err := rows.Scan(&entry.RecordID, &entry.Admin, &entry.User, &entry.Amount, &reason, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan adjustment audit row: %w", err)
		}
		if reason.Valid {
			entry.Reason = &reason.String
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate adjustment audit rows: %w", err)
	}
	return entries, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
