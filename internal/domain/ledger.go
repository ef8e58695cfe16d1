package domain

import "time"

// Transfer is a user-to-user point movement. Records are append-only:
// once written they are never updated or deleted, and the current balance
// of any user is always derived from them rather than stored.
type Transfer struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Amount     int64
	CreatedAt  time.Time
}

// Adjustment is an administrative credit (positive amount) or debit
// (negative amount) applied to a single user. Unlike transfers,
// adjustments are never checked against the target's balance.
type Adjustment struct {
	ID        int64
	AdminID   int64
	UserID    int64
	Amount    int64
	Reason    *string
	CreatedAt time.Time
}

// EntryKind classifies a history entry from the perspective of one user.
type EntryKind string

const (
	EntrySent       EntryKind = "sent"
	EntryReceived   EntryKind = "received"
	EntryAdjustment EntryKind = "adjustment"
)

// HistoryEntry is one row of a user's transaction history. Counterparty is
// the other side's nickname: the receiver for sent entries, the sender for
// received entries, the issuing admin for adjustments. Amount carries the
// stored value (always positive for transfers, signed for adjustments).
type HistoryEntry struct {
	Kind         EntryKind
	RecordID     int64
	Counterparty string
	Amount       int64
	Reason       *string
	CreatedAt    time.Time
}

// AuditKind classifies a system-wide audit entry.
type AuditKind string

const (
	AuditTransfer   AuditKind = "transfer"
	AuditAdjustment AuditKind = "adjustment"
)

// AuditEntry is one row of the admin-only audit view. For transfers the
// Sender and Receiver nicknames are set; for adjustments the Admin and
// User nicknames plus the optional reason are set.
type AuditEntry struct {
	Kind      AuditKind
	RecordID  int64
	Sender    string
	Receiver  string
	Admin     string
	User      string
	Amount    int64
	Reason    *string
	CreatedAt time.Time
}
