package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"points-ledger/internal/domain"
	"points-ledger/internal/repository"
)

var (
	// ErrInvalidAmount indicates a non-positive transfer amount or a
	// zero adjustment amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrReceiverNotFound indicates the receiver nickname resolves to no user.
	ErrReceiverNotFound = errors.New("receiver not found")
	// ErrSelfTransfer indicates a user tried to send points to themselves.
	ErrSelfTransfer = errors.New("cannot send points to yourself")
	// ErrInsufficientBalance indicates the sender's derived balance does not
	// cover the requested amount.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUserNotFound indicates an adjustment target that does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// LedgerService is the accounting core. Balances are never stored: every
// read folds the append-only transfer and adjustment history, and every
// write is a single immutable record.
type LedgerService interface {
	// Transfer validates and records a user-to-user point movement. The
	// balance check and the append are serialized per sender, so two
	// concurrent transfers that are only individually affordable cannot
	// both succeed.
	Transfer(ctx context.Context, senderID int64, receiverNickname string, amount int64) (*domain.Transfer, error)
	// Adjust records an administrative credit or debit. The target's
	// balance is deliberately not checked: adjustments are authoritative
	// corrections and may drive a balance negative.
	Adjust(ctx context.Context, adminID, targetID int64, amount int64, reason *string) (*domain.Adjustment, error)
	// Balance derives the user's current balance from history.
	Balance(ctx context.Context, userID int64) (int64, error)
	// History returns the user's merged sent/received/adjustment entries,
	// most recent first.
	History(ctx context.Context, userID int64) ([]domain.HistoryEntry, error)
	// AllTransactions returns the system-wide audit view, most recent first.
	AllTransactions(ctx context.Context) ([]domain.AuditEntry, error)
}

type ledgerService struct {
	users       repository.UserRepository
	transfers   repository.TransferRepository
	adjustments repository.AdjustmentRepository
	balances    repository.BalanceReader

	mu          sync.Mutex
	senderLocks map[int64]*sync.Mutex
}

func NewLedgerService(
	users repository.UserRepository,
	transfers repository.TransferRepository,
	adjustments repository.AdjustmentRepository,
	balances repository.BalanceReader,
) LedgerService {
	return &ledgerService{
		users:       users,
		transfers:   transfers,
		adjustments: adjustments,
		balances:    balances,
		senderLocks: make(map[int64]*sync.Mutex),
	}
}

// senderLock returns the mutex guarding check-then-append for one sender.
// Only transfers decrement a balance, so holding the sender's lock is
// enough to rule out overdraft; no operation ever needs two locks.
func (s *ledgerService) senderLock(senderID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.senderLocks[senderID]
	if !ok {
		lock = &sync.Mutex{}
		s.senderLocks[senderID] = lock
	}
	return lock
}

func (s *ledgerService) Transfer(ctx context.Context, senderID int64, receiverNickname string, amount int64) (*domain.Transfer, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	receiver, err := s.users.GetByNickname(ctx, strings.TrimSpace(receiverNickname))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, ErrReceiverNotFound
		}
		return nil, err
	}

	if receiver.ID == senderID {
		return nil, ErrSelfTransfer
	}

	lock := s.senderLock(senderID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := s.balances.BalanceOf(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientBalance
	}

	transfer := &domain.Transfer{
		SenderID:   senderID,
		ReceiverID: receiver.ID,
		Amount:     amount,
	}
	if _, err := s.transfers.Create(ctx, transfer); err != nil {
		return nil, err
	}
	return transfer, nil
}

func (s *ledgerService) Adjust(ctx context.Context, adminID, targetID int64, amount int64, reason *string) (*domain.Adjustment, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if reason != nil {
		trimmed := strings.TrimSpace(*reason)
		if trimmed == "" {
			reason = nil
		} else {
			reason = &trimmed
		}
	}

	adjustment := &domain.Adjustment{
		AdminID: adminID,
		UserID:  targetID,
		Amount:  amount,
		Reason:  reason,
	}
	if _, err := s.adjustments.Create(ctx, adjustment); err != nil {
		return nil, err
	}
	return adjustment, nil
}

func (s *ledgerService) Balance(ctx context.Context, userID int64) (int64, error) {
	return s.balances.BalanceOf(ctx, userID)
}

func (s *ledgerService) History(ctx context.Context, userID int64) ([]domain.HistoryEntry, error) {
	sent, err := s.transfers.ListBySender(ctx, userID)
	if err != nil {
		return nil, err
	}
	received, err := s.transfers.ListByReceiver(ctx, userID)
	if err != nil {
		return nil, err
	}
	adjusted, err := s.adjustments.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.HistoryEntry, 0, len(sent)+len(received)+len(adjusted))
	entries = append(entries, sent...)
	entries = append(entries, received...)
	entries = append(entries, adjusted...)

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		// Timestamps can collide; break ties by record id then kind so the
		// order is deterministic.
		if a.RecordID != b.RecordID {
			return a.RecordID > b.RecordID
		}
		return a.Kind < b.Kind
	})
	return entries, nil
}

func (s *ledgerService) AllTransactions(ctx context.Context) ([]domain.AuditEntry, error) {
	transfers, err := s.transfers.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	adjustments, err := s.adjustments.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.AuditEntry, 0, len(transfers)+len(adjustments))
	entries = append(entries, transfers...)
	entries = append(entries, adjustments...)

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.RecordID != b.RecordID {
			return a.RecordID > b.RecordID
		}
		return a.Kind < b.Kind
	})
	return entries, nil
}
