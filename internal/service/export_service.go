package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"points-ledger/internal/domain"
	"points-ledger/internal/storage"
)

// ErrStorageNotConfigured is returned when audit export is requested but
// no object storage bucket was configured.
var ErrStorageNotConfigured = errors.New("object storage is not configured")

// ExportService snapshots the system-wide audit view to object storage so
// it can be inspected outside the running service.
type ExportService interface {
	ExportAudit(ctx context.Context) (string, error)
	ListExports(ctx context.Context) ([]storage.ObjectInfo, error)
	ExportURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

type exportService struct {
	ledger    LedgerService
	storage   storage.Service
	bucket    string
	keyPrefix string
}

func NewExportService(ledger LedgerService, store storage.Service, bucket, keyPrefix string) ExportService {
	return &exportService{
		ledger:    ledger,
		storage:   store,
		bucket:    bucket,
		keyPrefix: strings.Trim(keyPrefix, "/"),
	}
}

type auditExportRecord struct {
	Kind      domain.AuditKind `json:"kind"`
	ID        int64            `json:"id"`
	Sender    string           `json:"sender,omitempty"`
	Receiver  string           `json:"receiver,omitempty"`
	Admin     string           `json:"admin,omitempty"`
	User      string           `json:"user,omitempty"`
	Amount    int64            `json:"amount"`
	Reason    *string          `json:"reason,omitempty"`
	CreatedAt string           `json:"created_at"`
}

type auditExport struct {
	ExportedAt string              `json:"exported_at"`
	Entries    []auditExportRecord `json:"entries"`
}

func (s *exportService) ExportAudit(ctx context.Context) (string, error) {
	if s.storage == nil || s.bucket == "" {
		return "", ErrStorageNotConfigured
	}

	entries, err := s.ledger.AllTransactions(ctx)
	if err != nil {
		return "", err
	}

	export := auditExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Entries:    make([]auditExportRecord, len(entries)),
	}
	for i, entry := range entries {
		export.Entries[i] = auditExportRecord{
			Kind:      entry.Kind,
			ID:        entry.RecordID,
			Sender:    entry.Sender,
			Receiver:  entry.Receiver,
			Admin:     entry.Admin,
			User:      entry.User,
			Amount:    entry.Amount,
			Reason:    entry.Reason,
			CreatedAt: entry.CreatedAt.Format(time.RFC3339),
		}
	}

	body, err := json.Marshal(export)
	if err != nil {
		return "", fmt.Errorf("marshal audit export: %w", err)
	}

	key := fmt.Sprintf("audit-%s.json", uuid.NewString())
	if s.keyPrefix != "" {
		key = s.keyPrefix + "/" + key
	}

	if _, err := s.storage.PutObject(ctx, bytes.NewReader(body), storage.PutOptions{
		Bucket:      s.bucket,
		Key:         key,
		ContentType: "application/json",
	}); err != nil {
		return "", err
	}
	return key, nil
}

func (s *exportService) ListExports(ctx context.Context) ([]storage.ObjectInfo, error) {
	if s.storage == nil || s.bucket == "" {
		return nil, ErrStorageNotConfigured
	}
	return s.storage.ListObjects(ctx, s.bucket, s.keyPrefix)
}

func (s *exportService) ExportURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if s.storage == nil || s.bucket == "" {
		return "", ErrStorageNotConfigured
	}
	return s.storage.GetObjectURL(ctx, s.bucket, key, expires)
}
