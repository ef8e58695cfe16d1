package repository

import (
	"context"

	"points-ledger/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByNickname(ctx context.Context, nickname string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}
