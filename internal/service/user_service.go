package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"points-ledger/internal/domain"
	"points-ledger/internal/repository"
)

var (
	// ErrInvalidInviteCode indicates that the presented invite code matches
	// neither the admin nor the user code list.
	ErrInvalidInviteCode = errors.New("invalid invite code")
	// ErrNicknameTaken is returned when a login race creates the same
	// nickname twice; the loser sees this error.
	ErrNicknameTaken = errors.New("nickname already taken")
)

// UserService describes identity operations. A user is created on first
// successful login and authenticated by nickname afterwards; the role
// assigned at creation never changes.
type UserService interface {
	Login(ctx context.Context, inviteCode, nickname string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type userService struct {
	users      repository.UserRepository
	adminCodes []string
	userCodes  []string
}

func NewUserService(users repository.UserRepository, adminCodes, userCodes []string) UserService {
	return &userService{
		users:      users,
		adminCodes: trimCodes(adminCodes),
		userCodes:  trimCodes(userCodes),
	}
}

func (s *userService) Login(ctx context.Context, inviteCode, nickname string) (*domain.User, error) {
	inviteCode = strings.TrimSpace(inviteCode)
	nickname = strings.TrimSpace(nickname)

	if inviteCode == "" {
		return nil, errors.New("invite code is required")
	}
	if nickname == "" {
		return nil, errors.New("nickname is required")
	}

	role, ok := s.resolveRole(inviteCode)
	if !ok {
		return nil, ErrInvalidInviteCode
	}

	// Returning users keep the role they were created with, regardless of
	// which valid code they present on a later login.
	user, err := s.users.GetByNickname(ctx, nickname)
	if err == nil {
		return user, nil
	}
	if !strings.Contains(strings.ToLower(err.Error()), "not found") {
		return nil, err
	}

	user = &domain.User{
		Nickname: nickname,
		Role:     role,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil, ErrNicknameTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

func (s *userService) resolveRole(code string) (domain.Role, bool) {
	if matchesCode(code, s.adminCodes) {
		return domain.RoleAdmin, true
	}
	if matchesCode(code, s.userCodes) {
		return domain.RoleUser, true
	}
	return "", false
}

func matchesCode(code string, codes []string) bool {
	matched := false
	for _, candidate := range codes {
		if subtle.ConstantTimeCompare([]byte(code), []byte(candidate)) == 1 {
			matched = true
		}
	}
	return matched
}

func trimCodes(codes []string) []string {
	var out []string
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code != "" {
			out = append(out, code)
		}
	}
	return out
}
