package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"points-ledger/internal/domain"
)

func newTestUsers() (*fakeLedgerStore, UserService) {
	store := newFakeLedgerStore()
	svc := NewUserService(store, []string{"admin-code"}, []string{"user-code", "other-user-code"})
	return store, svc
}

func TestLoginCreatesUserWithRoleFromInviteCode(t *testing.T) {
	ctx := context.Background()
	_, svc := newTestUsers()

	admin, err := svc.Login(ctx, "admin-code", "root")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.NotZero(t, admin.ID)

	user, err := svc.Login(ctx, "other-user-code", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
}

func TestLoginReturningUserKeepsOriginalRole(t *testing.T) {
	ctx := context.Background()
	_, svc := newTestUsers()

	first, err := svc.Login(ctx, "user-code", "alice")
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, first.Role)

	// Presenting an admin code later does not upgrade the account.
	again, err := svc.Login(ctx, "admin-code", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, domain.RoleUser, again.Role)
}

func TestLoginRejectsUnknownInviteCode(t *testing.T) {
	ctx := context.Background()
	_, svc := newTestUsers()

	_, err := svc.Login(ctx, "wrong-code", "alice")
	require.ErrorIs(t, err, ErrInvalidInviteCode)
}

func TestLoginRequiresFields(t *testing.T) {
	ctx := context.Background()
	_, svc := newTestUsers()

	_, err := svc.Login(ctx, "", "alice")
	require.Error(t, err)
	_, err = svc.Login(ctx, "user-code", "   ")
	require.Error(t, err)
}

func TestListReturnsKnownUsers(t *testing.T) {
	ctx := context.Background()
	store, svc := newTestUsers()
	store.addUser("root", domain.RoleAdmin)
	store.addUser("alice", domain.RoleUser)

	users, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
