package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"points-ledger/internal/repository/sqlite"
	"points-ledger/internal/service"
	"points-ledger/internal/storage"
)

const (
	testAdminCode = "admin-code"
	testUserCode  = "user-code"
	testSecret    = "test-secret"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return newTestRouterWithExports(t, nil)
}

func newTestRouterWithExports(t *testing.T, exports service.ExportService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	userRepo := sqlite.NewUserRepository(db)
	transferRepo := sqlite.NewTransferRepository(db)
	adjustmentRepo := sqlite.NewAdjustmentRepository(db)
	require.NoError(t, userRepo.Init(ctx))
	require.NoError(t, transferRepo.Init(ctx))
	require.NoError(t, adjustmentRepo.Init(ctx))

	users := service.NewUserService(userRepo, []string{testAdminCode}, []string{testUserCode})
	ledger := service.NewLedgerService(userRepo, transferRepo, adjustmentRepo, transferRepo)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	router := gin.New()
	handler := NewHandler(users, ledger, exports, logger, testSecret, time.Hour)
	handler.RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), target))
}

func login(t *testing.T, router *gin.Engine, code, nickname string) (string, int64) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"invite_code": code,
		"nickname":    nickname,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string       `json:"token"`
		User  UserResponse `json:"user"`
	}
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.User.ID
}

func TestLogin(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{"nickname": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"invite_code": "wrong",
		"nickname":    "alice",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _ := login(t, router, testAdminCode, "root")

	rec = doJSON(t, router, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me UserResponse
	decodeBody(t, rec, &me)
	assert.Equal(t, "root", me.Nickname)
	assert.Equal(t, "admin", me.Role)
}

func TestAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/transactions/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/transactions/balance", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	router := newTestRouter(t)
	userToken, userID := login(t, router, testUserCode, "alice")

	rec := doJSON(t, router, http.MethodPost, "/api/admin/adjust", userToken, gin.H{
		"user_id": userID,
		"amount":  100,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/admin/transactions", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTransferFlow(t *testing.T) {
	router := newTestRouter(t)
	adminToken, _ := login(t, router, testAdminCode, "root")
	aliceToken, aliceID := login(t, router, testUserCode, "alice")
	bobToken, _ := login(t, router, testUserCode, "bob")

	rec := doJSON(t, router, http.MethodPost, "/api/admin/adjust", adminToken, gin.H{
		"user_id": aliceID,
		"amount":  1000,
		"reason":  "initial grant",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assertBalance(t, router, aliceToken, 1000)

	rec = doJSON(t, router, http.MethodPost, "/api/transactions/send", aliceToken, gin.H{
		"receiver_nickname": "bob",
		"amount":            300,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assertBalance(t, router, aliceToken, 700)
	assertBalance(t, router, bobToken, 300)

	// Insufficient balance leaves both balances untouched.
	rec = doJSON(t, router, http.MethodPost, "/api/transactions/send", aliceToken, gin.H{
		"receiver_nickname": "bob",
		"amount":            800,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assertBalance(t, router, aliceToken, 700)
	assertBalance(t, router, bobToken, 300)

	rec = doJSON(t, router, http.MethodPost, "/api/transactions/send", aliceToken, gin.H{
		"receiver_nickname": "alice",
		"amount":            10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/transactions/send", aliceToken, gin.H{
		"receiver_nickname": "nobody",
		"amount":            10,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/transactions/send", aliceToken, gin.H{
		"receiver_nickname": "bob",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/admin/adjust", adminToken, gin.H{
		"user_id": aliceID,
		"amount":  -1000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assertBalance(t, router, aliceToken, -300)
}

func TestHistoryAndAudit(t *testing.T) {
	router := newTestRouter(t)
	adminToken, _ := login(t, router, testAdminCode, "root")
	aliceToken, aliceID := login(t, router, testUserCode, "alice")
	login(t, router, testUserCode, "bob")

	rec := doJSON(t, router, http.MethodPost, "/api/admin/adjust", adminToken, gin.H{
		"user_id": aliceID,
		"amount":  500,
		"reason":  "grant",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/transactions/send", aliceToken, gin.H{
		"receiver_nickname": "bob",
		"amount":            200,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/transactions/history", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []HistoryEntryResponse
	decodeBody(t, rec, &history)
	require.Len(t, history, 2)
	assert.Equal(t, "sent", history[0].Type)
	assert.Equal(t, "bob", history[0].Counterparty)
	assert.Equal(t, "adjustment", history[1].Type)
	assert.Equal(t, "root", history[1].Counterparty)
	require.NotNil(t, history[1].Reason)
	assert.Equal(t, "grant", *history[1].Reason)

	rec = doJSON(t, router, http.MethodGet, "/api/admin/transactions", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var audit []AuditEntryResponse
	decodeBody(t, rec, &audit)
	require.Len(t, audit, 2)
	assert.Equal(t, "transfer", audit[0].Type)
	assert.Equal(t, "alice", audit[0].Sender)
	assert.Equal(t, "bob", audit[0].Receiver)
	assert.Equal(t, "adjustment", audit[1].Type)
	assert.Equal(t, "root", audit[1].Admin)
	assert.Equal(t, "alice", audit[1].User)
}

func TestAdjustValidation(t *testing.T) {
	router := newTestRouter(t)
	adminToken, _ := login(t, router, testAdminCode, "root")

	rec := doJSON(t, router, http.MethodPost, "/api/admin/adjust", adminToken, gin.H{
		"user_id": int64(9999),
		"amount":  100,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/admin/adjust", adminToken, gin.H{
		"user_id": int64(1),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportUnavailableWithoutStorage(t *testing.T) {
	router := newTestRouter(t)
	adminToken, _ := login(t, router, testAdminCode, "root")

	rec := doJSON(t, router, http.MethodPost, "/api/admin/export", adminToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/api/admin/exports", adminToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// stubExportService serves the export routes without talking to real
// object storage.
type stubExportService struct{}

func (stubExportService) ExportAudit(ctx context.Context) (string, error) {
	return "ledger-exports/audit-stub.json", nil
}

func (stubExportService) ListExports(ctx context.Context) ([]storage.ObjectInfo, error) {
	mod := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return []storage.ObjectInfo{
		{Key: "ledger-exports/audit-stub.json", Size: 42, LastModified: &mod},
	}, nil
}

func (stubExportService) ExportURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://exports.example.com/" + key, nil
}

func TestListExportsIncludesDownloadURL(t *testing.T) {
	router := newTestRouterWithExports(t, stubExportService{})
	adminToken, _ := login(t, router, testAdminCode, "root")

	rec := doJSON(t, router, http.MethodPost, "/api/admin/export", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/admin/exports", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var objects []ExportObjectResponse
	decodeBody(t, rec, &objects)
	require.Len(t, objects, 1)
	assert.Equal(t, "ledger-exports/audit-stub.json", objects[0].Key)
	assert.Equal(t, int64(42), objects[0].Size)
	assert.Equal(t, "https://exports.example.com/ledger-exports/audit-stub.json", objects[0].URL)
	require.NotNil(t, objects[0].LastModified)
	assert.Equal(t, "2026-08-01T12:00:00Z", *objects[0].LastModified)
}

func TestListUsers(t *testing.T) {
	router := newTestRouter(t)
	token, _ := login(t, router, testUserCode, "alice")
	login(t, router, testUserCode, "bob")

	rec := doJSON(t, router, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []UserResponse
	decodeBody(t, rec, &users)
	assert.Len(t, users, 2)
}

func assertBalance(t *testing.T, router *gin.Engine, token string, want int64) {
	t.Helper()
	rec := doJSON(t, router, http.MethodGet, "/api/transactions/balance", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Balance int64 `json:"balance"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, want, resp.Balance)
}
