package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"points-ledger/internal/domain"
	"points-ledger/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	ledger   service.LedgerService
	exports  service.ExportService
	logger   *logrus.Logger
	secret   string
	tokenTTL time.Duration
}

func NewHandler(users service.UserService, ledger service.LedgerService, exports service.ExportService, logger *logrus.Logger, jwtSecret string, tokenTTL time.Duration) *Handler {
	return &Handler{
		users:    users,
		ledger:   ledger,
		exports:  exports,
		logger:   logger,
		secret:   jwtSecret,
		tokenTTL: tokenTTL,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	router.Use(h.requestLogger())

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
		api.POST("/auth/login", h.login)

		authed := api.Group("", authMiddleware(h.secret))
		{
			authed.GET("/auth/me", h.me)
			authed.GET("/users", h.listUsers)
			authed.GET("/transactions/balance", h.balance)
			authed.POST("/transactions/send", h.send)
			authed.GET("/transactions/history", h.history)
		}

		admin := api.Group("/admin", authMiddleware(h.secret), adminMiddleware())
		{
			admin.POST("/adjust", h.adjust)
			admin.GET("/transactions", h.auditTransactions)
			admin.POST("/export", h.exportAudit)
			admin.GET("/exports", h.listExports)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Info("request")
	}
}

type loginRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
	Nickname   string `json:"nickname" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invite code and nickname are required"})
		return
	}

	user, err := h.users.Login(c.Request.Context(), req.InviteCode, req.Nickname)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInviteCode):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNicknameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	token, err := issueToken(h.secret, h.tokenTTL, user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  userToResponse(user),
	})
}

func (h *Handler) me(c *gin.Context) {
	identity := identityFrom(c)
	user, err := h.users.GetByID(c.Request.Context(), identity.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(&users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) balance(c *gin.Context) {
	identity := identityFrom(c)
	balance, err := h.ledger.Balance(c.Request.Context(), identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

type sendRequest struct {
	ReceiverNickname string `json:"receiver_nickname" binding:"required"`
	Amount           int64  `json:"amount" binding:"required"`
}

func (h *Handler) send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiver nickname and amount are required"})
		return
	}

	identity := identityFrom(c)
	transfer, err := h.ledger.Transfer(c.Request.Context(), identity.UserID, req.ReceiverNickname, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReceiverNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidAmount),
			errors.Is(err, service.ErrSelfTransfer),
			errors.Is(err, service.ErrInsufficientBalance):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "points sent",
		"transfer": transferToResponse(transfer),
	})
}

func (h *Handler) history(c *gin.Context) {
	identity := identityFrom(c)
	entries, err := h.ledger.History(c.Request.Context(), identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]HistoryEntryResponse, len(entries))
	for i := range entries {
		resp[i] = historyEntryToResponse(entries[i])
	}
	c.JSON(http.StatusOK, resp)
}

type adjustRequest struct {
	UserID int64   `json:"user_id" binding:"required"`
	Amount int64   `json:"amount" binding:"required"`
	Reason *string `json:"reason"`
}

func (h *Handler) adjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id and a non-zero amount are required"})
		return
	}

	identity := identityFrom(c)
	adjustment, err := h.ledger.Adjust(c.Request.Context(), identity.UserID, req.UserID, req.Amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "points adjusted",
		"adjustment": adjustmentToResponse(adjustment),
	})
}

func (h *Handler) auditTransactions(c *gin.Context) {
	entries, err := h.ledger.AllTransactions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]AuditEntryResponse, len(entries))
	for i := range entries {
		resp[i] = auditEntryToResponse(entries[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) exportAudit(c *gin.Context) {
	if h.exports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object storage is not configured"})
		return
	}

	key, err := h.exports.ExportAudit(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrStorageNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key})
}

// exportURLTTL bounds how long a download link from the exports listing
// stays valid.
const exportURLTTL = 15 * time.Minute

func (h *Handler) listExports(c *gin.Context) {
	if h.exports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object storage is not configured"})
		return
	}

	objects, err := h.exports.ListExports(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrStorageNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]ExportObjectResponse, len(objects))
	for i := range objects {
		url, err := h.exports.ExportURL(c.Request.Context(), objects[i].Key, exportURLTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp[i] = ExportObjectResponse{Key: objects[i].Key, Size: objects[i].Size, URL: url}
		if objects[i].LastModified != nil && !objects[i].LastModified.IsZero() {
			v := objects[i].LastModified.Format(time.RFC3339)
			resp[i].LastModified = &v
		}
	}
	c.JSON(http.StatusOK, resp)
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

type TransferResponse struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Amount     int64  `json:"amount"`
	CreatedAt  string `json:"created_at"`
}

type AdjustmentResponse struct {
	ID        int64   `json:"id"`
	AdminID   int64   `json:"admin_id"`
	UserID    int64   `json:"user_id"`
	Amount    int64   `json:"amount"`
	Reason    *string `json:"reason,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type HistoryEntryResponse struct {
	Type         string  `json:"type"`
	Counterparty string  `json:"counterparty"`
	Amount       int64   `json:"amount"`
	Reason       *string `json:"reason,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

type AuditEntryResponse struct {
	Type      string  `json:"type"`
	ID        int64   `json:"id"`
	Sender    string  `json:"sender,omitempty"`
	Receiver  string  `json:"receiver,omitempty"`
	Admin     string  `json:"admin,omitempty"`
	User      string  `json:"user,omitempty"`
	Amount    int64   `json:"amount"`
	Reason    *string `json:"reason,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type ExportObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	URL          string  `json:"url"`
	LastModified *string `json:"last_modified,omitempty"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Nickname: user.Nickname,
		Role:     string(user.Role),
	}
}

func transferToResponse(transfer *domain.Transfer) TransferResponse {
	return TransferResponse{
		ID:         transfer.ID,
		SenderID:   transfer.SenderID,
		ReceiverID: transfer.ReceiverID,
		Amount:     transfer.Amount,
		CreatedAt:  transfer.CreatedAt.Format(time.RFC3339),
	}
}

func adjustmentToResponse(adjustment *domain.Adjustment) AdjustmentResponse {
	return AdjustmentResponse{
		ID:        adjustment.ID,
		AdminID:   adjustment.AdminID,
		UserID:    adjustment.UserID,
		Amount:    adjustment.Amount,
		Reason:    adjustment.Reason,
		CreatedAt: adjustment.CreatedAt.Format(time.RFC3339),
	}
}

func historyEntryToResponse(entry domain.HistoryEntry) HistoryEntryResponse {
	return HistoryEntryResponse{
		Type:         string(entry.Kind),
		Counterparty: entry.Counterparty,
		Amount:       entry.Amount,
		Reason:       entry.Reason,
		CreatedAt:    entry.CreatedAt.Format(time.RFC3339),
	}
}

func auditEntryToResponse(entry domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		Type:      string(entry.Kind),
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
