package delivery

import (
	"fmt"
	"net/http"
	"time"

	"perfhub/internal/domain"

	"github.com/gin-gonic/gin"
)

// connectionRequest is the body of a connection update
type connectionRequest struct {
	IsConnected bool       `json:"isConnected"`
	AccessToken string     `json:"accessToken"`
	TokenExpiry *time.Time `json:"tokenExpiry"`
	AccountID   string     `json:"accountId"`
}

// ListConnections returns the status of every supported provider. Tokens
// are never echoed back.
func (h *HTTPHandlers) ListConnections(c *gin.Context) {
	stored, err := h.services.Connections.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to list connections")
		return
	}

	byProvider := make(map[domain.ProviderID]domain.ConnectionStatus, len(stored))
	for _, conn := range stored {
		byProvider[conn.Provider] = conn
	}

	conns := make([]domain.ConnectionStatus, 0, len(domain.LiveProviders))
	for _, provider := range domain.LiveProviders {
		conn, ok := byProvider[provider]
		if !ok {
			conn = domain.ConnectionStatus{Provider: provider}
		}
		conns = append(conns, redact(conn))
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       conns,
		"request_id": c.GetString("request_id"),
	})
}

// PutConnection stores the authorization state of one provider
func (h *HTTPHandlers) PutConnection(c *gin.Context) {
	provider, ok := h.providerParam(c)
	if !ok {
		return
	}

	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid payload", err)
		return
	}

	ctx := c.Request.Context()
	conn := domain.ConnectionStatus{
		Provider:    provider,
		IsConnected: req.IsConnected,
		AccessToken: req.AccessToken,
		TokenExpiry: req.TokenExpiry,
		AccountID:   req.AccountID,
	}
	if existing, found, err := h.services.Connections.Get(ctx, provider); err == nil && found {
		conn.LastSync = existing.LastSync
	}

	if err := h.services.Connections.Upsert(ctx, conn); err != nil {
		h.respondError(c, err, "Failed to update connection")
		return
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"provider":  provider,
		"connected": conn.IsConnected,
	}).Info("Connection updated")

	c.JSON(http.StatusOK, gin.H{
		"data":       redact(conn),
		"request_id": c.GetString("request_id"),
	})
}

// DeleteConnection forgets a provider's authorization
func (h *HTTPHandlers) DeleteConnection(c *gin.Context) {
	provider, ok := h.providerParam(c)
	if !ok {
		return
	}

	if err := h.services.Connections.Remove(c.Request.Context(), provider); err != nil {
		h.respondError(c, err, "Failed to remove connection")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    fmt.Sprintf("%s disconnected", provider.Label()),
		"request_id": c.GetString("request_id"),
	})
}

// SyncConnection pulls one provider's rows on demand
func (h *HTTPHandlers) SyncConnection(c *gin.Context) {
	provider, ok := h.providerParam(c)
	if !ok {
		return
	}

	rng, err := h.resolveRange(c.Query("preset"), c.Query("from"), c.Query("to"))
	if err != nil {
		h.badRequest(c, "Invalid parameters", err)
		return
	}

	result, err := h.services.Live.Sync(c.Request.Context(), provider, rng)
	if err != nil {
		h.respondError(c, err, "Provider sync failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider":   result.Provider,
		"from":       rng.From(),
		"to":         rng.To(),
		"data":       result.Records,
		"total":      len(result.Records),
		"lastSync":   result.LastSync,
		"request_id": c.GetString("request_id"),
	})
}

func (h *HTTPHandlers) providerParam(c *gin.Context) (domain.ProviderID, bool) {
	provider := domain.ProviderID(c.Param("provider"))
	if !provider.Known() {
		h.respondError(c, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider), "Unknown provider")
		return "", false
	}
	return provider, true
}

func redact(conn domain.ConnectionStatus) domain.ConnectionStatus {
	conn.AccessToken = ""
	return conn
}
