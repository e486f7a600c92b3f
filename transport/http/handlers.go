package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/splatsvc/coralgate/core"
	"github.com/splatsvc/coralgate/ports"
	"github.com/splatsvc/coralgate/service"
)

// Handlers exposes the auth, refresh, and query services over HTTP for the
// chat front-end. Responses carry a short kind-specific message per error;
// raw upstream detail stays in the logs.
type Handlers struct {
	auth    *service.AuthService
	refresh *service.RefreshService
	query   *service.QueryService
	store   ports.TokenStore
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(
	auth *service.AuthService,
	refresh *service.RefreshService,
	query *service.QueryService,
	store ports.TokenStore,
) *Handlers {
	return &Handlers{
		auth:    auth,
		refresh: refresh,
		query:   query,
		store:   store,
	}
}

// BeginLoginRequest identifies the external user starting a login attempt.
type BeginLoginRequest struct {
	ExternalID string `json:"external_id" binding:"required"`
}

// BeginLoginResponse carries the PKCE material the front-end must hold and
// send back on the complete step. It is never persisted server-side.
type BeginLoginResponse struct {
	State     string `json:"state"`
	Verifier  string `json:"verifier"`
	Challenge string `json:"challenge"`
	LoginURL  string `json:"login_url"`
}

// CompleteLoginRequest carries the pasted-back callback URL plus the PKCE
// material from the begin step.
type CompleteLoginRequest struct {
	ExternalID    string `json:"external_id" binding:"required"`
	RedirectedURL string `json:"redirected_url" binding:"required"`
	State         string `json:"state" binding:"required"`
	Verifier      string `json:"verifier" binding:"required"`
	Challenge     string `json:"challenge" binding:"required"`
}

// UserRequest identifies an external user.
type UserRequest struct {
	ExternalID string `json:"external_id" binding:"required"`
}

// QueryRequest names a persisted query and its variables.
type QueryRequest struct {
	ExternalID string                 `json:"external_id" binding:"required"`
	QueryName  string                 `json:"query_name" binding:"required"`
	Variables  map[string]interface{} `json:"variables"`
}

// BeginLogin handles the login-link generation endpoint.
func (h *Handlers) BeginLogin(c *gin.Context) {
	var req BeginLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	challenge, err := h.auth.BeginLogin(c.Request.Context(), req.ExternalID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, BeginLoginResponse{
		State:     challenge.State,
		Verifier:  challenge.Verifier,
		Challenge: challenge.Challenge,
		LoginURL:  challenge.LoginURL,
	})
}

// CompleteLogin handles the callback-URL exchange endpoint.
func (h *Handlers) CompleteLogin(c *gin.Context) {
	var req CompleteLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	challenge := &core.LoginChallenge{
		State:     req.State,
		Verifier:  req.Verifier,
		Challenge: req.Challenge,
	}

	user, err := h.auth.CompleteLogin(c.Request.Context(), req.ExternalID, req.RedirectedURL, challenge)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"external_id": user.ExternalID,
		"language":    user.Language,
		"country":     user.Country,
	})
}

// Refresh handles the volatile-token refresh endpoint.
func (h *Handlers) Refresh(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.store.GetUser(c.Request.Context(), req.ExternalID)
	if err != nil {
		writeError(c, err)
		return
	}

	outcome, err := h.refresh.EnsureFresh(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"outcome": outcome.String()})
}

// Logout handles the account removal endpoint.
func (h *Handlers) Logout(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.ExternalID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

// Query handles the persisted-query execution endpoint.
func (h *Handlers) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := h.query.Execute(c.Request.Context(), req.ExternalID, req.QueryName, req.Variables)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json", result)
}

// writeError maps domain errors onto status codes and short user-facing
// messages.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no account is linked; log in first"})
		return
	case errors.Is(err, core.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": "an account is already linked; log out first"})
		return
	}

	switch core.KindOf(err) {
	case core.KindInvalidURL:
		c.JSON(http.StatusBadRequest, gin.H{"error": "the provided URL was not valid"})
	case core.KindInvalidToken:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "a stored token was rejected; try again or log in anew"})
	case core.KindUserNotRegistered:
		c.JSON(http.StatusForbidden, gin.H{"error": "you must play at least one game online to use this application"})
	case core.KindObsoleteVersion:
		c.JSON(http.StatusBadGateway, gin.H{"error": "the service is running an outdated client version"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "an upstream request failed; try again later"})
	}
}
