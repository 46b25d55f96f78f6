package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bastionhq/bastion/internal/audit"
	"github.com/bastionhq/bastion/internal/auth"
	"github.com/bastionhq/bastion/internal/models"
	"github.com/bastionhq/bastion/internal/services"
	pkghttp "github.com/bastionhq/bastion/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// LoginAttemptHandler handles login attempt HTTP requests
type LoginAttemptHandler struct {
	service    *services.LoginAttemptService
	dispatcher *audit.Dispatcher
	logger     *slog.Logger
}

// NewLoginAttemptHandler creates a new LoginAttemptHandler
func NewLoginAttemptHandler(service *services.LoginAttemptService, dispatcher *audit.Dispatcher, logger *slog.Logger) *LoginAttemptHandler {
	return &LoginAttemptHandler{
		service:    service,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// LoginAttemptResponse represents a login attempt record in HTTP responses
type LoginAttemptResponse struct {
	ID               string  `json:"id"`
	Domain           string  `json:"domain"`
	Client           string  `json:"client"`
	IdentityProvider string  `json:"identity_provider"`
	Username         string  `json:"username"`
	Attempts         int     `json:"attempts"`
	ExpireAt         *string `json:"expire_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func toLoginAttemptResponse(attempt *models.LoginAttempt) LoginAttemptResponse {
	resp := LoginAttemptResponse{
		ID:               attempt.ID,
		Domain:           attempt.Domain,
		Client:           attempt.Client,
		IdentityProvider: attempt.IdentityProvider,
		Username:         attempt.Username,
		Attempts:         attempt.Attempts,
		CreatedAt:        attempt.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        attempt.UpdatedAt.Format(time.RFC3339),
	}
	if attempt.ExpireAt != nil {
		expireAt := attempt.ExpireAt.Format(time.RFC3339)
		resp.ExpireAt = &expireAt
	}
	return resp
}

// findLoginAttemptRequest carries the criteria query parameters
type findLoginAttemptRequest struct {
	Domain           string `validate:"required,max=255"`
	Client           string `validate:"required,max=255"`
	IdentityProvider string `validate:"required,max=255"`
	Username         string `validate:"required,max=255"`
}

// FindLoginAttempt handles GET /login-attempts with exact-match criteria
func (h *LoginAttemptHandler) FindLoginAttempt(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := findLoginAttemptRequest{
		Domain:           query.Get("domain"),
		Client:           query.Get("client"),
		IdentityProvider: query.Get("identity_provider"),
		Username:         query.Get("username"),
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	attempt, err := h.service.FindByCriteria(r.Context(), models.LoginAttemptCriteria{
		Domain:           req.Domain,
		Client:           req.Client,
		IdentityProvider: req.IdentityProvider,
		Username:         req.Username,
	})
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			h.logger.Error("failed to find login attempt", slog.Any("error", err))
		}
		pkghttp.WriteModelError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toLoginAttemptResponse(attempt))
}

// GetLoginAttempt handles GET /login-attempts/{id}
func (h *LoginAttemptHandler) GetLoginAttempt(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	if _, err := uuid.Parse(idStr); err != nil {
		pkghttp.WriteBadRequest(w, "invalid login attempt id")
		return
	}

	attempt, err := h.service.GetByID(r.Context(), idStr)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			h.logger.Error("failed to get login attempt", slog.Any("error", err))
		}
		pkghttp.WriteModelError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toLoginAttemptResponse(attempt))
}

// ClearDomainLoginAttempts handles DELETE /domains/{domain}/login-attempts.
// Used on domain teardown; succeeds even when the domain has no records.
func (h *LoginAttemptHandler) ClearDomainLoginAttempts(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	if domain == "" {
		pkghttp.WriteBadRequest(w, "missing domain")
		return
	}

	if err := h.service.ClearDomain(r.Context(), domain); err != nil {
		h.logger.Error("failed to clear domain login attempts",
			slog.String("domain", domain),
			slog.Any("error", err),
		)
		pkghttp.WriteModelError(w, err)
		return
	}

	h.reportCleared(r, domain)

	w.WriteHeader(http.StatusNoContent)
}

// reportCleared audits the teardown. A queue rejection is logged, not
// surfaced: the teardown itself already succeeded.
func (h *LoginAttemptHandler) reportCleared(r *http.Request, domain string) {
	if h.dispatcher == nil {
		return
	}

	actor := ""
	if claims := auth.GetUserFromContext(r); claims != nil {
		actor = claims.UserID
	}

	err := h.dispatcher.Report(context.Background(), audit.AdminAction{
		Type:         audit.EventTypeDomainDeleted,
		Domain:       domain,
		ActorID:      actor,
		ResourceType: "login_attempts",
		ResourceID:   domain,
		Outcome:      audit.OutcomeSuccess,
	})
	if err != nil {
		h.logger.Error("failed to submit domain teardown audit event", slog.Any("error", err))
	}
}
