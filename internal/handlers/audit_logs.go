package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bastionhq/bastion/internal/audit"
	pkghttp "github.com/bastionhq/bastion/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AuditTrailReader is the read side of the audit store used by the trail
// endpoint.
type AuditTrailReader interface {
	GetByDomain(ctx context.Context, domain string, limit int, offset int) ([]*audit.Record, error)
	CountByDomain(ctx context.Context, domain string) (int64, error)
}

// AuditLogHandler handles audit trail HTTP requests
type AuditLogHandler struct {
	reader AuditTrailReader
	logger *slog.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(reader AuditTrailReader, logger *slog.Logger) *AuditLogHandler {
	return &AuditLogHandler{
		reader: reader,
		logger: logger,
	}
}

// AuditRecordResponse represents an audit record in HTTP responses
type AuditRecordResponse struct {
	ID         string                 `json:"id"`
	EventType  string                 `json:"event_type"`
	Outcome    string                 `json:"outcome"`
	Actor      string                 `json:"actor,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Domain     string                 `json:"domain,omitempty"`
	OccurredAt string                 `json:"occurred_at"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// AuditTrailResponse is the paged audit trail body
type AuditTrailResponse struct {
	Records []AuditRecordResponse `json:"records"`
	Total   int64                 `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// GetDomainAuditTrail handles GET /domains/{domain}/audit-logs
func (h *AuditLogHandler) GetDomainAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// No persistent audit store configured (redis-backed deployments).
	if h.reader == nil {
		pkghttp.WriteError(w, http.StatusServiceUnavailable, "audit_trail_unavailable", "no audit store configured")
		return
	}

	domain := chi.URLParam(r, "domain")
	if domain == "" {
		pkghttp.WriteBadRequest(w, "missing domain")
		return
	}

	limit := parseQueryInt(r, "limit", 50)
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := parseQueryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	records, err := h.reader.GetByDomain(ctx, domain, limit, offset)
	if err != nil {
		h.logger.Error("failed to query audit trail",
			slog.String("domain", domain),
			slog.Any("error", err),
		)
		pkghttp.WriteModelError(w, err)
		return
	}

	total, err := h.reader.CountByDomain(ctx, domain)
	if err != nil {
		h.logger.Error("failed to count audit trail",
			slog.String("domain", domain),
			slog.Any("error", err),
		)
		pkghttp.WriteModelError(w, err)
		return
	}

	resp := AuditTrailResponse{
		Records: make([]AuditRecordResponse, 0, len(records)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}
	for _, rec := range records {
		resp.Records = append(resp.Records, AuditRecordResponse{
			ID:         rec.ID,
			EventType:  rec.Type,
			Outcome:    string(rec.Outcome),
			Actor:      rec.Actor,
			Target:     rec.Target,
			Domain:     rec.Domain,
			OccurredAt: rec.Timestamp.Format(time.RFC3339),
			Attributes: rec.Attributes,
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

func parseQueryInt(r *http.Request, key string, defaultVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return val
}
