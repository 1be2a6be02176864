package api

import (
	"net/http"
	"time"

	"github.com/resvia/resvia/models"
	"github.com/resvia/resvia/services"
)

const statsWindow = 24 * time.Hour

// AuditHandler is the read side of both append-only logs, consumed by the
// operator dashboard.
type AuditHandler struct {
	audit *services.AuditService
}

func CreateAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

func (h *AuditHandler) HandleListRequests(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filter := models.APIRequestLogFilter{
		APIKeyID: r.URL.Query().Get("api_key_id"),
		Path:     r.URL.Query().Get("path"),
		Method:   r.URL.Query().Get("method"),
		Limit:    limit,
		Offset:   offset,
	}

	entries, total, err := h.audit.ListAPIRequests(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": entries,
		"total":    total,
	})
}

func (h *AuditHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	requestStats, err := h.audit.APIRequestStats(r.Context(), statsWindow)
	if err != nil {
		writeError(w, err)
		return
	}
	deliveryStats, err := h.audit.DeliveryStats(r.Context(), statsWindow)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"window_hours": int(statsWindow.Hours()),
		"api":          requestStats,
		"deliveries":   deliveryStats,
	})
}
