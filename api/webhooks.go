package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/resvia/resvia/models"
	"github.com/resvia/resvia/services"
	"github.com/resvia/resvia/utils"
)

// WebhookHandler manages outbound webhook subscriptions and exposes their
// delivery logs.
type WebhookHandler struct {
	webhooks *services.WebhookService
	audit    *services.AuditService
}

func CreateWebhookHandler(webhooks *services.WebhookService, audit *services.AuditService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, audit: audit}
}

func (h *WebhookHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, utils.ErrInvalidRequest)
		return
	}
	// The target establishment comes from the body here, so the scope
	// boundary is enforced against it, not the route.
	if req.EstablishmentSlug != "" {
		if err := requireScope(r, req.EstablishmentSlug); err != nil {
			writeError(w, err)
			return
		}
	}

	resp, err := h.webhooks.CreateSubscription(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	// The only response that ever carries the signing secret.
	writeJSON(w, http.StatusCreated, resp)
}

func (h *WebhookHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("establishment")
	if slug == "" {
		writeError(w, utils.ErrInvalidRequest)
		return
	}
	if err := requireScope(r, slug); err != nil {
		writeError(w, err)
		return
	}

	subs, err := h.webhooks.ListSubscriptions(r.Context(), slug)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"webhooks": subs})
}

// ownedSubscription resolves an id-addressed subscription and checks the
// caller may reach its establishment.
func (h *WebhookHandler) ownedSubscription(r *http.Request) (*models.WebhookSubscription, error) {
	sub, err := h.webhooks.GetSubscription(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return nil, err
	}
	if err := requireScope(r, sub.EstablishmentSlug); err != nil {
		return nil, err
	}
	return sub, nil
}

func (h *WebhookHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sub, err := h.ownedSubscription(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"webhook": sub})
}

func (h *WebhookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, utils.ErrInvalidRequest)
		return
	}
	if _, err := h.ownedSubscription(r); err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.webhooks.UpdateSubscription(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"webhook": sub})
}

func (h *WebhookHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ownedSubscription(r); err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.webhooks.ActivateSubscription(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"webhook": sub})
}

func (h *WebhookHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ownedSubscription(r); err != nil {
		writeError(w, err)
		return
	}
	if err := h.webhooks.DeleteSubscription(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WebhookHandler) HandleDeliveries(w http.ResponseWriter, r *http.Request) {
	webhookID := mux.Vars(r)["id"]
	if _, err := h.ownedSubscription(r); err != nil {
		writeError(w, err)
		return
	}

	limit, offset := pagination(r)
	entries, total, err := h.audit.ListDeliveries(r.Context(), webhookID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deliveries": entries,
		"total":      total,
	})
}
