package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/resvia/resvia/models"
	"github.com/resvia/resvia/services"
	"github.com/resvia/resvia/utils"
)

// APIKeyHandler is the super-admin management surface for consumer keys.
type APIKeyHandler struct {
	keys *services.APIKeyService
}

func CreateAPIKeyHandler(keys *services.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{keys: keys}
}

func (h *APIKeyHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, utils.ErrInvalidRequest)
		return
	}

	resp, err := h.keys.CreateKey(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	// The only response that ever carries the full token.
	writeJSON(w, http.StatusCreated, resp)
}

func (h *APIKeyHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	keys, err := h.keys.ListKeys(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"keys": keys})
}

func (h *APIKeyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key, err := h.keys.GetKey(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"key": key})
}

func (h *APIKeyHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, utils.ErrInvalidRequest)
		return
	}

	key, err := h.keys.UpdateKey(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"key": key})
}

func (h *APIKeyHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.DeleteKey(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
