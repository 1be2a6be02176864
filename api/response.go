package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/resvia/resvia/middleware"
	"github.com/resvia/resvia/utils"
)

const maxPageLimit = 100

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func writeError(w http.ResponseWriter, err error) {
	apiErr := utils.AsAPIError(err)
	writeJSON(w, apiErr.Code, map[string]string{
		"error":  apiErr.Message,
		"reason": apiErr.Reason,
	})
}

// requireScope rejects a request whose key is hard-scoped to an
// establishment other than the one owning the addressed resource. The
// boundary holds regardless of the key's declared permissions; unscoped
// keys pass.
func requireScope(r *http.Request, establishmentSlug string) error {
	key := middleware.APIKeyFromContext(r.Context())
	if key != nil && key.EstablishmentSlug != nil && *key.EstablishmentSlug != establishmentSlug {
		return utils.ErrScopeMismatch
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}

func pagination(r *http.Request) (limit, offset int) {
	return clampLimit(queryInt(r, "limit")), queryInt(r, "offset")
}
