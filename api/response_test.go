package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/resvia/resvia/utils"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 20},
		{-5, 20},
		{1, 1},
		{100, 100},
		{101, 100},
		{5000, 100},
	}

	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWriteError(t *testing.T) {
	t.Run("api error keeps its status and reason", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeError(w, utils.ErrBookingNotFound)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON body: %v", err)
		}
		if body["reason"] != "booking_not_found" {
			t.Errorf("reason = %q, want %q", body["reason"], "booking_not_found")
		}
	})

	t.Run("wrapped api error unwraps", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeError(w, utils.WrapError(utils.ErrSnapshotImmutable, "stamping"))

		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
		}
	})

	t.Run("unknown error maps to internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeError(w, json.Unmarshal([]byte("{"), &struct{}{}))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}
