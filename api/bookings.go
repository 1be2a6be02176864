package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/resvia/resvia/services"
)

// BookingHandler exposes the read side of bookings to API consumers and the
// state transitions to the platform's internal surface.
type BookingHandler struct {
	bookings *services.BookingService
}

func CreateBookingHandler(bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

func (h *BookingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["establishment"]
	limit, offset := pagination(r)

	bookings, total, err := h.bookings.ListBookings(r.Context(), slug, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bookings": bookings,
		"total":    total,
	})
}

func (h *BookingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	booking, err := h.bookings.GetBooking(r.Context(), vars["establishment"], vars["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"booking": booking})
}

// HandlePaymentSucceeded is the internal trigger stamping the financial
// snapshot and emitting booking.confirmed. Webhook delivery failures never
// surface here.
func (h *BookingHandler) HandlePaymentSucceeded(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	booking, err := h.bookings.HandlePaymentSucceeded(r.Context(), vars["establishment"], vars["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"booking": booking})
}

func (h *BookingHandler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	booking, err := h.bookings.CheckIn(r.Context(), vars["establishment"], vars["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"booking": booking})
}

func (h *BookingHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	booking, err := h.bookings.Cancel(r.Context(), vars["establishment"], vars["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"booking": booking})
}
