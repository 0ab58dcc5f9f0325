package progress

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/flashlearn/backend/internal/common"
	"github.com/flashlearn/backend/internal/logger"
	"github.com/flashlearn/backend/internal/middleware"
	"github.com/flashlearn/backend/internal/models"
)

type Handler struct {
	service *Service
	log     *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log.With("component", "ProgressHandler")}
}

// RegisterRoutes registers progress endpoints on the protected subrouter.
func (h *Handler) RegisterRoutes(protected *mux.Router) {
	protected.HandleFunc("/progress", h.ListProgress).Methods("GET")
	protected.HandleFunc("/progress", h.UpsertProgress).Methods("POST")
}

func (h *Handler) UpsertProgress(w http.ResponseWriter, r *http.Request) {
	// Zero when absent; the service reports it as unauthenticated.
	userID, _ := middleware.UserID(r.Context())

	var req models.UpsertProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	rec, err := h.service.Upsert(r.Context(), userID, req.FlashcardID, req.IsMastered)
	if err != nil {
		h.writeError(w, "upsert progress", err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) ListProgress(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	records, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.writeError(w, "list progress", err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status, msg := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(op, "error", err)
	}
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
