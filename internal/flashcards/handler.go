package flashcards

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/flashlearn/backend/internal/common"
	"github.com/flashlearn/backend/internal/logger"
	"github.com/flashlearn/backend/internal/middleware"
	"github.com/flashlearn/backend/internal/models"
)

type Handler struct {
	service *Service
	log     *logger.Logger
	now     func() time.Time
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log.With("component", "FlashcardHandler"), now: time.Now}
}

// RegisterRoutes registers the library on api and the per-user endpoints on
// protected.
func (h *Handler) RegisterRoutes(api, protected *mux.Router) {
	api.HandleFunc("/flashcards", h.ListFlashcards).Methods("GET")
	api.HandleFunc("/flashcards/{id}", h.GetFlashcard).Methods("GET")
	api.HandleFunc("/topics", h.ListTopics).Methods("GET")
	api.HandleFunc("/categories", h.ListCategories).Methods("GET")

	protected.HandleFunc("/flashcards/generate", h.Generate).Methods("POST")
	protected.HandleFunc("/stats", h.GetStats).Methods("GET")
}

func (h *Handler) ListFlashcards(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, ok1 := intQueryParam(query, "limit", 0)
	offset, ok2 := intQueryParam(query, "offset", 0)
	if !ok1 || !ok2 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "limit and offset must be integers"})
		return
	}

	cards, err := h.service.List(r.Context(), models.FlashcardFilter{
		Topic:      query.Get("topic"),
		Category:   query.Get("category"),
		Difficulty: query.Get("difficulty"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.writeError(w, "list flashcards", err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *Handler) GetFlashcard(w http.ResponseWriter, r *http.Request) {
	card, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, "get flashcard", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *Handler) ListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.service.Topics(r.Context())
	if err != nil {
		h.writeError(w, "list topics", err)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.Categories(r.Context())
	if err != nil {
		h.writeError(w, "list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.Generate(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, "generate flashcards", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	st, err := h.service.Stats(r.Context(), userID, h.now())
	if err != nil {
		h.writeError(w, "compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status, msg := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(op, "error", err)
	}
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

func intQueryParam(query url.Values, key string, defaultVal int) (int, bool) {
	s := query.Get(key)
	if s == "" {
		return defaultVal, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
