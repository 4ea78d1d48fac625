// internal/circulation/handler.go
package circulation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultEventBatch = 100
	maxEventBatch     = 1000
)

type Handler struct {
	registry Registry
	logger   *slog.Logger
}

type HandlerOption func(*Handler)

func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

func NewHandler(registry Registry, opts ...HandlerOption) *Handler {
	h := &Handler{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the registry API on a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/items", func(r chi.Router) {
		r.Post("/", h.handleRegisterItem)
		r.Get("/", h.handleListItems)
		r.Get("/{id}", h.handleGetItem)
		r.Get("/{id}/history", h.handleItemHistory)
	})
	r.Route("/members", func(r chi.Router) {
		r.Post("/", h.handleRegisterMember)
		r.Get("/", h.handleListMembers)
		r.Get("/{id}", h.handleGetMember)
	})
	r.Post("/borrow", h.HandleBorrow)
	r.Post("/return", h.HandleReturn)
	r.Get("/events", h.handleEvents)
	r.Get("/stats", h.handleStats)
	r.Get("/healthz", h.handleHealth)

	return r
}

type loanRequest struct {
	MemberID string `json:"member_id"`
	ItemID   string `json:"item_id"`
}

func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.registry.Borrow(r.Context(), req.MemberID, req.ItemID); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.registry.Return(r.Context(), req.MemberID, req.ItemID); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleRegisterItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Author string `json:"author"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.registry.RegisterItem(r.Context(), req.ID, req.Title, req.Author)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	h.writeJSON(w, r, http.StatusCreated, item)
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.registry.ListItems(r.Context()))
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, ok := h.registry.FindItem(r.Context(), id)
	if !ok {
		http.Error(w, "item "+id+" not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, r, http.StatusOK, item)
}

func (h *Handler) handleItemHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.registry.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	h.writeJSON(w, r, http.StatusOK, events)
}

func (h *Handler) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		MaxItems int    `json:"max_items"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	member, err := h.registry.RegisterMember(r.Context(), req.ID, req.Name, req.MaxItems)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	h.writeJSON(w, r, http.StatusCreated, member)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.registry.ListMembers(r.Context()))
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	member, ok := h.registry.FindMember(r.Context(), id)
	if !ok {
		http.Error(w, "member "+id+" not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, r, http.StatusOK, member)
}

// handleEvents pages through the journal: ?from=<last seen sequence>&batch=<n>.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	from, err := queryInt(r, "from", 0)
	if err != nil || from < 0 {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	batch, err := queryInt(r, "batch", defaultEventBatch)
	if err != nil || batch <= 0 {
		http.Error(w, "invalid batch", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, r, http.StatusOK, h.registry.Events(r.Context(), int64(from), min(batch, maxEventBatch)))
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]int{"available": h.registry.AvailableCount(r.Context())})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.CheckInvariants(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.LogAttrs(r.Context(), slog.LevelDebug, "failed to encode response",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrItemUnavailable),
		errors.Is(err, ErrBorrowLimitExceeded),
		errors.Is(err, ErrNotBorrowedByMember),
		errors.Is(err, ErrDuplicateID):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
