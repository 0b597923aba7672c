package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/infrastructure/database"
	"github.com/eslsoft/lexloop/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

// StoreStatsSource exposes the store's query counters to the operator
// endpoint.
type StoreStatsSource interface {
	Snapshot() database.StatsSnapshot
}

// NewHandler mounts the JSON routes with CORS and a per-request deadline.
func NewHandler(svc *Service, store StoreStatsSource, requestTimeout time.Duration, logger *logrus.Logger) http.Handler {
	h := &handler{svc: svc, store: store, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users", h.registerUser)
	mux.HandleFunc("PUT /api/v1/users/{id}/preferences", h.updatePreferences)
	mux.HandleFunc("GET /api/v1/users/{id}/progress", h.progress)

	mux.HandleFunc("POST /api/v1/sessions", h.startSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.getSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/activities/{seq}/advance", h.advanceActivity)
	mux.HandleFunc("POST /api/v1/sessions/{id}/finish", h.finishSession)

	mux.HandleFunc("GET /api/v1/reviews/due", h.getDue)
	mux.HandleFunc("POST /api/v1/attempts", h.submitAttempt)

	mux.HandleFunc("POST /api/v1/items", h.createItem)
	mux.HandleFunc("GET /api/v1/items", h.listItems)
	mux.HandleFunc("GET /api/v1/items/{kind}/{id}", h.getItem)
	mux.HandleFunc("POST /api/v1/items/{kind}/{id}/audio", h.attachAudio)

	mux.HandleFunc("POST /api/v1/ingest/runs", h.ingestRun)

	mux.HandleFunc("GET /api/v1/admin/store-stats", h.storeStats)

	var wrapped http.Handler = mux
	if requestTimeout > 0 {
		wrapped = withDeadline(wrapped, requestTimeout)
	}
	return cors.Default().Handler(wrapped)
}

// withDeadline bounds every request context so a stuck store query cannot
// hold a handler forever.
func withDeadline(next http.Handler, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeoutCause(r.Context(), timeout, entity.ErrDeadline)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type handler struct {
	svc    *Service
	store  StoreStatsSource
	logger *logrus.Logger
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("encoding response failed")
	}
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	kind := entity.KindOf(err)
	h.writeJSON(w, statusForKind(kind), &ErrorEnvelope{Kind: string(kind), Message: err.Error()})
}

func decode[T any](r *http.Request) (*T, error) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, entity.ErrInvalidInput
	}
	return &req, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, entity.ErrInvalidInput
	}
	return id, nil
}

func (h *handler) registerUser(w http.ResponseWriter, r *http.Request) {
	req, err := decode[RegisterUserRequest](r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	user, err := h.svc.RegisterUser(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, user)
}

func (h *handler) updatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	req, err := decode[UpdatePreferencesRequest](r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	user, err := h.svc.UpdatePreferences(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *handler) progress(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	stats, err := h.svc.Progress(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *handler) startSession(w http.ResponseWriter, r *http.Request) {
	req, err := decode[StartSessionRequest](r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	session, err := h.svc.StartSession(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, session)
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

func (h *handler) advanceActivity(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.Atoi(r.PathValue("seq"))
	if err != nil || seq <= 0 {
		h.writeError(w, entity.ErrInvalidInput)
		return
	}
	req, err := decode[struct {
		Status string `json:"status"`
	}](r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	session, err := h.svc.AdvanceActivity(r.Context(), r.PathValue("id"), seq, req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

func (h *handler) finishSession(w http.ResponseWriter, r *http.Request) {
	rollup, err := h.svc.FinishSession(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rollup)
}

func (h *handler) getDue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := strconv.ParseInt(q.Get("user_id"), 10, 64)
	if err != nil {
		h.writeError(w, entity.ErrInvalidInput)
		return
	}
	var limit int64
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.ParseInt(raw, 10, 32); err != nil {
			h.writeError(w, entity.ErrInvalidInput)
			return
		}
	}
	due, err := h.svc.GetDue(r.Context(), userID, q.Get("kind"), int32(limit))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, due)
}

func (h *handler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	req, err := decode[SubmitAttemptRequest](r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.svc.SubmitAttempt(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) createItem(w http.ResponseWriter, r *http.Request) {
	req, err := decode[CreateItemRequest](r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	item, err := h.svc.CreateItem(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, item)
}

func (h *handler) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := &repository.ListItemQuery{
		Pagination: repository.Pagination{PageNo: 1, PageSize: defaultPageSize},
		FilterOrder: repository.FilterOrder{
			Filter:  q.Get("filter"),
			OrderBy: q.Get("order_by"),
		},
	}
	if raw := q.Get("page_no"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n <= 0 {
			h.writeError(w, entity.ErrInvalidInput)
			return
		}
		query.PageNo = int32(n)
	}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n <= 0 || n > maxPageSize {
			h.writeError(w, entity.ErrInvalidInput)
			return
		}
		query.PageSize = int32(n)
	}

	items, err := h.svc.ListItems(r.Context(), q.Get("kind"), query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

func (h *handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	item, err := h.svc.GetItem(r.Context(), r.PathValue("kind"), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

func (h *handler) attachAudio(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	req, err := decode[AttachAudioRequest](r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.svc.AttachAudio(r.Context(), r.PathValue("kind"), id, req.AudioRef); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) storeStats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, entity.ErrUnavailable)
		return
	}
	h.writeJSON(w, http.StatusOK, toStoreStatsResponse(h.store.Snapshot()))
}

func (h *handler) ingestRun(w http.ResponseWriter, r *http.Request) {
	req, err := decode[IngestRunRequest](r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	// Ingest runs outlast the per-request deadline.
	stats, err := h.svc.IngestRun(context.WithoutCancel(r.Context()), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}
