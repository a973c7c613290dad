// Package http exposes the service surface: health and metrics endpoints
// plus the task routes that enqueue, list and cancel playlist transfers.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tunesync/internal/core"
	"tunesync/internal/task"
	"tunesync/pkg/playlistlink"
)

// TaskStore is the slice of the task store the API needs.
type TaskStore interface {
	Enqueue(ctx context.Context, userID int64, rec *task.Record) (string, error)
	ListForUser(ctx context.Context, userID int64) ([]*task.Record, error)
	MarkCancelled(ctx context.Context, userID int64, taskID string) error
}

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
	tasks   TaskStore
	users   core.UserStore
	links   *playlistlink.Manager
}

type Metrics struct {
	TasksEnqueuedTotal  *prometheus.CounterVec
	TasksCancelledTotal prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		TasksEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunesync_tasks_enqueued_total",
				Help: "Total number of tasks enqueued",
			},
			[]string{"kind"},
		),
		TasksCancelledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tunesync_tasks_cancelled_total",
				Help: "Total number of tasks cancelled through the API",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunesync_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component", "type"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tunesync_request_duration_seconds",
				Help:    "Time spent serving API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(
		metrics.TasksEnqueuedTotal,
		metrics.TasksCancelledTotal,
		metrics.ErrorsTotal,
		metrics.RequestDuration,
	)
	return metrics
}

// NewServer wires the routes. reg is the metrics registry; pass a fresh
// prometheus.NewRegistry per server so tests can build many of them.
func NewServer(config *core.ServerConfig, tasks TaskStore, users core.UserStore, reg *prometheus.Registry, logger *zap.Logger) *Server {
	s := &Server{
		config:  config,
		logger:  logger,
		metrics: newMetrics(reg),
		tasks:   tasks,
		users:   users,
		links:   playlistlink.NewManager(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"tunesync"}`))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"tunesync"}`))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /tasks/transfer", s.timed("tasks_transfer", s.handleCreateTransfer))
	mux.HandleFunc("GET /tasks", s.timed("tasks_list", s.handleListTasks))
	mux.HandleFunc("GET /tasks/{task_id}", s.timed("tasks_get", s.handleGetTask))
	mux.HandleFunc("DELETE /tasks/{task_id}", s.timed("tasks_cancel", s.handleCancelTask))

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

// Start serves until ctx ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) timed(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		s.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// transferRequest creates a playlist transfer task. The source playlist is
// given either by provider+id or by a shareable playlist link.
type transferRequest struct {
	FromProvider core.ServiceName `json:"from_provider,omitempty"`
	ToProvider   core.ServiceName `json:"to_provider"`
	FromPlaylist string           `json:"from_playlist,omitempty"`
	PlaylistURL  string           `json:"playlist_url,omitempty"`
}

type taskView struct {
	TaskID       string            `json:"task_id"`
	Kind         task.TaskKind     `json:"kind"`
	Status       task.TaskStatus   `json:"status"`
	StatusReason string            `json:"status_reason,omitempty"`
	Arguments    task.TransferArgs `json:"arguments"`
	Progress     task.TaskProgress `json:"progress"`
	QueuedAt     int64             `json:"queued_at"`
	StartedAt    int64             `json:"started_at,omitempty"`
	DoneAt       int64             `json:"done_at,omitempty"`
}

func viewOf(rec *task.Record) taskView {
	return taskView{
		TaskID:       rec.TaskID,
		Kind:         rec.Kind,
		Status:       rec.Status,
		StatusReason: rec.StatusReason,
		Arguments:    rec.Arguments,
		Progress:     rec.Progress,
		QueuedAt:     rec.QueuedAt,
		StartedAt:    rec.StartedAt,
		DoneAt:       rec.DoneAt,
	}
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PlaylistURL != "" {
		ref, err := s.links.Parse(req.PlaylistURL)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unusable playlist link: %v", err))
			return
		}
		req.FromProvider = core.ServiceName(ref.Service)
		req.FromPlaylist = ref.PlaylistID
	}

	if !core.IsKnownProvider(req.FromProvider) || !core.IsKnownProvider(req.ToProvider) {
		s.writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}
	if req.FromPlaylist == "" {
		s.writeError(w, http.StatusBadRequest, "missing source playlist")
		return
	}

	rec := &task.Record{
		TaskID:   uuid.NewString(),
		Kind:     task.KindPlaylistTransfer,
		Status:   task.StatusQueued,
		QueuedAt: time.Now().Unix(),
		Arguments: task.TransferArgs{
			FromProvider: req.FromProvider,
			ToProvider:   req.ToProvider,
			FromPlaylist: req.FromPlaylist,
		},
	}
	if _, err := s.tasks.Enqueue(r.Context(), userID, rec); err != nil {
		s.logger.Error("Enqueue failed", zap.Error(err))
		s.metrics.ErrorsTotal.WithLabelValues("api", "enqueue").Inc()
		s.writeError(w, http.StatusInternalServerError, "could not enqueue task")
		return
	}

	s.metrics.TasksEnqueuedTotal.WithLabelValues(string(rec.Kind)).Inc()
	s.writeJSON(w, http.StatusAccepted, viewOf(rec))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	records, err := s.tasks.ListForUser(r.Context(), userID)
	if err != nil {
		s.logger.Error("Task listing failed", zap.Error(err))
		s.metrics.ErrorsTotal.WithLabelValues("api", "list").Inc()
		s.writeError(w, http.StatusInternalServerError, "could not list tasks")
		return
	}

	views := make([]taskView, 0, len(records))
	for _, rec := range records {
		views = append(views, viewOf(rec))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	taskID := r.PathValue("task_id")
	records, err := s.tasks.ListForUser(r.Context(), userID)
	if err != nil {
		s.logger.Error("Task lookup failed", zap.Error(err))
		s.metrics.ErrorsTotal.WithLabelValues("api", "get").Inc()
		s.writeError(w, http.StatusInternalServerError, "could not load task")
		return
	}

	for _, rec := range records {
		if rec.TaskID == taskID {
			s.writeJSON(w, http.StatusOK, viewOf(rec))
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "task not found")
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	taskID := r.PathValue("task_id")
	if err := s.tasks.MarkCancelled(r.Context(), userID, taskID); err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.logger.Error("Task cancellation failed", zap.Error(err))
		s.metrics.ErrorsTotal.WithLabelValues("api", "cancel").Inc()
		s.writeError(w, http.StatusInternalServerError, "could not cancel task")
		return
	}

	s.metrics.TasksCancelledTotal.Inc()
	w.WriteHeader(http.StatusNoContent)
}

// authenticate resolves the calling user from the X-User-ID header. Account
// management and session issuance live outside this service; the header is
// trusted to come from the fronting proxy.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get("X-User-ID"))
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		s.writeError(w, http.StatusUnauthorized, "missing or invalid user")
		return 0, false
	}

	user, err := s.users.Get(r.Context(), userID)
	if err != nil {
		s.logger.Error("User lookup failed", zap.Error(err))
		s.metrics.ErrorsTotal.WithLabelValues("api", "auth").Inc()
		s.writeError(w, http.StatusInternalServerError, "could not resolve user")
		return 0, false
	}
	if user == nil {
		s.writeError(w, http.StatusUnauthorized, "unknown user")
		return 0, false
	}
	return userID, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Response write failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
