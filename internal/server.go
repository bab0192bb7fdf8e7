package internal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediachat/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server owns the shared chat state and the HTTP/WebSocket surface.
//
// mu guards presence and history as one unit: every mutation of either —
// join, leave, chat append, media append — happens under it together with
// the broadcast that announces it, so broadcast order always matches
// history order.
type Server struct {
	mu       sync.Mutex
	presence *Registry
	history  *History

	hub      *Hub
	pipeline *Pipeline
	store    *storage.Store
	metrics  *Metrics
	registry *prometheus.Registry
	validate *validator.Validate
	now      func() time.Time

	maxUploadBytes int64
	allowedOrigin  string
}

// ServerOptions carries the knobs NewServer needs beyond its collaborators.
type ServerOptions struct {
	MaxUploadBytes int64
	AllowedOrigin  string
}

func NewServer(pipeline *Pipeline, store *storage.Store, metrics *Metrics, promRegistry *prometheus.Registry, opts ServerOptions) *Server {
	server := &Server{
		presence:       NewRegistry(),
		history:        NewHistory(),
		hub:            NewHub(metrics),
		pipeline:       pipeline,
		store:          store,
		metrics:        metrics,
		registry:       promRegistry,
		validate:       validator.New(),
		now:            time.Now,
		maxUploadBytes: opts.MaxUploadBytes,
		allowedOrigin:  opts.AllowedOrigin,
	}
	return server
}

// Routes assembles the full HTTP surface: websocket endpoint, upload
// endpoint, the two static blob roots, the media index listing, health and
// metrics.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(s.metrics.Middleware)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{s.allowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))

	router.Get("/ws", s.ServeWS)
	router.Post("/upload", s.HandleUpload)
	router.Get("/api/media", s.HandleListMedia)
	router.Get("/api/media/{name}", s.HandleGetMedia)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	fileServer(router, "/uploads", http.Dir(s.pipeline.uploadDir))
	fileServer(router, "/compressed_videos", http.Dir(s.pipeline.videoDir))

	return router
}

// ServeWS upgrades the request and starts the connection's pumps. The
// connection stays in the connected state until a join event names it.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	conn := newConn(uuid.NewString(), sock)
	s.hub.add(conn)
	s.metrics.ActiveConnections.Inc()
	slog.Info("client connected", "conn_id", conn.id)

	go conn.writePump()
	go conn.readPump(s)
}

// Publish appends a finished message to history and fans it out, under the
// same lock that serializes connection events. This is the single point
// where the media pipeline rejoins the shared state.
func (s *Server) Publish(msg Message) {
	payload, err := encodeEvent(EventChat, msg)
	if err != nil {
		slog.Error("encoding chat message", "error", err)
		return
	}
	s.mu.Lock()
	s.history.Append(msg)
	s.metrics.MessagesTotal.WithLabelValues(msg.Type).Inc()
	s.hub.BroadcastAll(payload)
	s.mu.Unlock()
}

// HandleListMedia returns recent entries from the media index.
func (s *Server) HandleListMedia(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListMedia(r.Context(), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"media": records})
}

// HandleGetMedia looks up one media index entry by its on-disk name.
func (s *Server) HandleGetMedia(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.GetMediaByStoredName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, errors.New("media not found"))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func fileServer(router chi.Router, prefix string, root http.FileSystem) {
	fs := http.StripPrefix(prefix, http.FileServer(root))
	router.Get(prefix+"/*", func(w http.ResponseWriter, r *http.Request) {
		fs.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
