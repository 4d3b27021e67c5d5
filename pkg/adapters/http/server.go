package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/aretw0/sapling"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/aretw0/sapling/pkg/observability"
	"github.com/aretw0/sapling/pkg/reveal"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxUpload bounds the size of an uploaded model.
const DefaultMaxUpload = 4 << 20

// Engine is the part of the sapling engine the HTTP surface drives.
type Engine interface {
	CurrentTree() *domain.Tree
	LoadModel(ctx context.Context, text string) (*domain.Tree, error)
	Sync(ctx context.Context) (*domain.Tree, error)
	Train(ctx context.Context, name string, data []byte, labelCol string) (*domain.Tree, error)
	Evaluate(ctx context.Context, name string, data []byte, labelCol string) (domain.Metrics, error)
	Classify(ctx context.Context, text string) (domain.Classification, error)
	Construction() *reveal.Construction
	Playback() *reveal.Playback
}

var _ Engine = (*sapling.Engine)(nil)

// Server serves the engine over HTTP.
type Server struct {
	Engine    Engine
	Broker    *observability.Broker
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
	MaxUpload int64
}

// Option configures the Server.
type Option func(*Server)

// WithBroker enables GET /api/events, streaming the broker's events.
func WithBroker(b *observability.Broker) Option {
	return func(s *Server) { s.Broker = b }
}

// WithGatherer exposes the gatherer's metrics on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.Gatherer = g }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.Logger = l
		}
	}
}

// WithMaxUpload bounds the accepted model size in bytes.
func WithMaxUpload(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.MaxUpload = n
		}
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:    engine,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxUpload: DefaultMaxUpload,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/ready", s.GetReady)
		r.Get("/tree", s.GetTree)
		r.Post("/load-model", s.LoadModel)
		r.Post("/sync", s.SyncModel)
		r.Post("/train", s.Train)
		r.Post("/metrics", s.Evaluate)
		r.Post("/classify", s.Classify)
		r.Get("/reveal", s.GetReveal)
		r.Delete("/reveal/{kind}", s.CancelReveal)
		if s.Broker != nil {
			r.Get("/events", s.SubscribeEvents)
		}
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "sapling-http",
		"version": strings.TrimSpace(sapling.Version),
	})
}

// ReadyResponse reports whether a model is loaded.
type ReadyResponse struct {
	Ready bool `json:"ready"`
	Nodes int  `json:"nodes"`
}

// GetReady handles the GET /api/ready request.
func (s *Server) GetReady(w http.ResponseWriter, r *http.Request) {
	tree := s.Engine.CurrentTree()
	writeJSON(w, http.StatusOK, ReadyResponse{Ready: tree != nil, Nodes: tree.Count()})
}

// GetTree handles the GET /api/tree request. It answers null when no model is loaded.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.CurrentTree().Root())
}

// LoadResponse acknowledges an accepted model.
type LoadResponse struct {
	Message string       `json:"message"`
	Stats   domain.Stats `json:"stats"`
	RunID   string       `json:"run_id"`
}

// LoadModel handles the POST /api/load-model request.
// The model is read from the multipart "file" field, or from the raw body.
func (s *Server) LoadModel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUpload)

	text, err := s.readModel(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		s.Logger.Warn("LoadModel: invalid upload", "err", err)
		return
	}

	tree, err := s.Engine.LoadModel(r.Context(), text)
	if err != nil {
		s.writeEngineError(w, "LoadModel", err)
		return
	}

	writeJSON(w, http.StatusOK, LoadResponse{
		Message: "Model loaded successfully",
		Stats:   tree.Stats(),
		RunID:   s.Engine.Construction().Progress().RunID,
	})
}

// SyncModel handles the POST /api/sync request: the classifier's current
// tree, e.g. after training, replaces the engine's model.
func (s *Server) SyncModel(w http.ResponseWriter, r *http.Request) {
	tree, err := s.Engine.Sync(r.Context())
	if err != nil {
		s.writeEngineError(w, "SyncModel", err)
		return
	}

	writeJSON(w, http.StatusOK, LoadResponse{
		Message: "Model synced from classifier",
		Stats:   tree.Stats(),
		RunID:   s.Engine.Construction().Progress().RunID,
	})
}

// Train handles the POST /api/train request. The labelled CSV comes from the
// multipart "file" field with the label column in "labelCol", or from the raw
// body with the label column in the labelCol query parameter.
func (s *Server) Train(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUpload)

	name, data, labelCol, err := s.readDataset(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		s.Logger.Warn("Train: invalid upload", "err", err)
		return
	}

	tree, err := s.Engine.Train(r.Context(), name, data, labelCol)
	if err != nil {
		s.writeEngineError(w, "Train", err)
		return
	}

	writeJSON(w, http.StatusOK, LoadResponse{
		Message: "Model trained successfully",
		Stats:   tree.Stats(),
		RunID:   s.Engine.Construction().Progress().RunID,
	})
}

// Evaluate handles the POST /api/metrics request. The dataset is read as in Train.
func (s *Server) Evaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUpload)

	name, data, labelCol, err := s.readDataset(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		s.Logger.Warn("Evaluate: invalid upload", "err", err)
		return
	}

	m, err := s.Engine.Evaluate(r.Context(), name, data, labelCol)
	if err != nil {
		s.writeEngineError(w, "Evaluate", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) readDataset(r *http.Request) (name string, data []byte, labelCol string, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err = io.ReadAll(r.Body)
		if err != nil {
			return "", nil, "", fmt.Errorf("failed to read body: %w", err)
		}
		if len(data) == 0 {
			return "", nil, "", errors.New("no dataset provided")
		}
		return "dataset.csv", data, r.URL.Query().Get("labelCol"), nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, "", errors.New("no file provided")
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return "", nil, "", fmt.Errorf("failed to read file: %w", err)
	}
	return header.Filename, data, r.FormValue("labelCol"), nil
}

func (s *Server) readModel(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read body: %w", err)
		}
		if len(data) == 0 {
			return "", errors.New("no model provided")
		}
		return string(data), nil
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return "", errors.New("no file provided")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

// ClassifyRequest is the body of POST /api/classify.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// Classify handles the POST /api/classify request.
func (s *Server) Classify(w http.ResponseWriter, r *http.Request) {
	var body ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.Logger.Warn("Classify: invalid request body", "err", err)
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "no text provided")
		return
	}

	result, err := s.Engine.Classify(r.Context(), body.Text)
	if err != nil {
		s.writeEngineError(w, "Classify", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PlaybackView is the playback half of GET /api/reveal.
type PlaybackView struct {
	RunID      string              `json:"run_id,omitempty"`
	Phase      domain.Phase        `json:"phase"`
	Visible    domain.DecisionPath `json:"visible"`
	Label      string              `json:"label,omitempty"`
	Highlights []int               `json:"highlights"`
}

// RevealResponse is the body of GET /api/reveal.
type RevealResponse struct {
	Construction reveal.Progress `json:"construction"`
	Playback     PlaybackView    `json:"playback"`
}

// GetReveal handles the GET /api/reveal request.
func (s *Server) GetReveal(w http.ResponseWriter, r *http.Request) {
	pv := s.Engine.Playback().View()

	view := PlaybackView{
		RunID:      pv.State.RunID,
		Phase:      pv.State.Phase,
		Visible:    pv.Visible,
		Label:      pv.Label,
		Highlights: pv.Highlights.OnPath(),
	}
	if view.Visible == nil {
		view.Visible = domain.DecisionPath{}
	}
	if view.Highlights == nil {
		view.Highlights = []int{}
	}

	writeJSON(w, http.StatusOK, RevealResponse{
		Construction: s.Engine.Construction().Progress(),
		Playback:     view,
	})
}

// CancelReveal handles the DELETE /api/reveal/{kind} request.
func (s *Server) CancelReveal(w http.ResponseWriter, r *http.Request) {
	var err error
	switch domain.RevealKind(chi.URLParam(r, "kind")) {
	case domain.RevealConstruction:
		err = s.Engine.Construction().Cancel()
	case domain.RevealPlayback:
		err = s.Engine.Playback().Cancel()
	default:
		writeError(w, http.StatusNotFound, "unknown reveal kind")
		return
	}
	if err != nil && !errors.Is(err, domain.ErrNoActiveReveal) {
		s.writeEngineError(w, "CancelReveal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubscribeEvents handles the GET /api/events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.Broker.Subscribe(r.Context())
	s.Logger.Debug("SSE: client subscribed", "subscribers", s.Broker.Subscribers())

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Debug("SSE: client disconnected")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				s.Logger.Error("SSE: encode failed", "type", ev.Type, "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrMalformedModel), errors.Is(err, domain.ErrMalformedDataset):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNoModel):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrClassifierUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.Logger.Error(op+" failed", "err", err)
	} else {
		s.Logger.Debug(op+" rejected", "status", status, "err", err)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
