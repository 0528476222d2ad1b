package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"time"

	"foscam2mqtt/internal/logger"
	"foscam2mqtt/internal/models"
	"foscam2mqtt/internal/publisher"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	outcomeOK            = "ok"
	outcomeMissingAction = "missing_action"
	outcomeUnknownAction = "unknown_action"

	maxBodyBytes  = 64 << 10
	rotateTimeout = 30 * time.Second
)

// Verifier resolves a webhook token to its action.
type Verifier interface {
	Verify(token string) (models.Action, bool)
}

type Rotator interface {
	Rotate(ctx context.Context, action models.Action) error
}

type Snapshotter interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

type Recorder interface {
	WebhookRequest(outcome string)
}

type Server struct {
	verifier  Verifier
	camera    Snapshotter
	publisher *publisher.Publisher

	rotator        Rotator
	triggerPayload string
	metrics        http.Handler
	recorder       Recorder
	now            func() time.Time
}

type ServerOption func(*Server)

// WithParanoidRotation rotates the token of every action right after it was
// used.
func WithParanoidRotation(r Rotator) ServerOption {
	return func(s *Server) {
		s.rotator = r
	}
}

// WithTriggerPayload publishes <action>/trigger with payload on every event.
func WithTriggerPayload(payload string) ServerOption {
	return func(s *Server) {
		s.triggerPayload = payload
	}
}

func WithMetrics(handler http.Handler, recorder Recorder) ServerOption {
	return func(s *Server) {
		s.metrics = handler
		s.recorder = recorder
	}
}

func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

func NewServer(verifier Verifier, camera Snapshotter, pub *publisher.Publisher, opts ...ServerOption) *Server {
	s := &Server{
		verifier:  verifier,
		camera:    camera,
		publisher: pub,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHook)
	r.Put("/", s.handleHook)
	r.Post("/", s.handleHook)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return r
}

func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	token := actionParam(w, r)
	if token == "" {
		s.record(outcomeMissingAction)
		s.reply(w, http.StatusBadRequest, "ERROR - no action specified")
		return
	}

	action, ok := s.verifier.Verify(token)
	if !ok {
		logger.Warnf("Rejected webhook from %s: unknown action", r.RemoteAddr)
		s.record(outcomeUnknownAction)
		s.reply(w, http.StatusBadRequest, "ERROR - unknown action")
		return
	}
	logger.Infof("Received %s event", action)

	// The camera keeps ringing even if the client hangs up.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), rotateTimeout)
	defer cancel()

	if image, err := s.camera.Snapshot(ctx); err != nil {
		logger.Warnf("Failed to fetch snapshot for %s event: %v", action, err)
	} else {
		s.publisher.PublishSnapshot(image, s.now())
	}
	s.publisher.PublishAction(action, s.now(), s.triggerPayload)

	if s.rotator != nil {
		if err := s.rotator.Rotate(ctx, action); err != nil {
			logger.Errorf("Failed to rotate %s token: %v", action, err)
		}
	}

	s.record(outcomeOK)
	s.reply(w, http.StatusOK, "OK")
}

func (s *Server) reply(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "%s %s", s.publisher.Timestamp(s.now()), msg)
}

func (s *Server) record(outcome string) {
	if s.recorder != nil {
		s.recorder.WebhookRequest(outcome)
	}
}

// actionParam reads the action from the query string, a form body or a JSON
// body, in that order.
func actionParam(w http.ResponseWriter, r *http.Request) string {
	if v := r.URL.Query().Get("action"); v != "" {
		return v
	}
	if r.Body == nil || r.Method == http.MethodGet {
		return ""
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body struct {
			Action string `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			logger.Debugf("Ignoring undecodable JSON webhook body: %v", err)
			return ""
		}
		return body.Action
	}

	if err := r.ParseForm(); err != nil {
		logger.Debugf("Ignoring unparsable webhook form: %v", err)
		return ""
	}
	return r.PostForm.Get("action")
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debugf("[%s] %s %s from %s: %d in %s",
			middleware.GetReqID(r.Context()), r.Method, r.URL.Path, r.RemoteAddr, ww.Status(), time.Since(start))
	})
}
