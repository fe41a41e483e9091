// ABOUTME: HTTP API over the resolution engine using chi
// ABOUTME: JSON in and out; engine error kinds map onto status codes
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/harper/homefacts/internal/app"
	"github.com/harper/homefacts/internal/core"
	"github.com/harper/homefacts/internal/models"
	"go.uber.org/zap"
)

// Server routes HTTP requests to the engine and writer
type Server struct {
	router *chi.Mux
	engine *core.Engine
	writer *core.Writer
	topK   int
	logger *zap.Logger
}

// New builds the router
func New(a *app.App) *Server {
	r := chi.NewRouter()
	s := &Server{
		router: r,
		engine: a.Engine,
		writer: a.Writer,
		topK:   3,
		logger: a.Logger,
	}
	if a.Config != nil && a.Config.RankTopK > 0 {
		s.topK = a.Config.RankTopK
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/rank", s.rank)
	r.Get("/devices", s.listDevices)
	r.Route("/devices/{deviceID}", func(r chi.Router) {
		r.Post("/constraints", s.matchConstraints)
		r.Get("/facts", s.listFacts)
		r.Post("/facts", s.addFact)
		r.Put("/facts", s.updateFact)
		r.Delete("/facts", s.deleteFact)
		r.Post("/resolve", s.resolveFact)
		r.Put("/facts/{factID}", s.applyUpdate)
		r.Delete("/facts/{factID}", s.applyDelete)
		r.Get("/digest", s.digest)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type rankRequest struct {
	Clues []string `json:"clues"`
	TopK  *int     `json:"top_k,omitempty"`
}

func (s *Server) rank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	topK := s.topK
	if req.TopK != nil {
		topK = *req.TopK
	}

	rankings, err := s.engine.RankDevices(r.Context(), req.Clues, topK)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rankings": rankings})
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.engine.ListDevices(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

type constraintsRequest struct {
	Constraints [][]string `json:"constraints"`
}

func (s *Server) matchConstraints(w http.ResponseWriter, r *http.Request) {
	var req constraintsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	deviceID := chi.URLParam(r, "deviceID")

	matches, err := s.engine.MatchConstraints(r.Context(), deviceID, req.Constraints)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": deviceID, "constraints": matches})
}

func (s *Server) listFacts(w http.ResponseWriter, r *http.Request) {
	category, err := optionalCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	deviceID := chi.URLParam(r, "deviceID")

	facts, err := s.engine.DeviceFacts(r.Context(), deviceID, category)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": deviceID, "facts": facts})
}

type addRequest struct {
	Content    string            `json:"content"`
	Category   string            `json:"category"`
	DeviceName string            `json:"device_name,omitempty"`
	Source     string            `json:"source,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

func (s *Server) addFact(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	deviceID := chi.URLParam(r, "deviceID")

	if req.DeviceName != "" {
		if _, err := s.writer.EnsureDevice(r.Context(), deviceID, req.DeviceName); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	source := req.Source
	if source == "" {
		source = "api"
	}
	fact, err := s.writer.AddFact(r.Context(), &models.Fact{
		DeviceID: deviceID,
		Content:  req.Content,
		Category: category,
		Source:   source,
		Extra:    req.Extra,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fact)
}

type updateRequest struct {
	OldContent string `json:"old_content"`
	NewContent string `json:"new_content"`
	Category   string `json:"category,omitempty"`
}

func (s *Server) updateFact(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	category, err := optionalCategory(req.Category)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	out, err := s.writer.UpdateIn(r.Context(), chi.URLParam(r, "deviceID"), category, req.OldContent, req.NewContent)
	s.writeOutcome(w, r, out, err)
}

type deleteRequest struct {
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}

func (s *Server) deleteFact(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	category, err := optionalCategory(req.Category)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	out, err := s.writer.DeleteIn(r.Context(), chi.URLParam(r, "deviceID"), category, req.Content)
	s.writeOutcome(w, r, out, err)
}

type resolveRequest struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}

func (s *Server) resolveFact(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	category, err := optionalCategory(req.Category)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	c, err := s.writer.ResolveCandidateIn(r.Context(), chi.URLParam(r, "deviceID"), req.Text, category)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type applyRequest struct {
	NewContent string `json:"new_content"`
}

func (s *Server) applyUpdate(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := s.writer.ApplyUpdate(r.Context(), chi.URLParam(r, "deviceID"), chi.URLParam(r, "factID"), req.NewContent)
	s.writeOutcome(w, r, out, err)
}

func (s *Server) applyDelete(w http.ResponseWriter, r *http.Request) {
	out, err := s.writer.ApplyDelete(r.Context(), chi.URLParam(r, "deviceID"), chi.URLParam(r, "factID"))
	s.writeOutcome(w, r, out, err)
}

// digest requires a category; a device with no facts gets an empty digest
func (s *Server) digest(w http.ResponseWriter, r *http.Request) {
	category, err := models.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	deviceID := chi.URLParam(r, "deviceID")

	contents, err := s.engine.FactsByCategory(r.Context(), deviceID, category)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"category":  category,
		"contents":  contents,
		"combined":  strings.Join(contents, core.DigestSeparator),
	})
}

func optionalCategory(raw string) (models.Category, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return models.ParseCategory(raw)
}

func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, out core.WriteOutcome, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, out)
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, out)
	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrIndex):
		status = http.StatusBadGateway
	}
	if status >= 500 {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.logger.Debug("access",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
