package uigen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxRequestBody = 32 << 20

	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = 50 * time.Second
)

var previewWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// PreviewServer serves the live preview of a workspace and exposes the tool
// layer over HTTP.
type PreviewServer struct {
	workspace *Workspace
	pipeline  *Pipeline
	audit     *MemoryAuditLogger
	logger    *zap.Logger
	router    chi.Router
	addr      string

	done      chan struct{}
	closeOnce sync.Once
	conns     sync.WaitGroup
}

// ServerOption configures a PreviewServer.
type ServerOption func(*PreviewServer)

// WithAuditLog exposes the entries of audit at GET /api/audit.
func WithAuditLog(audit *MemoryAuditLogger) ServerOption {
	return func(s *PreviewServer) { s.audit = audit }
}

// NewPreviewServer creates a server for ws. Stateless endpoints compile with
// the same pipeline, so their modules are served too.
func NewPreviewServer(cfg ServerConfig, ws *Workspace, pipeline *Pipeline, logger *zap.Logger, opts ...ServerOption) *PreviewServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PreviewServer{
		workspace: ws,
		pipeline:  pipeline,
		logger:    logger.Named("server"),
		addr:      cfg.Addr,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *PreviewServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *PreviewServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("preview server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-errCh
	return err
}

// Close disconnects live-reload clients and waits for their handlers.
func (s *PreviewServer) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	s.conns.Wait()
}

// buildRouter constructs the chi router with all routes and middleware.
func (s *PreviewServer) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handlePreview)
	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)
	r.Get("/_modules/{handle}", s.handleModule)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tools", s.handleTools)
		r.Get("/snapshot", s.handleGetSnapshot)
		r.Put("/snapshot", s.handlePutSnapshot)
		r.Post("/tool-calls", s.handleToolCalls)
		r.Post("/apply", s.handleApply)
		r.Post("/render", s.handleRender)
		r.Get("/history", s.handleHistory)
		r.Get("/audit", s.handleAudit)

		r.Route("/checkpoints", func(r chi.Router) {
			r.Get("/", s.handleListCheckpoints)
			r.Post("/", s.handleCreateCheckpoint)
			r.Delete("/{name}", s.handleDeleteCheckpoint)
			r.Post("/{name}/rollback", s.handleRollback)
		})
	})

	return r
}

func (s *PreviewServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"revision": s.workspace.Revision(),
	})
}

// currentPreview returns the published preview, building it when missing or
// behind the tree.
func (s *PreviewServer) currentPreview(ctx context.Context) (*Preview, error) {
	if p := s.workspace.Preview(); p != nil && p.Generation == s.workspace.Revision() {
		return p, nil
	}
	return s.workspace.Rebuild(ctx)
}

func (s *PreviewServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	preview, err := s.currentPreview(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, preview.HTML)
}

func (s *PreviewServer) handleModule(w http.ResponseWriter, r *http.Request) {
	mod, ok := s.pipeline.Registry().Lookup(chi.URLParam(r, "handle"))
	if !ok {
		http.Error(w, "module not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	// handles are content hashes
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = io.WriteString(w, mod.Code)
}

func (s *PreviewServer) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ToolSpecs())
}

func (s *PreviewServer) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.workspace.Snapshot())
}

func (s *PreviewServer) handlePutSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap Snapshot
	if err := decodeJSON(r, &snap); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.workspace.Replace(snap); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if _, err := s.workspace.Rebuild(r.Context()); err != nil {
		s.logger.Warn("rebuild after snapshot replace failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"revision": s.workspace.Revision()})
}

type toolCallsRequest struct {
	Calls []ToolCall `json:"calls"`
}

type toolCallsResponse struct {
	Invocations []*ToolInvocation `json:"invocations"`
	Revision    uint64            `json:"revision"`
}

func (s *PreviewServer) handleToolCalls(w http.ResponseWriter, r *http.Request) {
	var req toolCallsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp := toolCallsResponse{Invocations: make([]*ToolInvocation, 0, len(req.Calls))}
	before := s.workspace.Revision()
	for _, call := range req.Calls {
		resp.Invocations = append(resp.Invocations, s.workspace.Invoke(call))
	}
	resp.Revision = s.workspace.Revision()
	if resp.Revision != before {
		if _, err := s.workspace.Rebuild(r.Context()); err != nil {
			s.logger.Warn("rebuild after tool calls failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type applyRequest struct {
	Snapshot Snapshot   `json:"snapshot"`
	Calls    []ToolCall `json:"calls"`
}

type applyResponse struct {
	Snapshot Snapshot     `json:"snapshot"`
	Results  []ToolResult `json:"results"`
}

// handleApply rebuilds a tree from the request, applies the calls and
// returns the new snapshot. Nothing is shared with the workspace.
func (s *PreviewServer) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tree, err := Deserialize(req.Snapshot)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	session := NewSession(middleware.GetReqID(r.Context()), s.workspace.Session().AuditLogger)
	resp := applyResponse{Results: make([]ToolResult, 0, len(req.Calls))}
	for _, call := range req.Calls {
		resp.Results = append(resp.Results, DispatchWithSession(tree, call, session))
	}
	resp.Snapshot = Serialize(tree)
	writeJSON(w, http.StatusOK, resp)
}

type renderRequest struct {
	Snapshot Snapshot `json:"snapshot"`
}

func (s *PreviewServer) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tree, err := Deserialize(req.Snapshot)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	preview, err := s.pipeline.Build(r.Context(), tree)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, preview.HTML)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *PreviewServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.workspace.History())
}

func (s *PreviewServer) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, errors.New("audit log not enabled"))
		return
	}
	writeJSON(w, http.StatusOK, s.audit.Entries())
}

func (s *PreviewServer) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.workspace.ListCheckpoints())
}

func (s *PreviewServer) handleCreateCheckpoint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	meta, err := s.workspace.Checkpoint(strings.TrimSpace(req.Name))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (s *PreviewServer) handleDeleteCheckpoint(w http.ResponseWriter, r *http.Request) {
	if err := s.workspace.DeleteCheckpoint(chi.URLParam(r, "name")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *PreviewServer) handleRollback(w http.ResponseWriter, r *http.Request) {
	if err := s.workspace.Rollback(chi.URLParam(r, "name")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if _, err := s.workspace.Rebuild(r.Context()); err != nil {
		s.logger.Warn("rebuild after rollback failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"revision": s.workspace.Revision()})
}

type previewEvent struct {
	Type     string            `json:"type"`
	Revision uint64            `json:"revision"`
	Entry    string            `json:"entry,omitempty"`
	Errors   []*TransformError `json:"errors,omitempty"`
}

// handleWS pushes an event to the client whenever a new preview is
// published. The page reloads on every message.
func (s *PreviewServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := previewWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.conns.Add(1)
	defer s.conns.Done()

	updates, unsubscribe := s.workspace.Subscribe()
	defer unsubscribe()

	readerDone := make(chan struct{})
	defer func() {
		conn.Close()
		<-readerDone
	}()
	go func() {
		defer close(readerDone)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait))
			return
		case <-readerDone:
			return
		case p, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(previewEvent{Type: "preview", Revision: p.Generation, Entry: p.Entry, Errors: p.Errors}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
