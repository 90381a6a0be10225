package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"doc-chat/internal/app"
	"doc-chat/internal/extract"
	"doc-chat/internal/httputil"
	"doc-chat/internal/session"
)

// multipartOverhead is the slack allowed on top of MaxUploadSize for multipart framing.
const multipartOverhead = 1 << 20

type askRequest struct {
	// A pointer so that a missing field fails validation while "" is accepted.
	Question *string `json:"question" validate:"required"`
}

type messageView struct {
	Role    session.Role `json:"role"`
	Content string       `json:"content"`
	At      time.Time    `json:"at"`
}

type sessionView struct {
	SessionID uuid.UUID     `json:"session_id"`
	State     session.State `json:"state"`
	Document  string        `json:"document,omitempty"`
	Messages  []messageView `json:"messages"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			deps.Log.Warn("failed to close dependencies", "err", err)
		}
	}()

	if err := serve(ctx, deps); err != nil {
		deps.Log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, deps app.Deps) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Log.Info("doc-chat listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		deps.Log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(deps app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log, deps.Config.RequestTimeout)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", createSessionHandler(deps))
		r.Get("/{id}", getSessionHandler(deps))
		r.Delete("/{id}", endSessionHandler(deps))
		r.Post("/{id}/document", uploadHandler(deps))
		r.Post("/{id}/messages", askHandler(deps))
	})

	r.Get("/", indexHandler(deps))
	r.Get("/chat/{id}", chatPageHandler(deps))
	r.Post("/chat/{id}/document", chatUploadHandler(deps))
	r.Post("/chat/{id}/ask", chatAskHandler(deps))

	r.Get("/healthz", httputil.HealthHandler(deps.Log))
	return r
}

func createSessionHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Start(r.Context())
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to start session", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, newSessionView(s))
	}
}

func getSessionHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(deps, w, r)
		if !ok {
			return
		}
		s, err := deps.Sessions.Get(r.Context(), id)
		if err != nil {
			sessionFail(deps, w, id, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, newSessionView(s))
	}
}

func endSessionHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(deps, w, r)
		if !ok {
			return
		}
		if err := deps.Sessions.End(r.Context(), id); err != nil {
			sessionFail(deps, w, id, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func uploadHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(deps, w, r)
		if !ok {
			return
		}
		filename, content, err := readUpload(w, r, deps.Config.MaxUploadSize)
		if err != nil {
			httputil.Fail(deps.Log, w, err.Error(), err, http.StatusBadRequest)
			return
		}
		s, err := deps.Sessions.LoadDocument(r.Context(), id, filename, content)
		if err != nil {
			sessionFail(deps, w, id, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, newSessionView(s))
	}
}

func askHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(deps, w, r)
		if !ok {
			return
		}
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		s, err := deps.Sessions.Ask(r.Context(), id, *req.Question)
		if err != nil {
			sessionFail(deps, w, id, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, newSessionView(s))
	}
}

func sessionID(deps app.Deps, w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(deps.Log, w, "invalid session id", err, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// sessionFail maps controller errors onto HTTP statuses.
func sessionFail(deps app.Deps, w http.ResponseWriter, id uuid.UUID, err error) {
	log := deps.Log.With("session_id", id)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		httputil.Fail(log, w, "session not found", err, http.StatusNotFound)
	case errors.Is(err, session.ErrNoDocument):
		httputil.Fail(log, w, "upload a PDF before asking questions", err, http.StatusConflict)
	case errors.Is(err, extract.ErrDocumentFormat):
		httputil.Fail(log, w, "could not read the PDF: "+err.Error(), err, http.StatusBadRequest)
	default:
		httputil.Fail(log, w, "internal error", err, http.StatusInternalServerError)
	}
}

func newSessionView(s session.Session) sessionView {
	entries := s.Log.Entries()
	msgs := make([]messageView, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, messageView{Role: e.Role, Content: e.Content, At: e.At})
	}
	return sessionView{
		SessionID: s.ID,
		State:     s.State,
		Document:  s.DocumentName,
		Messages:  msgs,
	}
}

var errUnsupportedType = errors.New("unsupported file type (only PDF allowed)")

// isPDFUpload accepts a part declared as a PDF, a .pdf file sent with a generic or
// legacy type, or an undeclared part whose bytes are a PDF. Whether the PDF is well
// formed is left to extraction.
func isPDFUpload(filename, declared string, content []byte) bool {
	mediaType := strings.ToLower(strings.TrimSpace(declared))
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		mediaType = mt
	}
	generic := mediaType == "" || mediaType == "application/octet-stream"
	switch {
	case mediaType == "application/pdf":
		return true
	case strings.EqualFold(filepath.Ext(filename), ".pdf") && (generic || mediaType == "application/x-pdf"):
		return true
	case generic:
		return mimetype.Detect(content).Is("application/pdf")
	}
	return false
}

// readUpload returns the PDF sent in the multipart field "file". The whole form is
// parsed in memory, so an upload never touches disk.
func readUpload(w http.ResponseWriter, r *http.Request, maxSize int64) (string, []byte, error) {
	tooLarge := fmt.Errorf("file too large (max %d bytes)", maxSize)

	// Validate file size before parsing
	if r.ContentLength > maxSize+multipartOverhead {
		return "", nil, tooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxSize + multipartOverhead); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return "", nil, tooLarge
		}
		return "", nil, errors.New("file is required")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errors.New("file is required")
	}
	defer file.Close()

	if header.Size > maxSize {
		return "", nil, tooLarge
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file: %w", err)
	}
	if !isPDFUpload(header.Filename, header.Header.Get("Content-Type"), content) {
		return "", nil, errUnsupportedType
	}
	return filepath.Base(header.Filename), content, nil
}
