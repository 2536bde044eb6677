// Package server is the HTTP control surface for batches and stored profiles.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"profile_spider/internal/app"
	"profile_spider/internal/db"
	"profile_spider/internal/logger"
	"profile_spider/internal/models"
	"profile_spider/internal/pipeline"
	"profile_spider/internal/targets"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// downloadable export kinds
var downloadKinds = map[string]string{
	"csv":  "text/csv",
	"json": "application/json",
}

// Batches is the part of the app the server drives.
type Batches interface {
	Status() *pipeline.RunStatus
	Start(ctx context.Context, targets []models.Target, done func(app.Outcome)) error
	Stats(ctx context.Context) (db.Stats, bool, error)
	Profile(ctx context.Context, profileURL string) (*models.ProfileDocument, bool, error)
}

type Server struct {
	batches     Batches
	targetsFile string
	// batchCtx outlives requests; cancelling it stops a running batch.
	batchCtx context.Context
	logger   *zap.SugaredLogger
	mux      *http.ServeMux
}

type startRequest struct {
	URLs []string `json:"urls"`
}

func New(batchCtx context.Context, batches Batches, targetsFile string) *Server {
	s := &Server{
		batches:     batches,
		targetsFile: targetsFile,
		batchCtx:    batchCtx,
		logger:      logger.Named("server"),
		mux:         http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.HandleIndex)
	s.mux.HandleFunc("GET /api/status", s.HandleStatus)
	s.mux.HandleFunc("POST /api/start", s.HandleStart)
	s.mux.HandleFunc("GET /api/download/{kind}", s.HandleDownload)
	s.mux.HandleFunc("GET /api/stats", s.HandleStats)
	s.mux.HandleFunc("GET /api/profile", s.HandleProfile)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("control server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "listen on %s", addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Infow("control server shutting down")
		return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown")
	}
}

func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, s.batches.Status().Snapshot()); err != nil {
		s.logger.Warnw("render index", logger.FieldError, err)
	}
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.batches.Status().Snapshot())
}

func (s *Server) HandleStart(w http.ResponseWriter, r *http.Request) {
	if s.batches.Status().Running() {
		writeError(w, http.StatusBadRequest, "Scraper is already running")
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var urls []string
	for _, u := range req.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		writeError(w, http.StatusBadRequest, "No URLs provided")
		return
	}

	if err := targets.Save(s.targetsFile, urls); err != nil {
		s.logger.Errorw("save targets", logger.FieldPath, s.targetsFile, logger.FieldError, err)
		writeError(w, http.StatusInternalServerError, "Could not save URLs")
		return
	}

	err := s.batches.Start(s.batchCtx, targets.FromStrings(urls), func(out app.Outcome) {
		if out.Err != nil {
			s.logger.Warnw("batch finished with error", "run_id", out.RunID, logger.FieldError, out.Err)
		}
	})
	if errors.Is(err, app.ErrBusy) {
		writeError(w, http.StatusBadRequest, "Scraper is already running")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Infow("batch started from control server", logger.FieldTotalCount, len(urls))
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Scraping started successfully",
		"profiles_count": len(urls),
	})
}

func (s *Server) HandleDownload(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	contentType, ok := downloadKinds[kind]
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid file type")
		return
	}
	path, ok := s.batches.Status().Export(kind)
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, ok, err := s.batches.Stats(r.Context())
	if !ok {
		writeError(w, http.StatusNotFound, "Record store disabled")
		return
	}
	if err != nil {
		s.logger.Warnw("stats", logger.FieldError, err)
		writeError(w, http.StatusInternalServerError, "Could not read stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleProfile returns the stored document for ?url=.
func (s *Server) HandleProfile(w http.ResponseWriter, r *http.Request) {
	profileURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if profileURL == "" {
		writeError(w, http.StatusBadRequest, "Missing url parameter")
		return
	}
	doc, ok, err := s.batches.Profile(r.Context(), profileURL)
	if !ok {
		writeError(w, http.StatusNotFound, "Record store disabled")
		return
	}
	if err != nil {
		s.logger.Warnw("profile lookup", "url", profileURL, logger.FieldError, err)
		writeError(w, http.StatusInternalServerError, "Could not read profile")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
