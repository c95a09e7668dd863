// Package web serves the single-page flow over HTTP: the entry screen, the
// uploader, progress, and the before/after comparison.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mhpenta/autodrip"
	"github.com/mhpenta/autodrip/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configures a Server.
type Options struct {
	// SessionTTL is how long an idle session is kept.
	SessionTTL time.Duration

	// MaxUploadBytes bounds the multipart body of /upload.
	MaxUploadBytes int64

	// RefreshSeconds is the reload interval of the progress page.
	RefreshSeconds int

	Logger *slog.Logger

	// Now replaces time.Now for download filenames.
	Now func() time.Time
}

// Server routes requests to per-browser session controllers.
type Server struct {
	router    *mux.Router
	sessions  *sessionStore
	templates *template.Template
	logger    *slog.Logger
	opts      Options
}

// NewServer creates a Server. factory is called once per new browser session.
func NewServer(factory SessionFactory, opts Options) (*Server, error) {
	if factory == nil {
		return nil, errors.New("session factory is required")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = autodrip.MaxImageSize
	}
	if opts.RefreshSeconds <= 0 {
		opts.RefreshSeconds = 2
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		sessions:  newSessionStore(opts.SessionTTL, factory),
		templates: tmpl,
		logger:    opts.Logger,
		opts:      opts,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(s.logger))

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/level", s.handleLevel).Methods(http.MethodPost)
	r.HandleFunc("/redo", s.handleRedo).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/image/{which:original|result}", s.handleImage).Methods(http.MethodGet)
	r.HandleFunc("/download", s.handleDownload).Methods(http.MethodGet)

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// pageData feeds templates/index.html.
type pageData struct {
	View           session.View
	Levels         []autodrip.Level
	RefreshSeconds int
	Version        int64
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	v := sess.Controller.Snapshot()
	data := pageData{
		View:           v,
		Levels:         autodrip.Levels(),
		RefreshSeconds: s.opts.RefreshSeconds,
		Version:        v.UpdatedAt.UnixNano(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("rendering page", "error", err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.count(),
	})
}

// stateResponse is the JSON form of a session view.
type stateResponse struct {
	State     string `json:"state"`
	Level     int    `json:"level"`
	LevelName string `json:"levelName"`
	Message   string `json:"message,omitempty"`
	HasResult bool   `json:"hasResult"`
	MIMEType  string `json:"mimeType,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	v := sess.Controller.Snapshot()
	resp := stateResponse{
		State:     v.State.String(),
		Level:     int(v.Level),
		LevelName: v.Level.Label(),
		Message:   v.Message,
		HasResult: v.Pair != nil,
	}
	if v.Pair != nil {
		resp.MIMEType = v.Pair.MIMEType
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	if key := r.PostFormValue("api_key"); key != "" && sess.Keys != nil {
		sess.Keys.Offer(key)
	}

	if err := sess.Controller.Start(r.Context()); err != nil {
		s.actionError(w, r, err)
		return
	}
	s.redirectHome(w, r)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	// room for the other form fields on top of the file
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+64*1024)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}

	if raw := r.FormValue("level"); raw != "" {
		level, err := parseLevel(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := sess.Controller.SetLevel(level); err != nil {
			s.actionError(w, r, err)
			return
		}
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "missing image file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "reading upload", http.StatusBadRequest)
		return
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}

	_, err = sess.Controller.UploadAsync(r.Context(), session.Upload{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	})
	if err != nil && !errors.Is(err, autodrip.ErrValidationRejected) {
		s.actionError(w, r, err)
		return
	}
	// a rejected file shows its message on the uploader
	s.redirectHome(w, r)
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	level, err := parseLevel(r.PostFormValue("level"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.Controller.SetLevel(level); err != nil {
		s.actionError(w, r, err)
		return
	}
	s.redirectHome(w, r)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	if _, err := sess.Controller.RedoAsync(r.Context()); err != nil {
		s.actionError(w, r, err)
		return
	}
	s.redirectHome(w, r)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	if err := sess.Controller.Reset(); err != nil {
		s.actionError(w, r, err)
		return
	}
	s.redirectHome(w, r)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	pair, ok := s.donePair(w, r)
	if !ok {
		return
	}

	uri := pair.Result
	mimeType := pair.MIMEType
	if mux.Vars(r)["which"] == "original" {
		uri = pair.Original
		mimeType = uri.MIMEType()
	}
	s.writeImage(w, uri, mimeType, "")
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	pair, ok := s.donePair(w, r)
	if !ok {
		return
	}
	name := autodrip.ExportFilename(s.opts.Now(), pair.MIMEType)
	s.writeImage(w, pair.Result, pair.MIMEType, name)
}

func (s *Server) writeImage(w http.ResponseWriter, uri autodrip.DataURI, mimeType, attachment string) {
	data, err := uri.Bytes()
	if err != nil {
		s.logger.Error("decoding stored image", "error", err.Error())
		http.Error(w, "image unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, no-cache")
	if attachment != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment))
	}
	w.Write(data)
}

// donePair returns the image pair of a session in Done, or writes 404.
func (s *Server) donePair(w http.ResponseWriter, r *http.Request) (*session.ImagePair, bool) {
	sess, ok := s.sessions.get(r)
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	v := sess.Controller.Snapshot()
	if v.Pair == nil {
		http.NotFound(w, r)
		return nil, false
	}
	return v.Pair, true
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := s.sessions.lookup(w, r)
	if err != nil {
		s.logger.Error("session unavailable", "error", err.Error())
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

// actionError maps controller errors to HTTP statuses.
func (s *Server) actionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, session.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, session.ErrInvalidLevel):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		s.logger.Error("action failed", "path", r.URL.Path, "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func parseLevel(raw string) (autodrip.Level, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("level must be a number: %w", err)
	}
	level := autodrip.Level(n)
	if !level.Valid() {
		return 0, fmt.Errorf("%w: %d", session.ErrInvalidLevel, n)
	}
	return level, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
