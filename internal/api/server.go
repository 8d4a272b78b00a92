package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pbaille/attend/internal/domain"
	"github.com/pbaille/attend/internal/sheet"
	"github.com/pbaille/attend/internal/stats"
	"github.com/pbaille/attend/internal/timetable"
	"github.com/pbaille/attend/internal/tracker"
)

// maxUpload caps multipart timetable uploads
const maxUpload = 10 << 20

// Server handles HTTP requests for the attendance tracker API
type Server struct {
	// mu serializes handlers; the tracker is single-threaded
	mu      sync.Mutex
	tracker *tracker.Tracker
	addr    string
}

// New creates a new API server
func New(t *tracker.Tracker, addr string) *Server {
	return &Server{tracker: t, addr: addr}
}

// Handler returns the routed handler with logging and CORS applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Timetable
	mux.HandleFunc("GET /timetable", s.listClasses)
	mux.HandleFunc("GET /timetable/slots", s.timeSlots)
	mux.HandleFunc("GET /timetable/grid", s.grid)
	mux.HandleFunc("POST /timetable/import", s.importTimetable)
	mux.HandleFunc("POST /timetable/classes", s.addClass)
	mux.HandleFunc("DELETE /timetable/classes/{key}", s.removeClass)
	mux.HandleFunc("DELETE /timetable", s.clearTimetable)
	mux.HandleFunc("GET /imports", s.listImports)

	// Attendance
	mux.HandleFunc("GET /schedule", s.schedule)
	mux.HandleFunc("POST /attendance", s.mark)
	mux.HandleFunc("DELETE /attendance", s.reset)

	// Dashboard
	mux.HandleFunc("GET /stats", s.stats)
	mux.HandleFunc("GET /target", s.getTarget)
	mux.HandleFunc("PUT /target", s.setTarget)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withLogging(withCORS(mux))
}

// Run starts the HTTP server
func (s *Server) Run() error {
	slog.Info("starting server", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listClasses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"classes": s.tracker.Classes(),
	})
}

func (s *Server) timeSlots(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"slots": s.tracker.TimeSlots(),
	})
}

func (s *Server) grid(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days": domain.Days,
		"rows": s.tracker.Grid(),
	})
}

func (s *Server) importTimetable(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.tracker.ImportFile(file, header.Filename)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"import": rec,
		"slots":  s.tracker.TimeSlots(),
	})
}

// AddClassRequest is the request body for adding a class by hand
type AddClassRequest struct {
	tracker.ManualClass
	Overwrite bool `json:"overwrite,omitempty"`
}

// ConflictResponse reports the class occupying a requested slot
type ConflictResponse struct {
	Error    string            `json:"error"`
	Existing domain.ClassEntry `json:"existing"`
}

func (s *Server) addClass(w http.ResponseWriter, r *http.Request) {
	var req AddClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *domain.ClassEntry
	confirm := func(e domain.ClassEntry) bool {
		existing = &e
		return req.Overwrite
	}

	entry, err := s.tracker.AddClass(req.ManualClass, confirm)
	if errors.Is(err, tracker.ErrOverwriteDeclined) && existing != nil {
		writeJSON(w, http.StatusConflict, ConflictResponse{
			Error:    "a class already exists in this slot; resend with overwrite to replace it",
			Existing: *existing,
		})
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) removeClass(w http.ResponseWriter, r *http.Request) {
	key, err := domain.ParseClassKey(r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.tracker.RemoveClass(key)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":     key,
		"removed": removed,
	})
}

func (s *Server) clearTimetable(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeError(w, http.StatusPreconditionRequired, "clearing the timetable cannot be undone; add confirm=true")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tracker.ClearTimetable(); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) listImports(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	imports, err := s.tracker.Imports(limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"imports": imports,
		"limit":   limit,
	})
}

func (s *Server) schedule(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format(domain.DateLayout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.tracker.Schedule(date)
	if err != nil {
		writeErr(w, err)
		return
	}

	d, _ := domain.ParseDate(date)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":    date,
		"day":     domain.DayOf(d),
		"classes": slots,
	})
}

// MarkRequest is the request body for recording attendance
type MarkRequest struct {
	Key    string `json:"key"`
	Date   string `json:"date"`
	Status string `json:"status"`
}

func (s *Server) mark(w http.ResponseWriter, r *http.Request) {
	var req MarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key, err := domain.ParseClassKey(req.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	markKey, err := s.tracker.Mark(key, req.Date, status)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":    markKey,
		"status": status,
		"stats":  s.report(),
	})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeError(w, http.StatusPreconditionRequired, "reset deletes all timetable and attendance data; add confirm=true")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tracker.Reset(); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// StatsResponse is the dashboard view with target classification applied
type StatsResponse struct {
	Target      int                `json:"target"`
	Overall     stats.Overall      `json:"overall"`
	Display     string             `json:"display"`
	BelowTarget bool               `json:"below_target"`
	Subjects    []SubjectStatsView `json:"subjects"`
}

// SubjectStatsView adds target classification to subject stats
type SubjectStatsView struct {
	stats.SubjectStats
	BelowTarget bool `json:"below_target"`
}

// report must be called with s.mu held
func (s *Server) report() StatsResponse {
	r := s.tracker.Stats()
	target := s.tracker.Target()

	resp := StatsResponse{
		Target:      target,
		Overall:     r.Overall,
		Display:     r.Overall.Display(),
		BelowTarget: r.BelowTarget(target),
		Subjects:    make([]SubjectStatsView, 0, len(r.Subjects)),
	}
	for _, sub := range r.Subjects {
		resp.Subjects = append(resp.Subjects, SubjectStatsView{
			SubjectStats: sub,
			BelowTarget:  sub.BelowTarget(target),
		})
	}
	return resp
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, s.report())
}

func (s *Server) getTarget(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]int{"target": s.tracker.Target()})
}

func (s *Server) setTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target *int `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Target == nil {
		writeError(w, http.StatusBadRequest, "integer 'target' is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tracker.SetTarget(*req.Target); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"target": s.tracker.Target()})
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

// writeErr maps input rejections to 400 and logs anything else
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timetable.ErrNoDataRows),
		errors.Is(err, timetable.ErrNoTimeColumn),
		errors.Is(err, timetable.ErrMissingField),
		errors.Is(err, timetable.ErrUnknownDay),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidKey),
		errors.Is(err, sheet.ErrUnreadable),
		errors.Is(err, sheet.ErrEmptySheet),
		errors.Is(err, sheet.ErrTooLarge):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tracker.ErrClassNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("internal_error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
