package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"ordwal/pkg/batch"
	"ordwal/pkg/clock"
	"ordwal/pkg/config"
	"ordwal/pkg/dberrors"
	"ordwal/pkg/types"
	"ordwal/pkg/wal"
)

const (
	contentTypeJSON        = "application/json"
	defaultHTTPPort        = 8080
	defaultShutdownTimeout = time.Second * 5
	defaultIterLimit       = 1000
)

type iVersionedLog interface {
	GetEntry(version uint64, key []byte) (wal.Entry, bool)
	GetWithTombstone(version uint64, key []byte) (wal.Entry, bool)
	Range(version uint64, rg types.Range) iter.Seq[wal.Entry]
	RangeRev(version uint64, rg types.Range) iter.Seq[wal.Entry]
	RangeWithTombstone(version uint64, rg types.Range) iter.Seq[wal.Entry]

	Insert(version uint64, key, value []byte) error
	Remove(version uint64, key []byte) error
	RangeDelete(version uint64, rg types.Range) error
	RangeSet(version uint64, rg types.Range, value []byte) error
	RangeUnset(version uint64, rg types.Range) error
	Apply(b *batch.Batch) error
	Flush() error

	Path() string
	Len() int
	Capacity() uint32
	Remaining() uint32
	Committed() uint32
	MinimumVersion() uint64
	MaximumVersion() uint64
}

// Server exposes a versioned log over HTTP. Writes are stamped with versions from a clock
// that starts at the newest version found in the log.
type Server struct {
	log   iVersionedLog
	clock *clock.AtomicClock

	// mu orders writes so that versions grow along the log.
	mu sync.Mutex

	httpServer *http.Server
	URL        string
	addr       string
	timeout    time.Duration
}

// NewServer creates a new server instance
func NewServer(log iVersionedLog, cfg config.ServerConfig) *Server {
	port := cfg.Port
	if port == 0 {
		port = defaultHTTPPort
	}
	timeout := cfg.ReadHeaderTimeout
	if timeout == 0 {
		timeout = time.Second
	}
	c := clock.NewAtomic(0)
	// resume after the newest version already in the log
	c.Observe(log.MaximumVersion())
	return &Server{
		log:     log,
		clock:   c,
		URL:     fmt.Sprintf("http://localhost:%d", port),
		addr:    fmt.Sprintf(":%d", port),
		timeout: timeout,
	}
}

// Start starts the server
func (s *Server) Start() error {
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}
	return nil
}

// Handler builds the chi router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/api/stats", s.handleStats)
	r.Put("/api/string", s.handlePut)
	r.Get("/api/string", s.handleGet)
	r.Delete("/api", s.handleDelete)
	r.Put("/api/range", s.handleRangeSet)
	r.Delete("/api/range", s.handleRangeDelete)
	r.Post("/api/range/unset", s.handleRangeUnset)
	r.Post("/api/batch", s.handleBatch)
	r.Get("/api/iter", s.handleIter)
	r.Post("/api/flush", s.handleFlush)

	return r
}

func (s *Server) startHTTPServer() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.timeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", "addr", s.URL)
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

// writeError maps log errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dberrors.ErrTooLarge), errors.Is(err, dberrors.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, dberrors.ErrInsufficientSpace):
		status = http.StatusInsufficientStorage
	case errors.Is(err, dberrors.ErrReadOnly), errors.Is(err, dberrors.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, NewErrorResponse(err.Error()))
}

// write runs fn under the write lock with the next version.
func (s *Server) write(fn func(version uint64) error) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.clock.Val() + 1
	if err := fn(version); err != nil {
		return 0, err
	}
	return s.clock.Observe(version), nil
}

// readVersion returns the version query parameter, or the latest stamped version.
func (s *Server) readVersion(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("version")
	if raw == "" {
		return s.clock.Val(), nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad version %q", raw)
	}
	return v, nil
}

// parseRange reads a half-open [start, end) range. A missing bound is unbounded.
func parseRange(values func(string) string, has func(string) bool) types.Range {
	rg := types.All()
	if has("start") {
		rg.Start = types.IncludedBound([]byte(values("start")))
	}
	if has("end") {
		rg.End = types.ExcludedBound([]byte(values("end")))
	}
	return rg
}

func formRange(r *http.Request) types.Range {
	return parseRange(r.Form.Get, r.Form.Has)
}

func queryRange(r *http.Request) types.Range {
	q := r.URL.Query()
	return parseRange(q.Get, q.Has)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewOKResponse())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StatsResponse{
		Status:         StatusSuccess,
		Path:           s.log.Path(),
		Entries:        s.log.Len(),
		Capacity:       s.log.Capacity(),
		Remaining:      s.log.Remaining(),
		Committed:      s.log.Committed(),
		MinimumVersion: s.log.MinimumVersion(),
		MaximumVersion: s.log.MaximumVersion(),
		Clock:          s.clock.Val(),
	})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Failed to parse form"))
		return
	}
	if !r.Form.Has("key") || !r.Form.Has("value") {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key or value"))
		return
	}
	key, value := []byte(r.Form.Get("key")), []byte(r.Form.Get("value"))

	version, err := s.write(func(v uint64) error { return s.log.Insert(v, key, value) })
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse(version))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("key") {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key"))
		return
	}
	version, err := s.readVersion(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	e, found := s.log.GetEntry(version, []byte(q.Get("key")))
	if !found {
		s.writeJSON(w, http.StatusNotFound, NewErrorResponse("Key not found"))
		return
	}
	s.writeJSON(w, http.StatusOK, NewValueResponse(e))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key"))
		return
	}

	version, err := s.write(func(v uint64) error { return s.log.Remove(v, []byte(key)) })
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse(version))
}

func (s *Server) handleRangeSet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Failed to parse form"))
		return
	}
	if !r.Form.Has("value") {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing value"))
		return
	}
	rg, value := formRange(r), []byte(r.Form.Get("value"))

	version, err := s.write(func(v uint64) error { return s.log.RangeSet(v, rg, value) })
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse(version))
}

func (s *Server) handleRangeDelete(w http.ResponseWriter, r *http.Request) {
	rg := queryRange(r)
	version, err := s.write(func(v uint64) error { return s.log.RangeDelete(v, rg) })
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse(version))
}

func (s *Server) handleRangeUnset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Failed to parse form"))
		return
	}
	rg := formRange(r)
	version, err := s.write(func(v uint64) error { return s.log.RangeUnset(v, rg) })
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse(version))
}

// BatchOp is one operation of a batch request body.
type BatchOp struct {
	Op    string  `json:"op"`
	Key   string  `json:"key,omitempty"`
	Value string  `json:"value,omitempty"`
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
}

func (op BatchOp) rng() types.Range {
	rg := types.All()
	if op.Start != nil {
		rg.Start = types.IncludedBound([]byte(*op.Start))
	}
	if op.End != nil {
		rg.End = types.ExcludedBound([]byte(*op.End))
	}
	return rg
}

// handleBatch applies a JSON list of operations atomically, all at one version.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var ops []BatchOp
	if err := json.NewDecoder(r.Body).Decode(&ops); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	version, err := s.write(func(v uint64) error {
		b := batch.New()
		for _, op := range ops {
			switch op.Op {
			case "put":
				b.PutAt([]byte(op.Key), []byte(op.Value), v)
			case "delete":
				b.DeleteAt([]byte(op.Key), v)
			case "range_delete":
				b.RangeDelete(op.rng(), v)
			case "range_set":
				b.RangeSet(op.rng(), []byte(op.Value), v)
			case "range_unset":
				b.RangeUnset(op.rng(), v)
			default:
				return fmt.Errorf("%w: unknown op %q", dberrors.ErrInvalidArgument, op.Op)
			}
		}
		return s.log.Apply(b)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse(version))
}

// handleIter lists entries of [start, end) as of version. reverse=true walks backwards and
// tombstones=true includes every stored version.
func (s *Server) handleIter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	version, err := s.readVersion(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	limit := defaultIterLimit
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(fmt.Sprintf("bad limit %q", raw)))
			return
		}
	}

	rg := queryRange(r)
	seq := s.log.Range(version, rg)
	switch {
	case q.Get("tombstones") == "true":
		seq = s.log.RangeWithTombstone(version, rg)
	case q.Get("reverse") == "true":
		seq = s.log.RangeRev(version, rg)
	}

	items := make([]Item, 0)
	for e := range seq {
		items = append(items, newItem(e))
		if len(items) == limit {
			break
		}
	}
	s.writeJSON(w, http.StatusOK, ItemsResponse{Status: StatusSuccess, Version: version, Items: items})
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.log.Flush()
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse(s.clock.Val()))
}
