// Package backend is a local stand-in for the hosted CRUD service: a
// schemaless JSON collection server with crudcrud-style routes, backed by
// SQLite. It exists for offline development and end-to-end tests.
package backend

import (
	"bytes"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/unicorns/internal/db"
	"github.com/hpungsan/unicorns/internal/errors"
	"github.com/hpungsan/unicorns/internal/logger"
)

// IDField is the key the generated id is exposed under.
const IDField = "_id"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server handles the collection routes.
type Server struct {
	db  *sql.DB
	log logger.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New creates a Server over an initialized database.
func New(database *sql.DB, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Server{
		db:      database,
		log:     log,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Handler returns the route mux wrapped with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/{account}/{collection}", s.handleList)
	mux.HandleFunc("POST /api/{account}/{collection}", s.handleCreate)
	mux.HandleFunc("GET /api/{account}/{collection}/{id}", s.handleGet)
	mux.HandleFunc("PUT /api/{account}/{collection}/{id}", s.handleReplace)
	mux.HandleFunc("DELETE /api/{account}/{collection}/{id}", s.handleDelete)

	return s.logRequests(mux)
}

// NewHTTPServer wraps the handler in an *http.Server listening on addr.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := db.List(r.Context(), s.db, r.PathValue("account"), r.PathValue("collection"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(docs))
	for i := range docs {
		obj, err := withID(&docs[i])
		if err != nil {
			s.writeError(w, errors.NewInternal(err))
			return
		}
		out = append(out, obj)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := readObject(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	d := &db.Document{
		ID:         s.newID(),
		Account:    r.PathValue("account"),
		Collection: r.PathValue("collection"),
		Body:       body,
	}
	if err := db.Insert(r.Context(), s.db, d); err != nil {
		s.writeError(w, err)
		return
	}

	obj, err := withID(d)
	if err != nil {
		s.writeError(w, errors.NewInternal(err))
		return
	}
	writeJSON(w, http.StatusCreated, obj)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	d, err := db.GetByID(r.Context(), s.db, r.PathValue("account"), r.PathValue("collection"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	obj, err := withID(d)
	if err != nil {
		s.writeError(w, errors.NewInternal(err))
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// handleReplace overwrites the stored object. Like the hosted service it
// answers 200 with an empty body.
func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	body, err := readObject(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	d := &db.Document{
		ID:         r.PathValue("id"),
		Account:    r.PathValue("account"),
		Collection: r.PathValue("collection"),
		Body:       body,
	}
	if err := db.Replace(r.Context(), s.db, d); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := db.Delete(r.Context(), s.db, r.PathValue("account"), r.PathValue("collection"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// newID returns a ULID. Monotonic entropy keeps ids created in the same
// millisecond ordered, so listing by id preserves insertion order.
func (s *Server) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// readObject decodes the request body as a single JSON object and returns it
// re-encoded without any client-supplied id.
func readObject(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, errors.NewInvalidRequest("request body too large")
		}
		return nil, errors.NewInvalidRequest("request body must be a JSON object")
	}
	if obj == nil {
		return nil, errors.NewInvalidRequest("request body must be a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.NewInvalidRequest("request body must contain a single JSON object")
	}

	delete(obj, IDField)

	data, err := json.Marshal(obj)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return data, nil
}

// withID decodes a stored body and attaches its id.
func withID(d *db.Document) (map[string]any, error) {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(d.Body))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]any{}
	}
	obj[IDField] = d.ID
	return obj, nil
}

// writeError renders err in the same JSON envelope the web UI uses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var uErr *errors.UnicornError
	if !stderrors.As(err, &uErr) {
		uErr = errors.NewInternal(err)
	}
	if uErr.Status >= 500 {
		s.log.Error("backend request failed", "error", err)
	}
	writeJSON(w, uErr.Status, map[string]any{
		"error": map[string]any{
			"code":    string(uErr.Code),
			"message": uErr.Message,
			"status":  uErr.Status,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("backend request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
