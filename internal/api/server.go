// Package api serves terms over HTTP.
//
//	GET  /query?query=users(messages)&param=1
//	GET  /api/users/1/messages
//	POST /api/users            (JSON body with the parameters)
//
// Responses are JSON. Failures have the form
//
//	{"error": {"code": "PARSE_ERROR", "message": "..."}}
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/engine"
	"github.com/wdiesveld/tinyqueries/internal/profile"
)

// profilingParam adds timing information to the response when set.
const profilingParam = "_profiling"

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

// Server handles term requests.
type Server struct {
	eng         *engine.Engine
	logger      *slog.Logger
	corsOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithCORSOrigins sets the origins allowed to call the API. "*" allows
// any origin. Default: none.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// New creates a Server for eng.
func New(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		eng:    eng,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.logRequests)
	r.Use(chimw.Recoverer)
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/query", s.handleQuery)
	r.Post("/query", s.handleQuery)
	r.HandleFunc("/api/*", s.handleResource)
	return r
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	t := r.URL.Query().Get("query")
	if t == "" {
		writeError(w, badRequest("query-param is empty"))
		return
	}
	// "+" arrives as a space in query strings but is the attach operator.
	res := resource{term: strings.ReplaceAll(t, " ", "+")}
	if r.URL.Query().Has("param") {
		res.param = r.URL.Query().Get("param")
		res.hasParam = true
	}
	s.serve(w, r, res)
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	res, err := pathToTerm(chi.URLParam(r, "*"), r.Method)
	if err != nil {
		writeError(w, badRequest(err.Error()))
		return
	}
	if res.term == "" {
		writeError(w, badRequest("path is empty"))
		return
	}
	s.serve(w, r, res)
}

// serve runs res once per parameter set. More than one set gives a list of
// results.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, res resource) {
	sets, err := s.paramSets(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var prof *profile.Profiler
	if r.URL.Query().Get(profilingParam) != "" {
		prof = profile.New(nil)
	}
	env := &engine.Env{Globals: s.eng.Globals(), Profiler: prof}

	results := make([]any, 0, len(sets))
	prof.Begin("query")
	for _, params := range sets {
		out, err := s.run(r, res, params, env)
		if err != nil {
			writeError(w, err)
			return
		}
		results = append(results, out)
	}
	prof.End()

	var response any = results
	if len(results) == 1 {
		response = results[0]
	}
	if prof != nil {
		response = map[string]any{
			"query":     res.term,
			"result":    response,
			"profiling": prof.Results(),
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) run(r *http.Request, res resource, params map[string]any, env *engine.Env) (any, error) {
	q, err := s.eng.Query(res.term)
	if err != nil {
		return nil, err
	}
	if res.hasParam {
		dp := q.DefaultParam()
		if dp == "" {
			return nil, engine.NewParamBindingError("",
				"single parameter value passed, but query does not have a default parameter")
		}
		params[dp] = res.param
	}
	if err := q.Params(params); err != nil {
		return nil, err
	}

	op := q.Operation()
	if res.single && (op == "" || op == catalog.OpRead) {
		return q.Select1(r.Context(), env)
	}
	return q.Run(r.Context(), env)
}

// paramSets collects the request parameters. Query and form values form
// one set; otherwise a JSON object body gives one set and a JSON array of
// objects one set per element. Reserved names, names starting with "_"
// and registered globals are ignored.
func (s *Server) paramSets(r *http.Request) ([]map[string]any, error) {
	if err := r.ParseForm(); err != nil {
		return nil, badRequest("cannot parse request: " + err.Error())
	}

	params := make(map[string]any)
	for name, values := range r.Form {
		if name == "query" || name == "param" || strings.HasPrefix(name, "_") || len(values) == 0 {
			continue
		}
		if _, global := s.eng.Global(name); global {
			continue
		}
		params[name] = values[0]
	}
	if len(params) > 0 {
		return []map[string]any{params}, nil
	}

	if r.Body == nil {
		return []map[string]any{{}}, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, badRequest("cannot read body: " + err.Error())
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || (body[0] != '{' && body[0] != '[') {
		return []map[string]any{{}}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, badRequest("invalid JSON body: " + err.Error())
	}
	switch v := catalog.NormalizeJSON(raw).(type) {
	case map[string]any:
		return []map[string]any{s.dropGlobals(v)}, nil
	case []any:
		sets := make([]map[string]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, badRequest(fmt.Sprintf("body[%d] is not an object", i))
			}
			sets = append(sets, s.dropGlobals(m))
		}
		if len(sets) == 0 {
			sets = append(sets, map[string]any{})
		}
		return sets, nil
	}
	return []map[string]any{{}}, nil
}

func (s *Server) dropGlobals(params map[string]any) map[string]any {
	for name := range params {
		if _, global := s.eng.Global(name); global {
			delete(params, name)
		}
	}
	return params
}

// logRequests logs one line per request after it completes.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()))
	})
}

// requestError is a failure of the request itself rather than of the
// term.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(msg string) error {
	return &requestError{status: http.StatusBadRequest, message: msg}
}

// statusFor maps an error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	var re *requestError
	if errors.As(err, &re) {
		return re.status, "BAD_REQUEST"
	}
	code, ok := engine.CodeOf(err)
	switch {
	case !ok:
		return http.StatusInternalServerError, "INTERNAL"
	case code == engine.CodeMissingInterface:
		return http.StatusNotFound, string(code)
	case code == engine.CodeRowSource:
		return http.StatusInternalServerError, string(code)
	}
	return http.StatusBadRequest, string(code)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": err.Error()},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
