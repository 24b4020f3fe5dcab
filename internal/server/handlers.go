package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/reportdsl/internal/datasource"
	"github.com/leapstack-labs/reportdsl/internal/project"
	"github.com/leapstack-labs/reportdsl/internal/store"
	"github.com/leapstack-labs/reportdsl/pkg/dsl"
	"github.com/leapstack-labs/reportdsl/pkg/params"
	"github.com/leapstack-labs/reportdsl/pkg/preview"
)

// maxBody bounds request bodies; scripts are small.
const maxBody = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Kind    string                   `json:"kind"`
	Message string                   `json:"message"`
	Pos     *dsl.Position            `json:"pos,omitempty"`
	Dialect dsl.Dialect              `json:"dialect,omitempty"`
	Errors  []params.ValidationError `json:"errors,omitempty"`
}

// projectResponse is returned by POST /api/dsl/{dialect}.
type projectResponse struct {
	Dialect dsl.Dialect `json:"dialect"`
	Config  any         `json:"config"`
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	d, ok := dsl.ParseDialect(chi.URLParam(r, "dialect"))
	if !ok {
		s.writeError(w, http.StatusNotFound, errorBody{Kind: "dialect", Message: fmt.Sprintf("unknown dialect %q", chi.URLParam(r, "dialect"))})
		return
	}
	script, err := readText(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errorBody{Kind: "request", Message: err.Error()})
		return
	}

	cfg, err := project.ProjectScript(d, script)
	if err != nil {
		s.writeDSLError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, projectResponse{Dialect: d, Config: cfg})
}

// formRequest carries a reportParameters script and optional values that
// query-backed options may reference.
type formRequest struct {
	Script string         `json:"script"`
	Values map[string]any `json:"values,omitempty"`
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	var req formRequest
	if !s.decode(w, r, &req) {
		return
	}
	specs, err := params.ProjectScript(req.Script)
	if err != nil {
		s.writeDSLError(w, err)
		return
	}

	form := params.NewForm(specs, s.now())
	if s.options != nil {
		values := form.Values()
		for k, v := range req.Values {
			values[k] = v
		}
		if err := datasource.LoadOptions(r.Context(), s.options, specs, values); err != nil {
			s.writeError(w, http.StatusBadGateway, errorBody{Kind: "options", Message: err.Error()})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, form)
}

// validateRequest carries a reportParameters script and raw submitted values.
type validateRequest struct {
	Script string         `json:"script"`
	Values map[string]any `json:"values"`
}

// validateResponse reports coerced values and field failures.
type validateResponse struct {
	OK     bool                     `json:"ok"`
	Values map[string]any           `json:"values"`
	Errors []params.ValidationError `json:"errors"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, ok := s.validate(w, req.Script, req.Values)
	if !ok {
		return
	}
	errs := res.Errors
	if errs == nil {
		errs = []params.ValidationError{}
	}
	s.writeJSON(w, http.StatusOK, validateResponse{OK: res.OK(), Values: res.Values, Errors: errs})
}

// previewRequest validates values against the parameters script, then runs
// the data source with the coerced values.
type previewRequest struct {
	Parameters string             `json:"parameters"`
	Values     map[string]any     `json:"values"`
	DataSource preview.DataSource `json:"dataSource"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.preview == nil {
		s.writeError(w, http.StatusNotImplemented, errorBody{Kind: "preview", Message: "previews are not configured"})
		return
	}
	var req previewRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, ok := s.validate(w, req.Parameters, req.Values)
	if !ok {
		return
	}
	if !res.OK() {
		s.writeError(w, http.StatusUnprocessableEntity, errorBody{Kind: "validation", Message: "parameter values are invalid", Errors: res.Errors})
		return
	}

	result, err := s.preview.RunPreview(r.Context(), req.DataSource, res.Values)
	var busy *preview.BusyError
	var execErr *preview.ExecutionError
	switch {
	case errors.As(err, &busy):
		s.writeError(w, http.StatusConflict, errorBody{Kind: "busy", Message: err.Error()})
	case errors.As(err, &execErr):
		s.writeError(w, http.StatusBadGateway, errorBody{Kind: "execution", Message: execErr.Message})
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, errorBody{Kind: "internal", Message: err.Error()})
	default:
		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) validate(w http.ResponseWriter, script string, values map[string]any) (params.Result, bool) {
	specs, err := params.ProjectScript(script)
	if err != nil {
		s.writeDSLError(w, err)
		return params.Result{}, false
	}
	return params.NewForm(specs, s.now()).Submit(values), true
}

func (s *Server) handleListScripts(w http.ResponseWriter, r *http.Request) {
	scripts, err := s.store.ListScripts(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, scripts)
}

func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	text, err := s.store.LoadScript(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text)
}

func (s *Server) handlePutScript(w http.ResponseWriter, r *http.Request) {
	text, err := readText(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errorBody{Kind: "request", Message: err.Error()})
		return
	}
	rel := chi.URLParam(r, "*")
	rev, err := s.store.SaveScript(r.Context(), rel, text)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if rev == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, rev)
}

func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	h := s.store.History()
	if h == nil {
		s.writeError(w, http.StatusNotImplemented, errorBody{Kind: "history", Message: "script history is disabled"})
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, errorBody{Kind: "request", Message: "missing path query parameter"})
		return
	}
	revs, err := h.List(r.Context(), path)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, revs)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if s.store.History() == nil {
		s.writeError(w, http.StatusNotImplemented, errorBody{Kind: "history", Message: "script history is disabled"})
		return
	}
	rev, err := s.store.Restore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rev)
}

// handleEvents streams check reports for changed scripts as Datastar signal
// patches until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	events := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(events)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if err := sse.MarshalAndPatchSignals(map[string]any{"scriptEvent": ev}); err != nil {
				s.logger.Debug("event stream closed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, errorBody{Kind: "request", Message: fmt.Sprintf("invalid JSON body: %v", err)})
		return false
	}
	return true
}

func readText(r *http.Request) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > maxBody {
		return "", errors.New("request body too large")
	}
	return string(data), nil
}

func (s *Server) writeDSLError(w http.ResponseWriter, err error) {
	var synErr *dsl.SyntaxError
	var semErr *dsl.SemanticError
	switch {
	case errors.As(err, &synErr):
		pos := synErr.Pos
		s.writeError(w, http.StatusUnprocessableEntity, errorBody{Kind: "syntax", Message: synErr.Message, Pos: &pos})
	case errors.As(err, &semErr):
		body := errorBody{Kind: "semantic", Message: semErr.Message, Dialect: semErr.Dialect}
		if semErr.Pos.IsValid() {
			pos := semErr.Pos
			body.Pos = &pos
		}
		s.writeError(w, http.StatusUnprocessableEntity, body)
	default:
		s.writeError(w, http.StatusBadRequest, errorBody{Kind: "request", Message: err.Error()})
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var nf *store.NotFoundError
	var pe *store.PathError
	switch {
	case errors.As(err, &nf):
		s.writeError(w, http.StatusNotFound, errorBody{Kind: "not_found", Message: err.Error()})
	case errors.As(err, &pe):
		s.writeError(w, http.StatusBadRequest, errorBody{Kind: "path", Message: err.Error()})
	default:
		s.logger.Error("store operation failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, errorBody{Kind: "internal", Message: err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, body errorBody) {
	s.writeJSON(w, status, map[string]errorBody{"error": body})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		s.logger.Debug("failed to write response", slog.String("error", err.Error()))
	}
}
