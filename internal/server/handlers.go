package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/freecoach/internal/apperr"
	"github.com/meltforce/freecoach/internal/coach"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in coach.UserInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := s.svc.CreateUser(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	users, err := s.svc.ListUsers(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	u, err := s.svc.GetUser(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCreateExerciseType(w http.ResponseWriter, r *http.Request) {
	var in coach.ExerciseTypeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	et, err := s.svc.CreateExerciseType(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, et)
}

func (s *Server) handleListExerciseTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.svc.ListExerciseTypes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req coach.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	plan, err := s.svc.GeneratePlan(r.Context(), uid, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	plans, err := s.svc.ListUserPlans(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathID(w, r, "planID")
	if !ok {
		return
	}
	tree, err := s.svc.GetPlanDetails(r.Context(), pid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathID(w, r, "planID")
	if !ok {
		return
	}
	var upd coach.PlanUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	plan, err := s.svc.UpdatePlan(r.Context(), pid, upd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathID(w, r, "planID")
	if !ok {
		return
	}
	res, err := s.svc.DeletePlan(r.Context(), pid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReportSessions accepts either a bare array of reports or an object
// with a "reports" array.
func (s *Server) handleReportSessions(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	pid, ok := pathID(w, r, "planID")
	if !ok {
		return
	}

	var raw json.RawMessage
	if !decodeJSON(w, r, &raw) {
		return
	}
	var reports []coach.ReportInput
	var err error
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &reports)
	} else {
		var wrapped struct {
			Reports []coach.ReportInput `json:"reports"`
		}
		err = json.Unmarshal(trimmed, &wrapped)
		reports = wrapped.Reports
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON: " + err.Error(), Kind: apperr.Validation.String()})
		return
	}

	res, err := s.svc.ReportSessions(r.Context(), uid, pid, reports)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	days, ok := queryInt(w, r, "days")
	if !ok {
		return
	}
	sum, err := s.svc.GetProgress(r.Context(), uid, days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.MalformedResponse, apperr.GenerationFailure:
		return http.StatusBadGateway
	case apperr.GenerationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	body := errorBody{Error: err.Error(), Kind: kind.String()}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Field = ae.Field
		body.Excerpt = ae.Excerpt
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", kind.String(),
			"request_id", requestIDFromContext(r),
			"error", err,
		)
		if kind == apperr.Internal || kind == apperr.Persistence {
			body.Error = "internal error"
		}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		msg := "invalid JSON: " + err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: apperr.Validation.String()})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: fmt.Sprintf("invalid %s", name),
			Kind:  apperr.Validation.String(),
			Field: name,
		})
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter; absent means 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: fmt.Sprintf("%s must be an integer", name),
			Kind:  apperr.Validation.String(),
			Field: name,
		})
		return 0, false
	}
	return n, true
}
