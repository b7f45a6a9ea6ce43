// Package httpapi implements the service's HTTP surface, grounded
// directly on gopatchy-rooms/main.go's net/http + Go 1.22 method-and-
// pattern routing style: stdlib net/http, no router framework, plain
// http.HandlerFunc closures over shared dependencies.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"google.golang.org/api/idtoken"

	"github.com/nlevy/classrooms-go/internal/apperrors"
	"github.com/nlevy/classrooms-go/internal/evaluate"
	"github.com/nlevy/classrooms-go/internal/ingest"
	"github.com/nlevy/classrooms-go/internal/orchestrate"
	"github.com/nlevy/classrooms-go/internal/store"
)

// Server holds the dependencies every handler needs. store is
// optional: when nil, submitted rosters and results are simply not
// persisted, and history endpoints report 404.
type Server struct {
	orch            *orchestrate.Orchestrator
	store           *store.Store
	googleClientID  string // optional; empty disables auth
}

// New constructs a Server. googleClientID is the GOOGLE_CLIENT_ID env var --
// when set, POST /classrooms requires a valid Google ID token on the
// Authorization header, verified via idtoken.Validate.
func New(orch *orchestrate.Orchestrator, st *store.Store, googleClientID string) *Server {
	return &Server{orch: orch, store: st, googleClientID: googleClientID}
}

// Handler builds the routing table using Go 1.22's "METHOD /path"
// HandleFunc patterns.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /classrooms", s.handleAssign)
	mux.HandleFunc("GET /rosters/{rosterID}/assignments", s.handleListAssignments)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(); err != nil {
			http.Error(w, "db unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Write([]byte("ok"))
}

type assignResponse struct {
	Strategy   string                      `json:"strategy"`
	FellBack   bool                        `json:"fellBack"`
	RosterID   int64                       `json:"rosterId,omitempty"`
	Assignment map[string]int              `json:"assignment"`
	Evaluation evaluationResponse          `json:"evaluation"`
	Classes    []evaluate.ClassSummary     `json:"classes"`
	Warnings   []string                    `json:"warnings,omitempty"`
}

type evaluationResponse struct {
	Feasible             bool    `json:"feasible"`
	FriendshipScore      float64 `json:"friendshipScore"`
	GenderBalanceScore   float64 `json:"genderBalanceScore"`
	AcademicBalanceScore float64 `json:"academicBalanceScore"`
	BehaviorBalanceScore float64 `json:"behaviorBalanceScore"`
	ClusterScore         float64 `json:"clusterScore"`
	OverallScore         float64 `json:"overallScore"`
}

// handleAssign implements POST /classrooms?classesNumber=K from spec
// §6.1/§6.2: decode the roster, run the orchestrator, and render
// either the assignment envelope or the {error:{code,params,message}}
// envelope from apperrors.Error.MarshalJSON.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	if s.googleClientID != "" {
		if !s.authorized(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	k, err := strconv.Atoi(r.URL.Query().Get("classesNumber"))
	if err != nil || k <= 0 {
		writeError(w, apperrors.New(apperrors.ErrInvalidClassCount,
			map[string]any{"classesNumber": r.URL.Query().Get("classesNumber")}, "classesNumber query parameter must be a positive integer"))
		return
	}

	raw, err := ingest.FromJSON(r.Body)
	if err != nil {
		writeError(w, apperrors.New(apperrors.ErrMissingRequiredFields, map[string]any{}, err.Error()))
		return
	}

	result, err := s.orch.Assign(r.Context(), raw, k)
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			writeError(w, appErr)
			return
		}
		log.Printf("assign: unexpected error: %v", err)
		writeError(w, apperrors.New(apperrors.ErrInternal, map[string]any{}, err.Error()))
		return
	}

	resp := assignResponse{
		Strategy: result.Strategy,
		FellBack: result.FellBack,
		Assignment: assignmentByName(result),
		Evaluation: evaluationResponse{
			Feasible:             result.Evaluation.Feasible,
			FriendshipScore:      result.Evaluation.FriendshipScore,
			GenderBalanceScore:   result.Evaluation.GenderBalanceScore,
			AcademicBalanceScore: result.Evaluation.AcademicBalanceScore,
			BehaviorBalanceScore: result.Evaluation.BehaviorBalanceScore,
			ClusterScore:         result.Evaluation.ClusterScore,
			OverallScore:         result.Evaluation.OverallScore,
		},
		Classes: result.Evaluation.Classes,
	}
	for _, warning := range result.Warnings {
		resp.Warnings = append(resp.Warnings, warning.String())
	}

	if s.store != nil {
		rosterID, err := s.store.SaveRoster(r.Context(), "", raw)
		if err != nil {
			log.Printf("assign: saving roster: %v", err)
		} else {
			resp.RosterID = rosterID
			if _, err := s.store.SaveAssignment(r.Context(), rosterID, k, result); err != nil {
				log.Printf("assign: saving assignment: %v", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func assignmentByName(result orchestrate.Result) map[string]int {
	out := make(map[string]int, result.Roster.Len())
	for i, name := range result.Roster.Names() {
		out[name] = result.Assignment[i]
	}
	return out
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	rosterID, err := strconv.ParseInt(r.PathValue("rosterID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid roster ID", http.StatusBadRequest)
		return
	}
	assignments, err := s.store.ListAssignments(r.Context(), rosterID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(assignments)
}

func (s *Server) authorized(r *http.Request) bool {
	token := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return false
	}
	_, err := idtoken.Validate(context.Background(), token[len(prefix):], s.googleClientID)
	return err == nil
}

// statusFor maps a closed error code to an HTTP status along the usual
// client/server split: malformed or unsatisfiable input is a 4xx,
// solver exhaustion under deadline is a 5xx.
func statusFor(code string) int {
	switch code {
	case "EMPTY_STUDENT_DATA", "MISSING_REQUIRED_FIELDS", "DUPLICATE_STUDENT_NAMES",
		"STUDENT_NO_FRIENDS", "UNKNOWN_FRIEND", "ISOLATED_STUDENTS",
		"INVALID_CLASS_COUNT", "INVALID_STUDENT_COUNT", "TOO_MANY_CLASSES", "CLASS_SIZE_TOO_SMALL":
		return http.StatusBadRequest
	case "ASSIGNMENT_FAILED", "NO_SOLUTION_FOUND":
		return http.StatusUnprocessableEntity
	case "OPTIMIZATION_TIMEOUT":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err *apperrors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err.Code))
	json.NewEncoder(w).Encode(err)
}
