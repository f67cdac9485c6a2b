package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/epiguide/epiguide/internal/planner"
	"github.com/epiguide/epiguide/internal/report"
)

// PlanRequest is the body of POST /api/v1/plan.
type PlanRequest struct {
	Text string `json:"text"`
}

// LookupRequest is the body of POST /api/v1/lookup.
type LookupRequest struct {
	Gene    string `json:"gene"`
	Variant string `json:"variant"`
}

// RecommendRequest is the body of POST /api/v1/recommend. Syndromes is the
// list previously returned by a lookup; Syndrome must be one of them.
type RecommendRequest struct {
	Gene      string   `json:"gene"`
	Variant   string   `json:"variant"`
	Syndrome  string   `json:"syndrome"`
	Syndromes []string `json:"syndromes"`
}

// PlanResponse is the response of POST /api/v1/plan.
type PlanResponse struct {
	RunID      string          `json:"run_id"`
	Parsed     any             `json:"parsed"`
	Reports    []report.Report `json:"reports"`
	Syndromes  []string        `json:"syndromes"`
	Treatments string          `json:"treatments"`
}

// LookupResponse is the response of POST /api/v1/lookup. Zero ClinVar hits
// yields 200 with empty lists.
type LookupResponse struct {
	RunID     string          `json:"run_id"`
	Query     string          `json:"query"`
	Reports   []report.Report `json:"reports"`
	Syndromes []string        `json:"syndromes"`
}

// RecommendResponse is the response of POST /api/v1/recommend.
type RecommendResponse struct {
	Syndrome  string `json:"syndrome"`
	Treatment string `json:"treatment"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "text is required")
		return
	}

	state, err := s.pipeline.Run(r.Context(), req.Text)
	if err != nil {
		s.logger.Error("pipeline run failed", "error", err)
		writeError(w, http.StatusBadGateway, "pipeline_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PlanResponse{
		RunID:      state.RunID.String(),
		Parsed:     state.Parsed,
		Reports:    emptyIfNil(state.Reports),
		Syndromes:  emptyStringsIfNil(state.Syndromes),
		Treatments: state.Treatments,
	})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if strings.TrimSpace(req.Gene) == "" && strings.TrimSpace(req.Variant) == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "gene or variant is required")
		return
	}

	state, err := s.pipeline.Lookup(r.Context(), req.Gene, req.Variant)
	if err != nil {
		s.logger.Error("lookup failed", "error", err, "gene", req.Gene, "variant", req.Variant)
		writeError(w, http.StatusBadGateway, "lookup_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, LookupResponse{
		RunID:     state.RunID.String(),
		Query:     state.Lookup.Query,
		Reports:   emptyIfNil(state.Reports),
		Syndromes: emptyStringsIfNil(state.Syndromes),
	})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if strings.TrimSpace(req.Syndrome) == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "syndrome is required")
		return
	}

	treatment, err := s.pipeline.Recommend(r.Context(), req.Gene, req.Variant, req.Syndrome, req.Syndromes)
	if err != nil {
		if errors.Is(err, planner.ErrUnknownSyndrome) {
			writeError(w, http.StatusUnprocessableEntity, "unknown_syndrome", err.Error())
			return
		}
		s.logger.Error("recommend failed", "error", err, "syndrome", req.Syndrome)
		writeError(w, http.StatusBadGateway, "recommend_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, RecommendResponse{
		Syndrome:  req.Syndrome,
		Treatment: treatment,
	})
}

func emptyIfNil(reports []report.Report) []report.Report {
	if reports == nil {
		return []report.Report{}
	}
	return reports
}

func emptyStringsIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
