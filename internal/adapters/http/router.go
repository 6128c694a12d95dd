package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/claims-intake/internal/core/domain"
	"github.com/kirillkom/claims-intake/internal/core/ports"
	"github.com/kirillkom/claims-intake/internal/observability/metrics"
)

const maxRequestBodyBytes = 1 << 20

type Options struct {
	Service        string
	Metrics        *metrics.HTTPServerMetrics
	RateLimitRPS   float64
	RateLimitBurst int
}

type Router struct {
	intake      ports.ClaimIntake
	damages     ports.DamageCalculator
	submissions ports.SubmissionReader
	opts        Options
	limiter     *clientLimiter
}

func NewRouter(
	intake ports.ClaimIntake,
	damages ports.DamageCalculator,
	submissions ports.SubmissionReader,
	opts Options,
) *Router {
	if opts.Service == "" {
		opts.Service = "api"
	}
	var limiter *clientLimiter
	if opts.RateLimitRPS > 0 {
		limiter = newClientLimiter(opts.RateLimitRPS, opts.RateLimitBurst, 10*time.Minute)
	}
	return &Router{
		intake:      intake,
		damages:     damages,
		submissions: submissions,
		opts:        opts,
		limiter:     limiter,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/damages/aggregate", rt.aggregateDamages)
	api.HandleFunc("POST /v1/drafts", rt.createDraft)
	api.HandleFunc("GET /v1/drafts/{id}", rt.getDraft)
	api.HandleFunc("DELETE /v1/drafts/{id}", rt.discardDraft)
	api.HandleFunc("PATCH /v1/drafts/{id}/fields", rt.updateFields)
	api.HandleFunc("PUT /v1/drafts/{id}/step", rt.moveToStep)
	api.HandleFunc("POST /v1/drafts/{id}/prediction", rt.requestPrediction)
	api.HandleFunc("POST /v1/drafts/{id}/submit", rt.submitClaim)
	api.HandleFunc("GET /v1/submissions/{reference}", rt.getSubmission)

	var apiHandler http.Handler = api
	if rt.limiter != nil {
		apiHandler = rateLimitMiddleware(apiHandler, rt.limiter, rt.onRateLimited)
	}
	mux.Handle("/v1/", apiHandler)

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) onRateLimited(r *http.Request) {
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordRateLimited(rt.opts.Service, r.URL.Path)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type fieldsRequest struct {
	Fields domain.FieldValues `json:"fields"`
}

func (rt *Router) aggregateDamages(w http.ResponseWriter, r *http.Request) {
	var req fieldsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := domain.ValidateValues(req.Fields); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.damages.Aggregate(req.Fields))
}

func (rt *Router) createDraft(w http.ResponseWriter, r *http.Request) {
	var req fieldsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := rt.intake.CreateDraft(r.Context(), req.Fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/drafts/"+view.ID)
	writeJSON(w, http.StatusCreated, view)
}

func (rt *Router) getDraft(w http.ResponseWriter, r *http.Request) {
	view, err := rt.intake.GetDraft(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) discardDraft(w http.ResponseWriter, r *http.Request) {
	if err := rt.intake.Discard(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) updateFields(w http.ResponseWriter, r *http.Request) {
	var req fieldsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Fields) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "fields are required"})
		return
	}
	view, err := rt.intake.UpdateFields(r.Context(), r.PathValue("id"), req.Fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) moveToStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step json.RawMessage `json:"step"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	step, ok := parseStep(req.Step)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "step must be a step name or index"})
		return
	}
	view, err := rt.intake.MoveToStep(r.Context(), r.PathValue("id"), step)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) requestPrediction(w http.ResponseWriter, r *http.Request) {
	view, err := rt.intake.RequestPrediction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) submitClaim(w http.ResponseWriter, r *http.Request) {
	var req fieldsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	record, err := rt.intake.Submit(r.Context(), r.PathValue("id"), req.Fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (rt *Router) getSubmission(w http.ResponseWriter, r *http.Request) {
	record, err := rt.submissions.GetSubmission(r.Context(), r.PathValue("reference"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// decodeBody accepts an empty body as the zero request.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid json: %v", err)})
	return false
}

func parseStep(raw json.RawMessage) (domain.Step, bool) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return domain.ParseStep(name)
	}
	var index int
	if err := json.Unmarshal(raw, &index); err == nil && domain.Step(index).Valid() {
		return domain.Step(index), true
	}
	return 0, false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
