package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/itstheanurag/judgexec/internal/executor"
	"github.com/itstheanurag/judgexec/internal/harness"
	"github.com/itstheanurag/judgexec/internal/languages"
	"github.com/itstheanurag/judgexec/internal/limiter"
	"github.com/itstheanurag/judgexec/internal/records"
)

// Runner is satisfied by *executor.Executor.
type Runner interface {
	Execute(ctx context.Context, req executor.Request) *executor.ExecutionResult
	RunTests(ctx context.Context, req executor.Request) *executor.RunOutcome
}

// Recorder accepts finished runs for asynchronous delivery.
type Recorder interface {
	Submit(rec *records.Record) bool
}

type Handler struct {
	runner   Runner
	recorder Recorder
	feed     Feed
	maxBody  int64
	logger   *zerolog.Logger
}

// NewHandler wires the HTTP surface. recorder and feed may be nil.
func NewHandler(runner Runner, recorder Recorder, feed Feed, maxBody int64, logger *zerolog.Logger) *Handler {
	return &Handler{
		runner:   runner,
		recorder: recorder,
		feed:     feed,
		maxBody:  maxBody,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router, rl *limiter.RateLimiter) {
	execute := h.Execute
	if rl != nil {
		execute = rl.Middleware(execute)
	}
	router.HandleFunc("/api/execute", execute).Methods(http.MethodPost)
	router.HandleFunc("/api/languages", h.Languages).Methods(http.MethodGet)
	router.HandleFunc("/api/ws", h.Stream).Methods(http.MethodGet)
}

func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var req ExecutionRequest
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, ExecutionResponse{
				Error:     "request body too large",
				ErrorKind: executor.InputTooLarge,
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, ExecutionResponse{
			Error:     "invalid request body",
			ErrorKind: executor.InvalidRequest,
		})
		return
	}

	execReq, err := req.toExecutor()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, rejectTests(req, executor.InvalidRequest, err.Error()))
		return
	}

	if !req.hasTests() {
		res := h.runner.Execute(r.Context(), execReq)
		h.record(records.FromResult(res, time.Now()), res.Failure)
		writeJSON(w, statusFor(res.Failure), newExecutionResponse(res))
		return
	}

	out := h.runner.RunTests(r.Context(), execReq)
	h.record(records.FromOutcome(out, time.Now()), out.Failure)
	writeJSON(w, statusFor(out.Failure), newTestRunResponse(out))
}

func (h *Handler) Languages(w http.ResponseWriter, _ *http.Request) {
	all := languages.All()
	resp := make([]LanguageResponse, len(all))
	for i, lang := range all {
		tc := lang.Toolchain()
		resp[i] = LanguageResponse{
			Name:        lang.String(),
			DisplayName: lang.DisplayName(),
			Image:       tc.Image,
			Compiled:    tc.Compiled(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// record skips requests rejected before any sandbox work.
func (h *Handler) record(rec *records.Record, f *executor.Failure) {
	if h.recorder == nil || rejected(f) {
		return
	}
	if !h.recorder.Submit(rec) {
		h.logger.Warn().Str("request_id", rec.ID).Msg("run record dropped, queue full")
	}
}

func rejected(f *executor.Failure) bool {
	if f == nil {
		return false
	}
	switch f.Kind {
	case executor.UnsupportedLanguage, executor.InputTooLarge, executor.InvalidRequest:
		return true
	}
	return false
}

func statusFor(f *executor.Failure) int {
	switch {
	case f == nil:
		return http.StatusOK
	case rejected(f):
		return http.StatusBadRequest
	case f.Kind == executor.InternalError:
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// rejectTests builds a well formed test-run body for a request refused
// before it reached the executor.
func rejectTests(req ExecutionRequest, kind executor.ErrorKind, msg string) TestRunResponse {
	resp := TestRunResponse{
		Language:        req.Language,
		TestCaseResults: make([]TestCaseResponse, 0, len(req.TestCases)),
		Total:           len(req.TestCases),
		Error:           msg,
		ErrorKind:       kind,
	}
	for i, tc := range req.TestCases {
		if tc.Hidden {
			continue
		}
		resp.TestCaseResults = append(resp.TestCaseResults, TestCaseResponse{
			Index:     i,
			ID:        tc.ID,
			Input:     harness.Display(tc.Input),
			Expected:  tc.Expected,
			Error:     msg,
			ErrorKind: kind,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
