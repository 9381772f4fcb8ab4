package api

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"

	"github.com/fcostin/logsumexp-approx/approx"
	"github.com/fcostin/logsumexp-approx/bench"
	"github.com/fcostin/logsumexp-approx/codegen"
	"github.com/fcostin/logsumexp-approx/jit"
	"github.com/fcostin/logsumexp-approx/tools"
)

// handleCompile handles POST /api/v1/compile
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req CompileRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	batch := toRanges(req.Ranges)
	session, err := s.sessions.Create(batch)
	if err != nil {
		var werr *codegen.WidthError
		if errors.As(err, &werr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to compile batch: %v", err))
		return
	}

	fn := session.Func
	response := CompileResponse{
		SessionID:  session.ID,
		CreatedAt:  session.CreatedAt,
		NumRanges:  len(session.Batch),
		CodeSize:   fn.CodeSize(),
		RegionSize: fn.RegionSize(),
		Layout:     toLayout(fn.Layout()),
		Dump:       tools.DumpProgram(fn.Code(), fn.Layout(), nil),
	}

	s.broadcaster.Broadcast(BroadcastEvent{
		Type:      EventTypeCompile,
		SessionID: session.ID,
		Data: map[string]any{
			"numRanges": len(session.Batch),
			"codeSize":  fn.CodeSize(),
		},
	})

	writeJSON(w, http.StatusCreated, response)
}

// handleListSessions handles GET /api/v1/session
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.sessions.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": ids,
		"count":    len(ids),
	})
}

// handleSessionRoute handles DELETE /api/v1/session/{id}
func (s *Server) handleSessionRoute(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/session/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "DELETE required")
		return
	}

	if err := s.sessions.Destroy(id); err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"destroyed": id})
}

// handleRun handles POST /api/v1/run: evaluate a compiled batch on freshly
// sampled input and compare against the interpreted oracle
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if !jit.Supported {
		writeError(w, http.StatusNotImplemented, "emitted code cannot be invoked on this platform")
		return
	}

	var req RunRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, ok := s.sessions.Get(req.SessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	inputLen := 1
	for _, rg := range session.Batch {
		if end := int(rg.Offset) + int(rg.Width); end > inputLen {
			inputLen = end
		}
	}
	rng := rand.New(rand.NewSource(req.Seed))
	input := bench.SampleLogProbs(rng, inputLen)

	oracle := 0.0
	for _, rg := range session.Batch {
		oracle += approx.FasterLogSumExp(input[rg.Offset : rg.Offset+rg.Width])
	}
	got := session.Func.Call(input)

	writeJSON(w, http.StatusOK, RunResponse{
		SessionID: session.ID,
		InputLen:  inputLen,
		JIT:       got,
		Oracle:    oracle,
		AbsDiff:   math.Abs(got - oracle),
	})
}

// handleBench handles POST /api/v1/bench: run one benchmark, streaming
// progress to WebSocket subscribers, and return the summary
func (s *Server) handleBench(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req BenchRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mode, err := bench.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := bench.DefaultParams()
	if req.ArraySize > 0 {
		params.ArraySize = req.ArraySize
	}
	if req.NumRanges > 0 {
		params.NumRanges = req.NumRanges
	}
	if req.MaxWidth > 0 {
		params.MaxWidth = req.MaxWidth
	}
	if req.Trials > 0 {
		params.Trials = req.Trials
	}
	if req.Seed != 0 {
		params.Seed = req.Seed
	}
	params.SortByWidth = req.SortByWidth

	result, err := bench.Run(r.Context(), params, mode, func(p bench.Progress) {
		s.broadcaster.Broadcast(BroadcastEvent{
			Type: EventTypeProgress,
			Data: map[string]any{
				"mode":   string(mode),
				"trial":  p.Trial,
				"trials": p.Trials,
			},
		})
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.broadcaster.Broadcast(BroadcastEvent{
		Type: EventTypeResult,
		Data: map[string]any{
			"mode":    string(mode),
			"acc":     result.Acc,
			"elapsed": result.Elapsed.String(),
		},
	})

	writeJSON(w, http.StatusOK, BenchResponse{
		Result:              result,
		ReductionsPerSecond: result.ReductionsPerSecond(),
	})
}
