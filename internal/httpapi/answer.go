package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/newgpp/parksuite-core/internal/domain"
	"github.com/newgpp/parksuite-core/internal/observability"
	"github.com/newgpp/parksuite-core/internal/workflow"
)

// handleAnswerHybrid composes the full per-turn orchestration: memory
// recall, intent/slot parsing, slot hydration, clarify-gate decision, and
// (when the gate admits the turn) the hybrid workflow run — then persists
// the resulting session state.
func (s *Server) handleAnswerHybrid(w http.ResponseWriter, r *http.Request) {
	ctx, trace := observability.NewTrace(r.Context(), "answer_hybrid")
	defer trace.End()
	trace.SetTraceID(traceIDFromRequest(r))

	var req domain.TurnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.TurnID == "" {
		req.TurnID = uuid.NewString()
	}

	sessionID := ""
	if req.SessionID != nil {
		sessionID = *req.SessionID
	}

	var remembered domain.SessionState
	if sessionID != "" {
		state, err := s.memStore.Get(ctx, sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		if state != nil {
			remembered = *state
		}
	}

	parsed := s.parser.Parse(ctx, req)
	for _, tag := range parsed.Trace {
		trace.Append(tag)
	}

	hydrated := s.hydrator.Hydrate(parsed, remembered.Slots)
	for _, tag := range hydrated.Trace {
		trace.Append(tag)
	}

	history := remembered.ClarifyMessages
	gateResult := s.gate.Decide(ctx, parsed, hydrated, history)
	for _, tag := range gateResult.Trace {
		trace.Append(tag)
	}

	resp := domain.HybridAnswerResponse{
		SessionID:        req.SessionID,
		TurnID:           req.TurnID,
		MemoryTTLSeconds: s.cfg.MemoryTTLSeconds,
	}

	if gateResult.Decision != domain.DecisionContinueBusiness {
		s.persistClarifyTurn(ctx, sessionID, remembered, hydrated.Payload.Slots, gateResult)
		resp.Intent = string(gateResult.Decision)
		resp.GraphTrace = trace.Tags()
		if gateResult.ClarifyReason != nil {
			resp.BusinessFacts = map[string]interface{}{"clarify_reason": *gateResult.ClarifyReason}
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	intent := parsed.Intent
	if hint := gateResult.Payload.IntentHint; hint != nil {
		if parsedIntent, ok := domain.ValidIntent(*hint); ok {
			intent = &parsedIntent
		}
	}

	runState, err := s.workflow.Run(ctx, gateResult.Payload, intent)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, tag := range runState.Trace {
		trace.Append(tag)
	}

	s.persistBusinessTurn(ctx, sessionID, remembered, req, runState)

	resp.Intent = string(*intent)
	resp.Conclusion = runState.Answer.Conclusion
	resp.KeyPoints = runState.Answer.KeyPoints
	resp.BusinessFacts = runState.BusinessFacts
	resp.Citations = runState.RetrievedItems
	resp.RetrievedCount = len(runState.RetrievedItems)
	resp.Model = runState.Answer.ModelID
	resp.GraphTrace = trace.Tags()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) persistClarifyTurn(ctx context.Context, sessionID string, remembered domain.SessionState, slots domain.Slots, gate domain.GateResult) {
	if sessionID == "" {
		return
	}
	remembered.Slots = slots
	remembered.ClarifyMessages = gate.ClarifyMessages
	if gate.Decision != domain.DecisionContinueBusiness {
		reason := ""
		if gate.ClarifyError != nil {
			reason = *gate.ClarifyError
		} else if gate.ClarifyReason != nil {
			reason = *gate.ClarifyReason
		}
		remembered.PendingClarification = &domain.PendingClarification{Decision: gate.Decision, Error: reason}
	}
	_ = s.memStore.Put(ctx, sessionID, remembered, s.cfg.MemoryTTL(), s.cfg.MemoryMaxTurns, s.cfg.MemoryMaxClarifyMessages)
}

func (s *Server) persistBusinessTurn(ctx context.Context, sessionID string, remembered domain.SessionState, req domain.TurnRequest, runState *workflow.State) {
	if sessionID == "" {
		return
	}
	remembered.Slots = runState.Payload.Slots
	remembered.PendingClarification = nil
	remembered.ClarifyMessages = nil
	remembered.Turns = append(remembered.Turns, domain.Turn{
		TurnID:  req.TurnID,
		Query:   req.Query,
		Intent:  runState.Intent,
		OrderNo: runState.Payload.Slots.OrderNo,
	})
	_ = s.memStore.Put(ctx, sessionID, remembered, s.cfg.MemoryTTL(), s.cfg.MemoryMaxTurns, s.cfg.MemoryMaxClarifyMessages)
}
