package httpapi

import (
	"net/http"

	"github.com/newgpp/parksuite-core/internal/domain"
)

type intentSlotParseDebugRequest struct {
	Payload    domain.TurnRequest `json:"payload"`
	Remembered domain.Slots       `json:"remembered_slots"`
}

type intentSlotParseDebugResponse struct {
	Parsed   domain.IntentSlotParseResult `json:"parsed"`
	Hydrated domain.SlotHydrateResult     `json:"hydrated"`
}

// handleDebugIntentSlotParse exposes the raw parser + hydrator artifacts
// for one turn, unwrapped from the clarify gate and workflow, so callers
// can inspect exactly what the resolver decided without running a turn
// end to end.
func (s *Server) handleDebugIntentSlotParse(w http.ResponseWriter, r *http.Request) {
	var req intentSlotParseDebugRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	parsed := s.parser.Parse(r.Context(), req.Payload)
	hydrated := s.hydrator.Hydrate(parsed, req.Remembered)
	writeJSON(w, http.StatusOK, intentSlotParseDebugResponse{Parsed: parsed, Hydrated: hydrated})
}

type clarifyReactDebugRequest struct {
	Payload   domain.TurnRequest   `json:"payload"`
	History   []domain.ChatMessage `json:"history,omitempty"`
	MaxRounds int                  `json:"max_rounds,omitempty"`
}

// handleDebugClarifyReact invokes the ReAct clarify agent directly,
// bypassing the gate's deterministic short-circuits, so callers can
// exercise the LLM loop in isolation.
func (s *Server) handleDebugClarifyReact(w http.ResponseWriter, r *http.Request) {
	var req clarifyReactDebugRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if s.react == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "clarify react runner not configured"})
		return
	}

	result, err := s.react.Run(r.Context(), req.Payload, req.History, req.MaxRounds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
