// Package domain holds the wire-level and resolver-artifact types shared
// across the orchestration core. Field names and JSON tags mirror the
// business contracts the Python reference service exposed, so acceptance
// fixtures recorded against that service still apply.
package domain

import "time"

// Intent is the coarse user goal the resolver must settle on before the
// workflow can act.
type Intent string

const (
	IntentRuleExplain  Intent = "rule_explain"
	IntentArrearsCheck Intent = "arrears_check"
	IntentFeeVerify    Intent = "fee_verify"
)

// ValidIntent reports whether s names one of the three known intents.
func ValidIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentRuleExplain, IntentArrearsCheck, IntentFeeVerify:
		return Intent(s), true
	default:
		return "", false
	}
}

// SlotSource records where a slot's value came from, so later stages never
// clobber a value the user typed themselves.
type SlotSource string

const (
	SourceUser     SlotSource = "user"
	SourceMemory   SlotSource = "memory"
	SourceInferred SlotSource = "inferred"
)

// Slots is the structured field set the resolver fills in over its stages.
type Slots struct {
	CityCode *string    `json:"city_code,omitempty"`
	LotCode  *string    `json:"lot_code,omitempty"`
	PlateNo  *string    `json:"plate_no,omitempty"`
	OrderNo  *string    `json:"order_no,omitempty"`
	AtTime   *time.Time `json:"at_time,omitempty"`
}

// RetrievalControls bounds and filters a knowledge-chunk retrieval call.
type RetrievalControls struct {
	TopK            int      `json:"top_k"`
	DocType         *string  `json:"doc_type,omitempty"`
	SourceType      *string  `json:"source_type,omitempty"`
	SourceIDs       []string `json:"source_ids,omitempty"`
	IncludeInactive bool     `json:"include_inactive"`
}

// FeeVerifyHints carries the optional overrides a caller may supply for the
// fee-verify branch instead of relying on the stored order.
type FeeVerifyHints struct {
	RuleCode  *string    `json:"rule_code,omitempty"`
	EntryTime *time.Time `json:"entry_time,omitempty"`
	ExitTime  *time.Time `json:"exit_time,omitempty"`
}

// TurnRequest is the immutable per-turn request context.
type TurnRequest struct {
	SessionID      *string            `json:"session_id,omitempty"`
	TurnID         string             `json:"turn_id"`
	Query          string             `json:"query"`
	IntentHint     *string            `json:"intent_hint,omitempty"`
	Slots          Slots              `json:"slots"`
	Retrieval      RetrievalControls  `json:"retrieval"`
	FeeVerifyHints FeeVerifyHints     `json:"fee_verify_hints"`
}

// FieldSources maps a slot name to the source that last set it.
type FieldSources map[string]SlotSource

// Clone returns a shallow copy safe for independent mutation.
func (f FieldSources) Clone() FieldSources {
	out := make(FieldSources, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// IntentSlotParseResult is the output of the IntentSlotParser.
type IntentSlotParseResult struct {
	Payload              TurnRequest  `json:"payload"`
	Intent               *Intent      `json:"intent,omitempty"`
	IntentConfidence     *float64     `json:"intent_confidence,omitempty"`
	FieldSources         FieldSources `json:"field_sources"`
	MissingRequiredSlots []string     `json:"missing_required_slots"`
	Ambiguities          []string     `json:"ambiguities"`
	Trace                []string     `json:"trace"`
}

// SlotHydrateResult is the output of the SlotHydrator.
type SlotHydrateResult struct {
	Payload              TurnRequest  `json:"payload"`
	FieldSources         FieldSources `json:"field_sources"`
	MissingRequiredSlots []string     `json:"missing_required_slots"`
	Trace                []string     `json:"trace"`
}

// GateDecision is the terminal decision the ReactClarifyGate may return.
type GateDecision string

const (
	DecisionContinueBusiness       GateDecision = "continue_business"
	DecisionClarifyShortCircuit    GateDecision = "clarify_short_circuit"
	DecisionClarifyReact           GateDecision = "clarify_react"
	DecisionClarifyAbort           GateDecision = "clarify_abort"
)

// ClarifyDecision is the narrower set of decisions the ReActClarifyAgent
// itself may reach (it never short-circuits; only the gate does).
type ClarifyDecision string

const (
	ClarifyContinueBusiness ClarifyDecision = "continue_business"
	ClarifyReact            ClarifyDecision = "clarify_react"
	ClarifyAbort            ClarifyDecision = "clarify_abort"
)

// ChatMessage is one turn of ReAct conversation history, persisted to and
// replayed from session memory.
type ChatMessage struct {
	Role       string `json:"role"` // user | assistant | tool
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ClarifyResult is the output of one ReActClarifyAgent invocation.
type ClarifyResult struct {
	Decision             ClarifyDecision `json:"decision"`
	ClarifyQuestion       *string        `json:"clarify_question,omitempty"`
	ResolvedSlots          map[string]string `json:"resolved_slots"`
	SlotUpdates            map[string]string `json:"slot_updates"`
	ResolvedIntent         *Intent        `json:"resolved_intent,omitempty"`
	RouteTarget            *Intent        `json:"route_target,omitempty"`
	IntentEvidence         []string       `json:"intent_evidence"`
	MissingRequiredSlots   []string       `json:"missing_required_slots"`
	Trace                  []string       `json:"trace"`
	Messages               []ChatMessage  `json:"messages"`
}

// GateResult is the ReactClarifyGate's final, normalized output.
type GateResult struct {
	Decision        GateDecision  `json:"decision"`
	Payload         TurnRequest   `json:"payload"`
	ClarifyReason   *string       `json:"clarify_reason,omitempty"`
	ClarifyError    *string       `json:"clarify_error,omitempty"`
	ClarifyQuestion *string       `json:"clarify_question,omitempty"`
	Trace           []string      `json:"trace"`
	ClarifyMessages []ChatMessage `json:"clarify_messages,omitempty"`
}

// PendingClarification records why a prior turn stopped at a clarification
// so the next turn in the same session can continue the ReAct loop.
type PendingClarification struct {
	Decision GateDecision `json:"decision"`
	Error    string       `json:"error"`
}

// Turn is one bounded entry of session turn history.
type Turn struct {
	TurnID  string  `json:"turn_id"`
	Query   string  `json:"query"`
	Intent  *Intent `json:"intent,omitempty"`
	OrderNo *string `json:"order_no,omitempty"`
}

// SessionState is the full persisted per-session memory record.
type SessionState struct {
	Slots                 Slots                  `json:"slots"`
	Turns                 []Turn                 `json:"turns"`
	PendingClarification  *PendingClarification  `json:"pending_clarification,omitempty"`
	ClarifyMessages       []ChatMessage          `json:"clarify_messages,omitempty"`
	ResolvedSlots         map[string]string      `json:"resolved_slots,omitempty"`
}

// BillingSegmentType names the three segment charging strategies.
type BillingSegmentType string

const (
	SegmentFree     BillingSegmentType = "free"
	SegmentPeriodic BillingSegmentType = "periodic"
	SegmentTiered   BillingSegmentType = "tiered"
)

// TimeWindow is a segment's daily active window in a named timezone.
type TimeWindow struct {
	Start    string `json:"start"` // "HH:MM"
	End      string `json:"end"`   // "HH:MM"
	Timezone string `json:"timezone"`
}

// BillingTier is one tier's price for tiered segments, addressed by the
// cumulative chargeable-minute index.
type BillingTier struct {
	StartMinute int  `json:"start_minute"`
	EndMinute   *int `json:"end_minute,omitempty"`
	UnitPrice   float64 `json:"unit_price"`
}

// BillingSegment is one ordered entry of a billing rule's payload.
type BillingSegment struct {
	Name        string             `json:"name"`
	Type        BillingSegmentType `json:"type"`
	TimeWindow  *TimeWindow        `json:"time_window,omitempty"`
	Weekdays    []int              `json:"weekdays,omitempty"`
	UnitMinutes int                `json:"unit_minutes,omitempty"`
	UnitPrice   float64            `json:"unit_price,omitempty"`
	FreeMinutes int                `json:"free_minutes,omitempty"`
	MaxCharge   *float64           `json:"max_charge,omitempty"`
	Tiers       []BillingTier      `json:"tiers,omitempty"`
}

// BillingRulePayload is the ordered list of segments for one active rule
// version; earlier segments claim overlapping minutes first.
type BillingRulePayload struct {
	Segments []BillingSegment `json:"segments"`
}

// BillingSegmentBreakdown is one segment's contribution to a simulate_fee
// result.
type BillingSegmentBreakdown struct {
	Name        string  `json:"name"`
	Minutes     int     `json:"minutes"`
	Amount      string  `json:"amount"` // decimal string, 2dp
	FreeMinutes int     `json:"free_minutes"`
	Capped      bool    `json:"capped"`
}

// BillingResult is the output of BillingEngine.SimulateFee.
type BillingResult struct {
	DurationMinutes int                       `json:"duration_minutes"`
	TotalAmount     string                    `json:"total_amount"` // decimal string, 2dp
	Breakdown       []BillingSegmentBreakdown `json:"breakdown"`
}

// KnowledgeSource is a single ingestible document's metadata row.
type KnowledgeSource struct {
	SourceID      string     `json:"source_id"`
	DocType       string     `json:"doc_type"`
	SourceType    string     `json:"source_type"`
	Title         string     `json:"title"`
	CityCode      *string    `json:"city_code,omitempty"`
	LotCodes      []string   `json:"lot_codes,omitempty"`
	EffectiveFrom *time.Time `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	Version       *string    `json:"version,omitempty"`
	SourceURI     *string    `json:"source_uri,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// KnowledgeChunk is one embeddable slice of a source's content.
type KnowledgeChunk struct {
	ID         int64                  `json:"id"`
	SourcePK   int64                  `json:"source_pk"`
	ScenarioID *string                `json:"scenario_id,omitempty"`
	ChunkIndex int                    `json:"chunk_index"`
	ChunkText  string                 `json:"chunk_text"`
	Embedding  []float32              `json:"embedding"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// RetrievedItem is one scored hit returned by KnowledgeRepository.Retrieve.
type RetrievedItem struct {
	ChunkID    int64                  `json:"chunk_id"`
	SourcePK   int64                  `json:"source_pk"`
	SourceID   string                 `json:"source_id"`
	DocType    string                 `json:"doc_type"`
	SourceType string                 `json:"source_type"`
	Title      string                 `json:"title"`
	Content    string                 `json:"content"`
	ScenarioID *string                `json:"scenario_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Score      *float64               `json:"score,omitempty"`
}

// RetrieveFilter is the set of filters a retrieval call may apply.
type RetrieveFilter struct {
	DocType         *string
	SourceType      *string
	CityCode        *string
	LotCode         *string
	SourceIDs       []string
	IncludeInactive bool
	AtTime          *time.Time
	QueryEmbedding  []float32
	QueryText       string
	TopK            int
}

// AnswerResult is the output of the AnswerSynthesizer.
type AnswerResult struct {
	Conclusion string   `json:"conclusion"`
	KeyPoints  []string `json:"key_points"`
	ModelID    string   `json:"model"`
}

// HybridAnswerResponse is the full response envelope for
// POST /api/v1/answer/hybrid.
type HybridAnswerResponse struct {
	SessionID       *string                `json:"session_id,omitempty"`
	TurnID          string                 `json:"turn_id"`
	MemoryTTLSeconds int                   `json:"memory_ttl_seconds"`
	Intent          string                 `json:"intent"`
	Conclusion      string                 `json:"conclusion"`
	KeyPoints       []string               `json:"key_points"`
	BusinessFacts   map[string]interface{} `json:"business_facts"`
	Citations       []RetrievedItem        `json:"citations"`
	RetrievedCount  int                    `json:"retrieved_count"`
	Model           string                 `json:"model"`
	GraphTrace      []string               `json:"graph_trace"`
	ClarifyQuestion *string                `json:"clarify_question,omitempty"`
}
