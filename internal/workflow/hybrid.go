package workflow

import (
	"context"
	"fmt"

	"github.com/newgpp/parksuite-core/internal/biz"
	"github.com/newgpp/parksuite-core/internal/domain"
	"github.com/newgpp/parksuite-core/internal/knowledge"
)

const entryNode = "intent_classifier"
const terminalNode = "answer_synthesizer"

// Embedder turns free-form query text into the embedding space the
// knowledge repository's vector branch expects. A nil Embedder makes
// rag_retrieve fall back to the lexical branch, since
// knowledge.Repository.Retrieve dispatches on whether QueryEmbedding is set.
type Embedder func(ctx context.Context, text string) ([]float32, error)

// HybridWorkflow wires the intent_classifier → {rule_explain_flow,
// fee_verify_flow, arrears_check_flow} → rag_retrieve → answer_synthesizer
// graph.
type HybridWorkflow struct {
	nodes map[string]Node
}

// NewHybridWorkflow builds the workflow against concrete collaborators.
func NewHybridWorkflow(facts *biz.FactTools, repo knowledge.Repository, embed Embedder, synth *Synthesizer) (*HybridWorkflow, error) {
	nodes := map[string]Node{
		entryNode:            &intentClassifierNode{},
		"rule_explain_flow":  &ruleExplainFlowNode{},
		"fee_verify_flow":    &feeVerifyFlowNode{facts: facts},
		"arrears_check_flow": &arrearsCheckFlowNode{facts: facts},
		"rag_retrieve":       &ragRetrieveNode{repo: repo, embed: embed},
		terminalNode:         &answerSynthesizerNode{synth: synth},
	}
	if _, err := topologicalSort(nodes); err != nil {
		return nil, err
	}
	return &HybridWorkflow{nodes: nodes}, nil
}

// Run walks the graph from intent_classifier, following each node's
// conditional Next, until it reaches answer_synthesizer or a node returns
// no further hop.
func (w *HybridWorkflow) Run(ctx context.Context, payload domain.TurnRequest, intent *domain.Intent) (*State, error) {
	state := &State{Payload: payload, Intent: intent}

	current := entryNode
	visited := map[string]bool{}
	for current != "" {
		if visited[current] {
			return nil, fmt.Errorf("workflow: node %s visited twice in one run", current)
		}
		visited[current] = true

		node, ok := w.nodes[current]
		if !ok {
			return nil, fmt.Errorf("workflow: unknown node %s", current)
		}
		next, err := node.Run(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("workflow: node %s: %w", current, err)
		}
		current = next
	}
	return state, nil
}

// intentClassifierNode adopts the resolver's already-settled intent
// verbatim, or emits missing_intent_contract and skips straight to the
// synthesizer.
type intentClassifierNode struct{}

func (n *intentClassifierNode) Name() string           { return entryNode }
func (n *intentClassifierNode) Dependencies() []string { return nil }

func (n *intentClassifierNode) Run(_ context.Context, state *State) (string, error) {
	state.Trace = append(state.Trace, "intent_classifier")
	if state.Intent == nil {
		errMsg := "missing_intent_contract"
		state.Error = &errMsg
		return terminalNode, nil
	}
	switch *state.Intent {
	case domain.IntentRuleExplain:
		return "rule_explain_flow", nil
	case domain.IntentFeeVerify:
		return "fee_verify_flow", nil
	case domain.IntentArrearsCheck:
		return "arrears_check_flow", nil
	default:
		errMsg := "missing_intent_contract"
		state.Error = &errMsg
		return terminalNode, nil
	}
}

// ruleExplainFlowNode is a pass-through recording a note before retrieval.
type ruleExplainFlowNode struct{}

func (n *ruleExplainFlowNode) Name() string           { return "rule_explain_flow" }
func (n *ruleExplainFlowNode) Dependencies() []string { return []string{entryNode} }

func (n *ruleExplainFlowNode) Run(_ context.Context, state *State) (string, error) {
	state.BusinessFacts = map[string]interface{}{
		"intent": string(domain.IntentRuleExplain),
		"note":   "rule_explain relies entirely on retrieved knowledge chunks",
	}
	state.Trace = append(state.Trace, "rule_explain_flow")
	return "rag_retrieve", nil
}

// feeVerifyFlowNode builds fee_verify business facts, then still retrieves
// supporting rule-explanation chunks.
type feeVerifyFlowNode struct {
	facts *biz.FactTools
}

func (n *feeVerifyFlowNode) Name() string           { return "fee_verify_flow" }
func (n *feeVerifyFlowNode) Dependencies() []string { return []string{entryNode} }

func (n *feeVerifyFlowNode) Run(ctx context.Context, state *State) (string, error) {
	orderNo := ""
	if state.Payload.Slots.OrderNo != nil {
		orderNo = *state.Payload.Slots.OrderNo
	}
	state.BusinessFacts = n.facts.BuildFeeVerifyFacts(ctx, orderNo, state.Payload.FeeVerifyHints)
	state.Trace = append(state.Trace, "fee_verify_flow")
	return "rag_retrieve", nil
}

// arrearsCheckFlowNode builds arrears_check business facts and skips
// retrieval by design — arrears answers never cite knowledge chunks.
type arrearsCheckFlowNode struct {
	facts *biz.FactTools
}

func (n *arrearsCheckFlowNode) Name() string           { return "arrears_check_flow" }
func (n *arrearsCheckFlowNode) Dependencies() []string { return []string{entryNode} }

func (n *arrearsCheckFlowNode) Run(ctx context.Context, state *State) (string, error) {
	state.BusinessFacts = n.facts.BuildArrearsFacts(ctx, state.Payload.Slots.PlateNo, state.Payload.Slots.CityCode)
	state.Trace = append(state.Trace, "arrears_check_flow")
	return terminalNode, nil
}

// ragRetrieveNode calls the knowledge repository with the resolver's
// filters, embedding the query when an Embedder is configured.
type ragRetrieveNode struct {
	repo  knowledge.Repository
	embed Embedder
}

func (n *ragRetrieveNode) Name() string           { return "rag_retrieve" }
func (n *ragRetrieveNode) Dependencies() []string { return []string{entryNode} }

func (n *ragRetrieveNode) Run(ctx context.Context, state *State) (string, error) {
	controls := state.Payload.Retrieval
	filter := domain.RetrieveFilter{
		DocType:         controls.DocType,
		SourceType:      controls.SourceType,
		CityCode:        state.Payload.Slots.CityCode,
		LotCode:         state.Payload.Slots.LotCode,
		SourceIDs:       controls.SourceIDs,
		IncludeInactive: controls.IncludeInactive,
		AtTime:          state.Payload.Slots.AtTime,
		QueryText:       state.Payload.Query,
		TopK:            controls.TopK,
	}
	if n.embed != nil {
		vec, err := n.embed(ctx, state.Payload.Query)
		if err != nil {
			return "", fmt.Errorf("embed query: %w", err)
		}
		filter.QueryEmbedding = vec
	}

	items, err := n.repo.Retrieve(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("retrieve: %w", err)
	}
	state.RetrievedItems = items
	state.Trace = append(state.Trace, fmt.Sprintf("rag_retrieve:%d", len(items)))
	return terminalNode, nil
}

// answerSynthesizerNode is the graph's single terminal.
type answerSynthesizerNode struct {
	synth *Synthesizer
}

func (n *answerSynthesizerNode) Name() string           { return terminalNode }
func (n *answerSynthesizerNode) Dependencies() []string { return nil }

func (n *answerSynthesizerNode) Run(ctx context.Context, state *State) (string, error) {
	answer, err := n.synth.Synthesize(ctx, state.Payload.Query, state.RetrievedItems, state.BusinessFacts, state.Intent)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	state.Answer = answer
	state.Trace = append(state.Trace, "answer_synthesizer")
	return "", nil
}
