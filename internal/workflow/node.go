// Package workflow implements HybridWorkflow: a small intent-branching
// graph with a single entry (intent_classifier) and single terminal
// (answer_synthesizer) node.
package workflow

import (
	"context"
	"fmt"

	"github.com/newgpp/parksuite-core/internal/domain"
)

// State is the shared mutable record every node reads from and writes to
// as the workflow runs one turn through to completion.
type State struct {
	Payload        domain.TurnRequest
	Intent         *domain.Intent
	BusinessFacts  map[string]interface{}
	RetrievedItems []domain.RetrievedItem
	Answer         domain.AnswerResult
	Error          *string
	Trace          []string
}

// Node is one graph vertex. Dependencies is kept for structural validation
// at registration time (mirroring the teacher's Tool interface) even though
// at runtime the conditional Next the node returns, not a fixed topological
// order, decides what runs after it.
type Node interface {
	Name() string
	Dependencies() []string
	Run(ctx context.Context, state *State) (next string, err error)
}

// topologicalSort validates that nodes form a DAG (no cycles, no dangling
// dependency references) before the workflow accepts registration — the
// same Kahn's-algorithm check the teacher's pipeline runs, generalized from
// its always-linear 15-stage pipeline to this 6-node branching graph.
func topologicalSort(nodes map[string]Node) ([]string, error) {
	adjList := make(map[string][]string, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	for name := range nodes {
		adjList[name] = nil
		inDegree[name] = 0
	}
	for name, node := range nodes {
		for _, dep := range node.Dependencies() {
			if _, ok := nodes[dep]; !ok {
				return nil, fmt.Errorf("workflow: node %s depends on %s, which is not registered", name, dep)
			}
			adjList[dep] = append(adjList[dep], name)
			inDegree[name]++
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	var order []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)
		for _, neighbor := range adjList[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}
	if len(order) != len(nodes) {
		return nil, fmt.Errorf("workflow: circular dependency detected among nodes")
	}
	return order, nil
}
