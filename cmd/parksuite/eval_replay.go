package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	replayDatasetPath string
	replayBaseURL     string
	replayTimeout     float64
	replayStopOnFail  bool
	replayMaxCases    int
)

var evalReplayCmd = &cobra.Command{
	Use:   "eval-replay",
	Short: "Replay a recorded memory-acceptance case file against a running server's /answer/hybrid",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEvalReplay()
	},
}

func init() {
	evalReplayCmd.Flags().StringVar(&replayDatasetPath, "dataset-path", "data/memory_acceptance_cases.jsonl", "path to the memory acceptance jsonl fixture")
	evalReplayCmd.Flags().StringVar(&replayBaseURL, "base-url", "http://127.0.0.1:8002", "base URL of a running parksuite server")
	evalReplayCmd.Flags().Float64Var(&replayTimeout, "timeout-seconds", 30, "per-request timeout in seconds")
	evalReplayCmd.Flags().BoolVar(&replayStopOnFail, "stop-on-fail", false, "stop at the first failed turn")
	evalReplayCmd.Flags().IntVar(&replayMaxCases, "max-cases", 0, "limit case count (0 means all)")
}

// replayTurn is one turn of a replay case: the request payload to POST and
// the acceptance expectations to check the response against.
type replayTurn struct {
	TurnID        string                 `json:"turn_id"`
	HybridRequest map[string]interface{} `json:"hybrid_request"`
	Expect        replayExpect           `json:"expect"`
}

type replayExpect struct {
	MustIntent         string                 `json:"must_intent"`
	MustCallTools      []string               `json:"must_call_tools"`
	MustContain        []string               `json:"must_contain"`
	MemoryExpect       map[string]interface{} `json:"memory_expect"`
	MustNotMemoryCarry bool                   `json:"must_not_memory_carry"`
}

type replayCase struct {
	CaseID string       `json:"case_id"`
	Turns  []replayTurn `json:"turns"`
}

func runEvalReplay() error {
	data, err := os.ReadFile(replayDatasetPath)
	if err != nil {
		return fmt.Errorf("eval-replay: dataset not found: %w", err)
	}

	var cases []replayCase
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var c replayCase
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return fmt.Errorf("eval-replay: parse case: %w", err)
		}
		cases = append(cases, c)
	}
	if replayMaxCases > 0 && len(cases) > replayMaxCases {
		cases = cases[:replayMaxCases]
	}
	if len(cases) == 0 {
		return fmt.Errorf("eval-replay: no cases loaded from %s", replayDatasetPath)
	}

	fmt.Printf("[start] base_url=%s dataset=%s cases=%d timeout=%.0fs\n", replayBaseURL, replayDatasetPath, len(cases), replayTimeout)

	client := &http.Client{Timeout: time.Duration(replayTimeout * float64(time.Second))}
	passed, failed := 0, 0
	for _, c := range cases {
		p, f := runReplayCase(client, c)
		passed += p
		failed += f
		if replayStopOnFail && f > 0 {
			break
		}
	}

	fmt.Printf("\n[summary] total_turns=%d passed=%d failed=%d\n", passed+failed, passed, failed)
	if failed > 0 {
		return fmt.Errorf("eval-replay: %d turn(s) failed", failed)
	}
	return nil
}

func runReplayCase(client *http.Client, c replayCase) (passed, failed int) {
	fmt.Printf("\n[case] %s turns=%d\n", c.CaseID, len(c.Turns))
	for i, turn := range c.Turns {
		turnID := turn.TurnID
		if turnID == "" {
			turnID = fmt.Sprintf("turn-%d", i+1)
		}

		body, err := json.Marshal(turn.HybridRequest)
		if err != nil {
			failed++
			fmt.Printf("  [fail] %s marshal error: %v\n", turnID, err)
			if replayStopOnFail {
				return
			}
			continue
		}

		resp, err := client.Post(replayBaseURL+"/api/v1/answer/hybrid", "application/json", bytes.NewReader(body))
		if err != nil {
			failed++
			fmt.Printf("  [fail] %s request error: %v\n", turnID, err)
			if replayStopOnFail {
				return
			}
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			failed++
			fmt.Printf("  [fail] %s status=%d body=%.500s\n", turnID, resp.StatusCode, respBody)
			if replayStopOnFail {
				return
			}
			continue
		}

		var parsed map[string]interface{}
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			failed++
			fmt.Printf("  [fail] %s invalid response json: %v\n", turnID, err)
			if replayStopOnFail {
				return
			}
			continue
		}

		errs := evaluateReplayTurn(turn.Expect, parsed)
		if len(errs) == 0 {
			passed++
			fmt.Printf("  [pass] %s\n", turnID)
			continue
		}
		failed++
		fmt.Printf("  [fail] %s\n", turnID)
		for _, msg := range errs {
			fmt.Printf("    - %s\n", msg)
		}
		if replayStopOnFail {
			return
		}
	}
	return
}

// evaluateReplayTurn checks a decoded /answer/hybrid response against a
// case's expectations, mirroring the memory-acceptance checks an earlier
// eval script ran over the same response shape.
func evaluateReplayTurn(expect replayExpect, response map[string]interface{}) []string {
	var errs []string

	intent, _ := response["intent"].(string)
	trace := stringSlice(response["graph_trace"])
	facts, _ := response["business_facts"].(map[string]interface{})
	if facts == nil {
		facts = map[string]interface{}{}
	}
	attemptedTools := stringSlice(facts["attempted_tools"])

	combined := strings.Builder{}
	combined.WriteString(fmt.Sprintf("%v", response["conclusion"]))
	combined.WriteString(" ")
	for _, kp := range stringSlice(response["key_points"]) {
		combined.WriteString(kp)
		combined.WriteString(" ")
	}
	if factsJSON, err := json.Marshal(facts); err == nil {
		combined.Write(factsJSON)
	}
	combined.WriteString(" ")
	combined.WriteString(strings.Join(trace, " "))
	combinedText := combined.String()

	if expect.MustIntent != "" && intent != expect.MustIntent {
		errs = append(errs, fmt.Sprintf("intent mismatch: expected=%s, got=%s", expect.MustIntent, intent))
	}
	for _, tool := range expect.MustCallTools {
		if !containsString(attemptedTools, tool) {
			errs = append(errs, fmt.Sprintf("missing tool call: %s; attempted=%v", tool, attemptedTools))
		}
	}
	for _, text := range expect.MustContain {
		if !strings.Contains(combinedText, text) {
			errs = append(errs, fmt.Sprintf("missing text: %s", text))
		}
	}

	memoryExpect := expect.MemoryExpect
	if resolvedOrderNo, ok := memoryExpect["resolved_order_no"].(string); ok && resolvedOrderNo != "" {
		got := fmt.Sprintf("%v", facts["order_no"])
		if got != resolvedOrderNo {
			errs = append(errs, fmt.Sprintf("resolved_order_no mismatch: expected=%s, got=%s", resolvedOrderNo, got))
		}
	}
	if carryIntent, ok := memoryExpect["carry_intent_from"]; ok && carryIntent != nil && carryIntent != "" {
		if !containsSubstr(trace, "memory_hydrate:intent_hint") {
			errs = append(errs, "missing memory_hydrate:intent_hint trace")
		}
	}
	for _, slot := range stringSlice(memoryExpect["carry_slots"]) {
		if !containsSubstr(trace, "slot_hydrate:"+slot) {
			errs = append(errs, "missing memory carry trace for slot: "+slot)
		}
	}

	referenceResolution, _ := memoryExpect["reference_resolution"].(string)
	if strings.Contains(referenceResolution, "上一单->") {
		expected := strings.TrimSpace(strings.SplitN(referenceResolution, "->", 2)[1])
		if !containsSubstr(trace, "memory_hydrate:order_no_from_reference") {
			errs = append(errs, "missing memory_hydrate:order_no_from_reference trace")
		}
		if got := fmt.Sprintf("%v", facts["order_no"]); got != expected {
			errs = append(errs, fmt.Sprintf("reference order mismatch: expected=%s, got=%s", expected, got))
		}
	}

	if needsDisambig, _ := memoryExpect["needs_disambiguation_when_multiple"].(bool); needsDisambig {
		if got := fmt.Sprintf("%v", facts["error"]); got != "order_reference_ambiguous" {
			errs = append(errs, "expected error=order_reference_ambiguous, got="+got)
		}
		if !containsSubstr(trace, "memory_hydrate:order_reference_ambiguous") {
			errs = append(errs, "missing memory_hydrate:order_reference_ambiguous trace")
		}
	}

	if expect.MustNotMemoryCarry {
		if !containsSubstr(trace, "slot_hydrate:none") {
			errs = append(errs, "expected slot_hydrate:none for isolation check")
		}
	}

	return errs
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

func containsSubstr(items []string, token string) bool {
	for _, item := range items {
		if strings.Contains(item, token) {
			return true
		}
	}
	return false
}
