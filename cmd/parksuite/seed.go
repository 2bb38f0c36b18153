package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newgpp/parksuite-core/internal/config"
	"github.com/newgpp/parksuite-core/internal/domain"
	"github.com/newgpp/parksuite-core/internal/knowledge"
	"github.com/newgpp/parksuite-core/internal/llm"
	"github.com/newgpp/parksuite-core/internal/observability"
)

var (
	seedScenariosPath string
	seedSourceURI     string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed knowledge sources and chunks from a scenario fixture jsonl file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context())
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedScenariosPath, "scenarios-path", "data/biz_scenarios.jsonl", "path to the scenario fixture jsonl")
	seedCmd.Flags().StringVar(&seedSourceURI, "source-uri", "", "source_uri recorded on every seeded source (defaults to the fixture path)")
}

// scenarioRow is one line of the biz scenario fixture: a query, the
// business context it was issued against, the ground-truth business
// outcome, and the doc_type(s) a correct answer should cite.
type scenarioRow struct {
	ScenarioID        string                 `json:"scenario_id"`
	Query             string                 `json:"query"`
	Notes             string                 `json:"notes"`
	IntentTags        []string               `json:"intent_tags"`
	Context           map[string]interface{} `json:"context"`
	GroundTruth       map[string]interface{} `json:"ground_truth"`
	ExpectedCitations struct {
		DocType []string `json:"doc_type"`
	} `json:"expected_citations"`
}

func runSeed(ctx context.Context) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := observability.NewLogger(os.Stderr, cfg.LogLevel)

	data, err := os.ReadFile(seedScenariosPath)
	if err != nil {
		return fmt.Errorf("seed: read scenarios file: %w", err)
	}

	sourceURI := seedSourceURI
	if sourceURI == "" {
		sourceURI = seedScenariosPath
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	var embed knowledge.Embedder
	if cfg.DeepseekAPIKey != "" {
		embedder, err := llm.NewEmbedder(cfg.DeepseekAPIKey, cfg.DeepseekBaseURL, cfg.DeepseekModel)
		if err != nil {
			return fmt.Errorf("seed: build embedder: %w", err)
		}
		embed = embedder.Embed
	} else {
		log.Warn().Msg("DEEPSEEK_API_KEY not set, seeding without embeddings (lexical retrieval only)")
	}
	ingestor := knowledge.NewIngestor(repo, embed, 400, 80)

	seeded, chunkCount := 0, 0
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row scenarioRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return fmt.Errorf("seed: parse scenario row: %w", err)
		}
		if row.ScenarioID == "" {
			continue
		}

		docTypes := row.ExpectedCitations.DocType
		if len(docTypes) == 0 {
			docTypes = []string{"rule_explain"}
		}

		for _, docType := range docTypes {
			text := buildScenarioText(row, docType)
			sourceID := fmt.Sprintf("RAG000-%s-%s", row.ScenarioID, docType)

			var cityCode *string
			var lotCodes []string
			if cc, ok := row.Context["city_code"].(string); ok && cc != "" {
				cityCode = &cc
			}
			if lc, ok := row.Context["lot_code"].(string); ok && lc != "" {
				lotCodes = []string{lc}
			}

			uri := sourceURI
			src, err := repo.UpsertSource(ctx, domain.KnowledgeSource{
				SourceID:   sourceID,
				DocType:    docType,
				SourceType: "biz_derived",
				Title:      fmt.Sprintf("RAG000 %s %s", row.ScenarioID, docType),
				CityCode:   cityCode,
				LotCodes:   lotCodes,
				SourceURI:  &uri,
				IsActive:   true,
			})
			if err != nil {
				return fmt.Errorf("seed: upsert source %s: %w", sourceID, err)
			}

			scenarioID := row.ScenarioID
			n, err := ingestor.IngestText(ctx, src.SourceID, text, &scenarioID, true)
			if err != nil {
				return fmt.Errorf("seed: ingest source %s: %w", sourceID, err)
			}
			seeded++
			chunkCount += n
		}
	}

	log.Info().Int("sources", seeded).Int("chunks", chunkCount).Msg("seeded knowledge sources from scenario fixture")
	return nil
}

// buildScenarioText renders one scenario row's query, context, and
// ground-truth outcome into the flat key:value text the chunker splits,
// the same field set and order a scenario's derived knowledge source is
// built from upstream.
func buildScenarioText(row scenarioRow, docType string) string {
	lines := []string{
		fmt.Sprintf("scenario_id: %s", row.ScenarioID),
		fmt.Sprintf("doc_type: %s", docType),
		fmt.Sprintf("query: %s", row.Query),
		fmt.Sprintf("city_code: %v", row.Context["city_code"]),
		fmt.Sprintf("lot_code: %v", row.Context["lot_code"]),
		fmt.Sprintf("entry_time: %v", row.Context["entry_time"]),
		fmt.Sprintf("exit_time: %v", row.Context["exit_time"]),
		fmt.Sprintf("matched_rule_code: %v", row.GroundTruth["matched_rule_code"]),
		fmt.Sprintf("matched_version_no: %v", row.GroundTruth["matched_version_no"]),
		fmt.Sprintf("expected_total_amount: %v", row.GroundTruth["expected_total_amount"]),
		fmt.Sprintf("order_total_amount: %v", row.GroundTruth["order_total_amount"]),
		fmt.Sprintf("amount_check_result: %v", row.GroundTruth["amount_check_result"]),
		fmt.Sprintf("amount_check_action: %v", row.GroundTruth["amount_check_action"]),
		fmt.Sprintf("expected_arrears_amount: %v", row.GroundTruth["expected_arrears_amount"]),
		fmt.Sprintf("expected_arrears_status: %v", row.GroundTruth["expected_arrears_status"]),
		fmt.Sprintf("notes: %s", row.Notes),
	}
	return strings.Join(lines, "\n")
}
