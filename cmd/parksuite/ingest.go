package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/spf13/cobra"

	"github.com/newgpp/parksuite-core/internal/config"
	"github.com/newgpp/parksuite-core/internal/domain"
	"github.com/newgpp/parksuite-core/internal/knowledge"
	"github.com/newgpp/parksuite-core/internal/llm"
	"github.com/newgpp/parksuite-core/internal/observability"
)

var (
	ingestSourceID   string
	ingestDocType    string
	ingestSourceType string
	ingestTitle      string
	ingestCityCode   string
	ingestURI        string
	ingestReplace    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a single document (local path or s3://bucket/key) as a knowledge source",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context())
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSourceID, "source-id", "", "unique source_id for the ingested document (required)")
	ingestCmd.Flags().StringVar(&ingestDocType, "doc-type", "policy_doc", "doc_type to record on the source")
	ingestCmd.Flags().StringVar(&ingestSourceType, "source-type", "manual", "source_type to record on the source")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "human-readable title (defaults to source-id)")
	ingestCmd.Flags().StringVar(&ingestCityCode, "city-code", "", "optional city_code scope")
	ingestCmd.Flags().StringVar(&ingestURI, "uri", "", "document location: a local path or s3://bucket/key (required)")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "replace any existing chunks for this source_id")
	ingestCmd.MarkFlagRequired("source-id")
	ingestCmd.MarkFlagRequired("uri")
}

func runIngest(ctx context.Context) error {
	if ingestSourceID == "" || ingestURI == "" {
		return fmt.Errorf("ingest: --source-id and --uri are required")
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := observability.NewLogger(os.Stderr, cfg.LogLevel)

	text, err := resolveSourceText(ctx, ingestURI)
	if err != nil {
		return fmt.Errorf("ingest: resolve source_uri: %w", err)
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	title := ingestTitle
	if title == "" {
		title = ingestSourceID
	}
	var cityCode *string
	if ingestCityCode != "" {
		cityCode = &ingestCityCode
	}
	srcURI := ingestURI

	src, err := repo.UpsertSource(ctx, domain.KnowledgeSource{
		SourceID:   ingestSourceID,
		DocType:    ingestDocType,
		SourceType: ingestSourceType,
		Title:      title,
		CityCode:   cityCode,
		SourceURI:  &srcURI,
		IsActive:   true,
	})
	if err != nil {
		return fmt.Errorf("ingest: upsert source: %w", err)
	}

	var embed knowledge.Embedder
	if cfg.DeepseekAPIKey != "" {
		embedder, err := llm.NewEmbedder(cfg.DeepseekAPIKey, cfg.DeepseekBaseURL, cfg.DeepseekModel)
		if err != nil {
			return fmt.Errorf("ingest: build embedder: %w", err)
		}
		embed = embedder.Embed
	} else {
		log.Warn().Msg("DEEPSEEK_API_KEY not set, ingesting without embeddings (lexical retrieval only)")
	}

	ingestor := knowledge.NewIngestor(repo, embed, 400, 80)
	n, err := ingestor.IngestText(ctx, src.SourceID, text, nil, ingestReplace)
	if err != nil {
		return fmt.Errorf("ingest: ingest text: %w", err)
	}

	log.Info().Str("source_id", src.SourceID).Int("chunks", n).Msg("ingested knowledge source")
	return nil
}

// resolveSourceText reads uri's contents. uri is either a local filesystem
// path or an s3://bucket/key reference downloaded via aws-sdk-go.
func resolveSourceText(ctx context.Context, uri string) (string, error) {
	if strings.HasPrefix(uri, "s3://") {
		return downloadS3Text(uri)
	}
	data, err := os.ReadFile(uri)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func downloadS3Text(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse s3 uri: %w", err)
	}
	bucket := parsed.Host
	key := strings.TrimPrefix(parsed.Path, "/")
	if bucket == "" || key == "" {
		return "", fmt.Errorf("s3 uri %q must be of the form s3://bucket/key", uri)
	}

	sess, err := session.NewSession(aws.NewConfig())
	if err != nil {
		return "", fmt.Errorf("new aws session: %w", err)
	}

	buf := aws.NewWriteAtBuffer(nil)
	downloader := s3manager.NewDownloader(sess)
	if _, err := downloader.Download(buf, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}); err != nil {
		return "", fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	return string(buf.Bytes()), nil
}
