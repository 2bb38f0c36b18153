package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"

	"github.com/newgpp/parksuite-core/internal/biz"
	"github.com/newgpp/parksuite-core/internal/cache"
	"github.com/newgpp/parksuite-core/internal/clarify"
	"github.com/newgpp/parksuite-core/internal/config"
	"github.com/newgpp/parksuite-core/internal/httpapi"
	"github.com/newgpp/parksuite-core/internal/knowledge"
	"github.com/newgpp/parksuite-core/internal/llm"
	"github.com/newgpp/parksuite-core/internal/memory"
	"github.com/newgpp/parksuite-core/internal/observability"
	"github.com/newgpp/parksuite-core/internal/resolver"
	"github.com/newgpp/parksuite-core/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP answer-orchestration server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := observability.NewLogger(os.Stderr, cfg.LogLevel)

	var memStore memory.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		memStore = memory.NewRedisStore(rdb)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis session memory store")
	} else {
		memStore = memory.NewInProcessStore()
		log.Warn().Msg("RAG_REDIS_ADDR not set, using process-local session memory store")
	}

	var sharedCache cache.Cache
	if cfg.RedisAddr != "" {
		sharedCache = cache.NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), "parksuite-cache")
	} else {
		ristrettoCache, err := cache.NewRistrettoCache()
		if err != nil {
			return fmt.Errorf("build shared cache: %w", err)
		}
		sharedCache = ristrettoCache
	}

	var repo knowledge.Repository
	if cfg.DatabaseURL != "" {
		pgRepo, err := knowledge.NewPGRepository(ctx, cfg.DatabaseURL, cfg.EmbeddingDim)
		if err != nil {
			return fmt.Errorf("connect knowledge repository: %w", err)
		}
		defer pgRepo.Close()
		repo = pgRepo
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory knowledge repository")
		repo = knowledge.NewFakeRepository()
	}
	repo = knowledge.NewCachedRepository(repo, sharedCache)

	bizClient := biz.NewClient(cfg.BizAPIBaseURL, cfg.BizAPITimeout())
	cachedBizClient := biz.NewCachedClient(bizClient, sharedCache)
	facts := biz.NewFactTools(cachedBizClient)

	var embed workflow.Embedder
	if cfg.DeepseekAPIKey != "" {
		embedder, err := llm.NewEmbedder(cfg.DeepseekAPIKey, cfg.DeepseekBaseURL, cfg.DeepseekModel)
		if err != nil {
			return fmt.Errorf("build embedder: %w", err)
		}
		embed = embedder.Embed
	} else {
		log.Warn().Msg("DEEPSEEK_API_KEY not set, rag_retrieve will fall back to lexical search")
	}

	slotValidate, err := resolver.NewIntentSlotValidator()
	if err != nil {
		return fmt.Errorf("compile intent/slot schema: %w", err)
	}
	reactValidate, err := clarify.NewReactActionValidator()
	if err != nil {
		return fmt.Errorf("compile react action schema: %w", err)
	}
	answerValidate, err := workflow.NewAnswerValidator()
	if err != nil {
		return fmt.Errorf("compile answer schema: %w", err)
	}

	var chatModel llms.Model
	if cfg.DeepseekAPIKey != "" {
		model, err := llm.NewChatModel(cfg.DeepseekAPIKey, cfg.DeepseekBaseURL, cfg.DeepseekModel)
		if err != nil {
			return fmt.Errorf("build chat model: %w", err)
		}
		chatModel = llm.NewRetryModel(model, log)
	} else {
		log.Warn().Msg("DEEPSEEK_API_KEY not set, resolver/clarify/synthesis LLM passes are all skipped")
	}

	parser := resolver.NewParser(chatModel, slotValidate)
	hydrator := resolver.NewHydrator()
	agent := clarify.NewAgent(chatModel, cachedBizClient, reactValidate, log)
	gate := clarify.NewGate(agent, 3)
	synth := workflow.NewSynthesizer(chatModel, cfg.DeepseekModel, answerValidate)

	wf, err := workflow.NewHybridWorkflow(facts, repo, embed, synth)
	if err != nil {
		return fmt.Errorf("build workflow: %w", err)
	}

	metrics := observability.NewMetrics()

	server := httpapi.NewServer(cfg.HTTPAddr, log, metrics, httpapi.Deps{
		Config:   cfg,
		MemStore: memStore,
		Repo:     repo,
		Parser:   parser,
		Hydrator: hydrator,
		Gate:     gate,
		React:    agent,
		Workflow: wf,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	}
}
