package main

import (
	"context"
	"fmt"

	"github.com/newgpp/parksuite-core/internal/config"
	"github.com/newgpp/parksuite-core/internal/knowledge"
)

// openRepository opens the Postgres knowledge repository when DATABASE_URL
// is configured, falling back to the in-memory fake for local/dev use. The
// returned close func is always safe to defer, even for the fake.
func openRepository(ctx context.Context, cfg *config.Settings) (knowledge.Repository, func(), error) {
	if cfg.DatabaseURL == "" {
		return knowledge.NewFakeRepository(), func() {}, nil
	}
	pgRepo, err := knowledge.NewPGRepository(ctx, cfg.DatabaseURL, cfg.EmbeddingDim)
	if err != nil {
		return nil, nil, fmt.Errorf("connect knowledge repository: %w", err)
	}
	return pgRepo, pgRepo.Close, nil
}
