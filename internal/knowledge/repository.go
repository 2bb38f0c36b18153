package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/newgpp/parksuite-core/internal/domain"
)

// PGRepository is the Postgres+pgvector-backed Repository implementation.
type PGRepository struct {
	pool *pgxpool.Pool
	dim  int
}

// NewPGRepository opens a connection pool against databaseURL. dim is the
// configured embedding dimension (default 1536 per spec).
func NewPGRepository(ctx context.Context, databaseURL string, dim int) (*PGRepository, error) {
	pool, err := pgxpool.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("knowledge: connect: %w", err)
	}
	return &PGRepository{pool: pool, dim: dim}, nil
}

// Close releases the underlying connection pool.
func (r *PGRepository) Close() {
	r.pool.Close()
}

// UpsertSource inserts a KnowledgeSource or, on a source_id conflict,
// replaces every updatable field and refreshes updated_at.
func (r *PGRepository) UpsertSource(ctx context.Context, src domain.KnowledgeSource) (domain.KnowledgeSource, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO knowledge_sources
			(source_id, doc_type, source_type, title, city_code, lot_codes,
			 effective_from, effective_to, version, source_uri, is_active,
			 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
		ON CONFLICT (source_id) DO UPDATE SET
			doc_type = EXCLUDED.doc_type,
			source_type = EXCLUDED.source_type,
			title = EXCLUDED.title,
			city_code = EXCLUDED.city_code,
			lot_codes = EXCLUDED.lot_codes,
			effective_from = EXCLUDED.effective_from,
			effective_to = EXCLUDED.effective_to,
			version = EXCLUDED.version,
			source_uri = EXCLUDED.source_uri,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING id, source_id, doc_type, source_type, title, city_code,
			lot_codes, effective_from, effective_to, version, source_uri,
			is_active, created_at, updated_at`,
		src.SourceID, src.DocType, src.SourceType, src.Title, src.CityCode,
		src.LotCodes, src.EffectiveFrom, src.EffectiveTo, src.Version,
		src.SourceURI, src.IsActive, now,
	)

	var out domain.KnowledgeSource
	var pk int64
	if err := row.Scan(&pk, &out.SourceID, &out.DocType, &out.SourceType,
		&out.Title, &out.CityCode, &out.LotCodes, &out.EffectiveFrom,
		&out.EffectiveTo, &out.Version, &out.SourceURI, &out.IsActive,
		&out.CreatedAt, &out.UpdatedAt); err != nil {
		return domain.KnowledgeSource{}, fmt.Errorf("knowledge: upsert source: %w", err)
	}
	return out, nil
}

// IngestChunks requires the source to already exist, validates every
// chunk's embedding length against the configured dimension, optionally
// replaces the source's prior chunks, and inserts the new ones.
func (r *PGRepository) IngestChunks(ctx context.Context, sourceID string, chunks []domain.KnowledgeChunk, replaceExisting bool) (int, error) {
	var sourcePK int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM knowledge_sources WHERE source_id = $1`, sourceID).Scan(&sourcePK)
	if err == pgx.ErrNoRows {
		return 0, &ErrSourceNotFound{SourceID: sourceID}
	}
	if err != nil {
		return 0, fmt.Errorf("knowledge: lookup source %s: %w", sourceID, err)
	}

	for _, c := range chunks {
		if len(c.Embedding) != r.dim {
			return 0, &ErrEmbeddingDimMismatch{Expected: r.dim, Actual: len(c.Embedding)}
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("knowledge: begin ingest tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if replaceExisting {
		if _, err := tx.Exec(ctx, `DELETE FROM knowledge_chunks WHERE source_pk = $1`, sourcePK); err != nil {
			return 0, fmt.Errorf("knowledge: delete prior chunks: %w", err)
		}
	}

	now := time.Now().UTC()
	for _, c := range chunks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO knowledge_chunks
				(source_pk, scenario_id, chunk_index, chunk_text, embedding, metadata, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			sourcePK, c.ScenarioID, c.ChunkIndex, c.ChunkText,
			pgvector.NewVector(c.Embedding), c.Metadata, now,
		); err != nil {
			return 0, fmt.Errorf("knowledge: insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("knowledge: commit ingest tx: %w", err)
	}
	return len(chunks), nil
}

// candidateRow is the common row shape fetched for both the vector and
// lexical retrieval branches.
type candidateRow struct {
	item       domain.RetrievedItem
	chunkIndex int
	embedding  []float32
}

func (r *PGRepository) buildFilterSQL(filter domain.RetrieveFilter, args *[]interface{}) string {
	var clauses []string
	if !filter.IncludeInactive {
		clauses = append(clauses, "s.is_active = true")
	}
	if filter.DocType != nil {
		*args = append(*args, *filter.DocType)
		clauses = append(clauses, fmt.Sprintf("s.doc_type = $%d", len(*args)))
	}
	if filter.SourceType != nil {
		*args = append(*args, *filter.SourceType)
		clauses = append(clauses, fmt.Sprintf("s.source_type = $%d", len(*args)))
	}
	if filter.CityCode != nil {
		*args = append(*args, *filter.CityCode)
		clauses = append(clauses, fmt.Sprintf("s.city_code = $%d", len(*args)))
	}
	if filter.LotCode != nil {
		*args = append(*args, *filter.LotCode)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(s.lot_codes)", len(*args)))
	}
	if len(filter.SourceIDs) > 0 {
		*args = append(*args, filter.SourceIDs)
		clauses = append(clauses, fmt.Sprintf("s.source_id = ANY($%d)", len(*args)))
	}
	if filter.AtTime != nil {
		*args = append(*args, *filter.AtTime)
		idx := len(*args)
		clauses = append(clauses, fmt.Sprintf("(s.effective_from IS NULL OR s.effective_from <= $%d)", idx))
		clauses = append(clauses, fmt.Sprintf("(s.effective_to IS NULL OR s.effective_to > $%d)", idx))
	}
	if len(clauses) == 0 {
		return "TRUE"
	}
	return strings.Join(clauses, " AND ")
}

// Retrieve implements both the vector-ranked branch (when QueryEmbedding is
// set) and the lexical-fallback branch, with the exact tie-break and
// candidate-window rules spec §4.7 describes.
func (r *PGRepository) Retrieve(ctx context.Context, filter domain.RetrieveFilter) ([]domain.RetrievedItem, error) {
	topK := filter.TopK
	if topK <= 0 {
		topK = 10
	}

	if len(filter.QueryEmbedding) > 0 {
		return r.retrieveVector(ctx, filter, topK)
	}
	return r.retrieveLexical(ctx, filter, topK)
}

func (r *PGRepository) retrieveVector(ctx context.Context, filter domain.RetrieveFilter, topK int) ([]domain.RetrievedItem, error) {
	args := []interface{}{}
	filterSQL := r.buildFilterSQL(filter, &args)
	args = append(args, pgvector.NewVector(filter.QueryEmbedding))
	vecIdx := len(args)
	args = append(args, topK)
	limitIdx := len(args)

	query := fmt.Sprintf(`
		SELECT c.id, c.source_pk, s.source_id, s.doc_type, s.source_type,
			s.title, c.chunk_text, c.scenario_id, c.metadata, c.chunk_index,
			(c.embedding <=> $%d) AS distance
		FROM knowledge_chunks c
		JOIN knowledge_sources s ON s.id = c.source_pk
		WHERE %s
		ORDER BY distance ASC, s.source_id ASC, c.chunk_index ASC, c.id ASC
		LIMIT $%d`, vecIdx, filterSQL, limitIdx)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge: vector retrieve: %w", err)
	}
	defer rows.Close()

	var out []domain.RetrievedItem
	for rows.Next() {
		var item domain.RetrievedItem
		var chunkIndex int
		var distance float64
		if err := rows.Scan(&item.ChunkID, &item.SourcePK, &item.SourceID,
			&item.DocType, &item.SourceType, &item.Title, &item.Content,
			&item.ScenarioID, &item.Metadata, &chunkIndex, &distance); err != nil {
			return nil, fmt.Errorf("knowledge: scan vector row: %w", err)
		}
		item.Score = &distance
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *PGRepository) retrieveLexical(ctx context.Context, filter domain.RetrieveFilter, topK int) ([]domain.RetrievedItem, error) {
	candidateLimit := 10 * topK
	if candidateLimit < 100 {
		candidateLimit = 100
	}

	args := []interface{}{}
	filterSQL := r.buildFilterSQL(filter, &args)
	args = append(args, candidateLimit)
	limitIdx := len(args)

	query := fmt.Sprintf(`
		SELECT c.id, c.source_pk, s.source_id, s.doc_type, s.source_type,
			s.title, c.chunk_text, c.scenario_id, c.metadata, c.chunk_index
		FROM knowledge_chunks c
		JOIN knowledge_sources s ON s.id = c.source_pk
		WHERE %s
		ORDER BY s.source_id ASC, c.chunk_index ASC, c.id ASC
		LIMIT $%d`, filterSQL, limitIdx)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge: lexical candidates: %w", err)
	}
	defer rows.Close()

	var candidates []candidateRow
	for rows.Next() {
		var c candidateRow
		if err := rows.Scan(&c.item.ChunkID, &c.item.SourcePK, &c.item.SourceID,
			&c.item.DocType, &c.item.SourceType, &c.item.Title, &c.item.Content,
			&c.item.ScenarioID, &c.item.Metadata, &c.chunkIndex); err != nil {
			return nil, fmt.Errorf("knowledge: scan lexical row: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rankLexical(candidates, filter.QueryText, topK), nil
}
