package database

import (
	"context"
	"errors"
	"fmt"

	"partimatch/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// ErrStoreUnavailable marks connection-level failures of the document store.
// The retriever degrades to its local fallback corpus when it sees this.
var ErrStoreUnavailable = errors.New("document store unavailable")

// DB represents the database connection
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB creates a new database connection with pgvector types registered.
func NewDB(ctx context.Context, connStr string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return &DB{Pool: pool}, nil
}

// Initialize sets up the documents and embeddings tables and their indices.
// dim is the embedding dimension of the model used at ingestion; every vector
// in the store shares it.
func (db *DB) Initialize(ctx context.Context, dim int) error {
	_, err := db.Pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS documents (
            id TEXT PRIMARY KEY,
            content TEXT NOT NULL,
            party TEXT NOT NULL,
            topic TEXT NOT NULL,
            year TEXT,
            source_url TEXT,
            page INTEGER,
            excerpt TEXT
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	_, err = db.Pool.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS embeddings (
            id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
            embedding vector(%d) NOT NULL
        )
    `, dim))
	if err != nil {
		return fmt.Errorf("failed to create embeddings table: %w", err)
	}

	// Create vector index
	_, err = db.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS embeddings_embedding_idx ON embeddings
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	// Create indices for the party/topic filter
	_, err = db.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS documents_party_idx ON documents (lower(party));
		CREATE INDEX IF NOT EXISTS documents_topic_idx ON documents (lower(topic));
	`)
	if err != nil {
		return fmt.Errorf("failed to create filter indices: %w", err)
	}

	return nil
}

// UpsertExcerpt stores an excerpt and its embedding. The content-derived id
// makes re-ingestion overwrite rather than duplicate.
func (db *DB) UpsertExcerpt(ctx context.Context, excerpt *models.Excerpt) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        INSERT INTO documents (id, content, party, topic, year, source_url, page, excerpt)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, 0), NULLIF($8, ''))
        ON CONFLICT (id) DO UPDATE SET
            content = EXCLUDED.content, party = EXCLUDED.party, topic = EXCLUDED.topic,
            year = EXCLUDED.year, source_url = EXCLUDED.source_url,
            page = EXCLUDED.page, excerpt = EXCLUDED.excerpt
    `,
		excerpt.ID,
		excerpt.Content,
		excerpt.Party,
		excerpt.Topic,
		excerpt.Year,
		excerpt.SourceURL,
		excerpt.Page,
		excerpt.Preview)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", excerpt.ID, err)
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO embeddings (id, embedding) VALUES ($1, $2)
        ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding
    `, excerpt.ID, pgvector.NewVector(excerpt.Embedding))
	if err != nil {
		return fmt.Errorf("failed to upsert embedding %s: %w", excerpt.ID, err)
	}

	return tx.Commit(ctx)
}

// QueryByPartyTopic returns up to limit excerpts for one (party, topic) pair,
// matched case-insensitively, with their embeddings.
func (db *DB) QueryByPartyTopic(ctx context.Context, party, topic string, limit int) ([]models.Excerpt, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT d.id, d.content, d.party, d.topic, d.year, d.source_url, d.page, d.excerpt, e.embedding
        FROM documents d
        JOIN embeddings e ON e.id = d.id
        WHERE lower(d.party) = lower($1) AND lower(d.topic) = lower($2)
        LIMIT $3
    `, party, topic, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query by party/topic: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var excerpts []models.Excerpt
	for rows.Next() {
		excerpt, err := scanExcerpt(rows)
		if err != nil {
			return nil, err
		}
		excerpts = append(excerpts, excerpt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %v", ErrStoreUnavailable, err)
	}

	return excerpts, nil
}

// QueryHybrid returns candidates for one (party, topic) pair scored both by
// cosine similarity against queryEmbedding and by full-text rank against
// queryText. The norwegian text search configuration gives stemmed matching.
func (db *DB) QueryHybrid(ctx context.Context, queryEmbedding []float32, queryText, party, topic string, limit int) ([]models.Candidate, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT d.id, d.content, d.party, d.topic, d.year, d.source_url, d.page, d.excerpt, e.embedding,
               1 - (e.embedding <=> $1) AS vector_score,
               ts_rank(to_tsvector('norwegian', d.content), plainto_tsquery('norwegian', $2)) AS lexical_score
        FROM documents d
        JOIN embeddings e ON e.id = d.id
        WHERE lower(d.party) = lower($3) AND lower(d.topic) = lower($4)
        ORDER BY e.embedding <=> $1
        LIMIT $5
    `, pgvector.NewVector(queryEmbedding), queryText, party, topic, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: hybrid query: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		var (
			candidate models.Candidate
			year      *string
			sourceURL *string
			page      *int
			preview   *string
			vector    pgvector.Vector
		)
		if err := rows.Scan(
			&candidate.ID,
			&candidate.Content,
			&candidate.Party,
			&candidate.Topic,
			&year,
			&sourceURL,
			&page,
			&preview,
			&vector,
			&candidate.VectorScore,
			&candidate.LexicalScore); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		applyOptional(&candidate.Excerpt, year, sourceURL, page, preview)
		candidate.Embedding = vector.Slice()
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %v", ErrStoreUnavailable, err)
	}

	return candidates, nil
}

// CountByPartyTopic returns the number of stored excerpts per (party, topic).
func (db *DB) CountByPartyTopic(ctx context.Context) (map[string]map[string]int, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT party, topic, COUNT(*) FROM documents GROUP BY party, topic ORDER BY party, topic
    `)
	if err != nil {
		return nil, fmt.Errorf("%w: count query: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	counts := make(map[string]map[string]int)
	for rows.Next() {
		var party, topic string
		var n int
		if err := rows.Scan(&party, &topic, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		if counts[party] == nil {
			counts[party] = make(map[string]int)
		}
		counts[party][topic] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %v", ErrStoreUnavailable, err)
	}

	return counts, nil
}

// ListParties returns the distinct party labels present in the store.
func (db *DB) ListParties(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT party FROM documents WHERE party != '' ORDER BY party
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list parties: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var parties []string
	for rows.Next() {
		var party string
		if err := rows.Scan(&party); err != nil {
			return nil, fmt.Errorf("failed to scan party: %w", err)
		}
		parties = append(parties, party)
	}

	return parties, rows.Err()
}

func scanExcerpt(rows pgx.Rows) (models.Excerpt, error) {
	var (
		excerpt   models.Excerpt
		year      *string
		sourceURL *string
		page      *int
		preview   *string
		vector    pgvector.Vector
	)
	if err := rows.Scan(
		&excerpt.ID,
		&excerpt.Content,
		&excerpt.Party,
		&excerpt.Topic,
		&year,
		&sourceURL,
		&page,
		&preview,
		&vector); err != nil {
		return models.Excerpt{}, fmt.Errorf("failed to scan excerpt: %w", err)
	}
	applyOptional(&excerpt, year, sourceURL, page, preview)
	excerpt.Embedding = vector.Slice()
	return excerpt, nil
}

func applyOptional(excerpt *models.Excerpt, year, sourceURL *string, page *int, preview *string) {
	if year != nil {
		excerpt.Year = *year
	}
	if sourceURL != nil {
		excerpt.SourceURL = *sourceURL
	}
	if page != nil {
		excerpt.Page = *page
	}
	if preview != nil {
		excerpt.Preview = *preview
	}
}

// Close closes the database connection
func (db *DB) Close() {
	db.Pool.Close()
}
