// Package retrieval implements the similarity-search collaborator on top of
// OpenAI embeddings and a pgvector-backed table. The rest of the system only
// sees the retrieval ports; this store is constructed once at bootstrap and
// injected where needed.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/ports/retrieval"
	"genstudio-backend/internal/infra/metrics"
)

const embeddingDimensions = 1536

var _ retrieval.Store = (*OpenAIStore)(nil)

type OpenAIStore struct {
	client openai.Client
	pool   *pgxpool.Pool
	log    *zerolog.Logger
}

func NewOpenAIStore(apiKey string, pool *pgxpool.Pool, log *zerolog.Logger) (*OpenAIStore, error) {
	if apiKey == "" {
		return nil, &domain.ConfigurationError{Reason: "openai embedding key not set"}
	}
	return &OpenAIStore{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		pool:   pool,
		log:    log,
	}, nil
}

func (s *OpenAIStore) Add(ctx context.Context, sessionID, content string, metadata map[string]any) error {
	if content == "" {
		return nil
	}
	embedding, err := s.embed(ctx, content)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	const q = `
INSERT INTO chat_memories (id, session_id, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4::vector, $5, $6);`
	_, err = s.pool.Exec(ctx, q, uuid.NewString(), sessionID, content, vectorLiteral(embedding), meta, time.Now())
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (s *OpenAIStore) Search(ctx context.Context, q retrieval.Query) ([]retrieval.Snippet, error) {
	start := time.Now()
	snippets, err := s.search(ctx, q)
	metrics.ObserveMemorySearch(time.Since(start), err == nil)
	return snippets, err
}

func (s *OpenAIStore) search(ctx context.Context, q retrieval.Query) ([]retrieval.Snippet, error) {
	if q.Limit <= 0 {
		q.Limit = 5
	}
	embedding, err := s.embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`SELECT content, metadata FROM chat_memories WHERE session_id = $1`)
	args := []any{q.SessionID}
	if q.DocumentID != "" {
		args = append(args, q.DocumentID)
		fmt.Fprintf(&sb, ` AND metadata->>'document_id' = $%d`, len(args))
	}
	if len(q.ExcludeSources) > 0 {
		args = append(args, q.ExcludeSources)
		fmt.Fprintf(&sb, ` AND NOT (COALESCE(metadata->>'source', '') = ANY($%d))`, len(args))
	}
	args = append(args, vectorLiteral(embedding))
	fmt.Fprintf(&sb, ` ORDER BY embedding <=> $%d::vector`, len(args))
	args = append(args, q.Limit)
	fmt.Fprintf(&sb, ` LIMIT $%d;`, len(args))

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	var out []retrieval.Snippet
	for rows.Next() {
		var content string
		var meta []byte
		if err := rows.Scan(&content, &meta); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		snippet := retrieval.Snippet{Content: content}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &snippet.Metadata); err != nil {
				s.log.Warn().Err(err).Msg("bad memory metadata, skipping fields")
			}
		}
		out = append(out, snippet)
	}
	return out, rows.Err()
}

func (s *OpenAIStore) embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := s.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModelTextEmbedding3Small,
	})
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) != embeddingDimensions {
		return nil, fmt.Errorf("embed text: unexpected response shape")
	}
	return resp.Data[0].Embedding, nil
}

// vectorLiteral renders the pgvector input format: "[f1,f2,...]".
func vectorLiteral(v []float64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	}
	sb.WriteByte(']')
	return sb.String()
}
