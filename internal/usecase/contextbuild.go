package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"genstudio-backend/internal/domain/model"
	"genstudio-backend/internal/domain/ports/retrieval"
)

const (
	// SnippetLimit caps how many ranked snippets a grounded answer may use.
	SnippetLimit = 6
	// RecentTurnLimit caps the role-labeled history prepended to the system prompt.
	RecentTurnLimit = 6
	// snippetMaxChars truncates long snippets with an explicit length marker.
	snippetMaxChars = 400

	defaultSystemPrompt = "You are a helpful AI assistant."

	groundingRules = "## Document Grounding Rules\n" +
		"- You must answer using ONLY the provided document context.\n" +
		"- If the answer is not present, say you cannot find it in the document.\n" +
		"- Answer in the language the user writes in.\n"

	noContextFound = "관련 내용을 찾지 못했습니다."
)

// ContextKind is the outcome variant of context resolution. Short-circuit
// variants map to a terminal success with a canned reply, never a failure.
type ContextKind int

const (
	ContextGeneral ContextKind = iota
	ContextGrounded
	ContextDocProcessing
	ContextDocNotFound
)

// ChatContext is what the executor sends to the chat vendor, or the reason
// it should short-circuit instead.
type ChatContext struct {
	Kind         ContextKind
	Prompt       string
	SystemPrompt string
	Citations    []model.Citation
	DocumentName string
}

// ContextBuilder assembles retrieval-augmented system prompts. The retrieval
// store is injected at construction; it is never reached through globals.
type ContextBuilder struct {
	searcher    retrieval.Searcher
	tokenBudget int
	enc         *tiktoken.Tiktoken
	log         *zerolog.Logger
}

func NewContextBuilder(searcher retrieval.Searcher, tokenBudget int, log *zerolog.Logger) (*ContextBuilder, error) {
	if tokenBudget <= 0 {
		tokenBudget = 2048
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load token encoding: %w", err)
	}
	return &ContextBuilder{searcher: searcher, tokenBudget: tokenBudget, enc: enc, log: log}, nil
}

// Build resolves a chat prompt into one of the context variants. Documents
// must be the session's documents, newest first; recent must be the last
// turns, oldest first.
func (b *ContextBuilder) Build(ctx context.Context, sessionID, prompt, baseSystemPrompt string, recent []model.Message, documents []model.Document) (ChatContext, error) {
	base := strings.TrimSpace(baseSystemPrompt)
	if base == "" {
		base = defaultSystemPrompt
	}
	recentBlock := formatRecent(recent)

	match, found := FindDocumentMention(prompt, documents)
	if !found {
		if name, attempted := FallbackDocumentName(prompt); attempted {
			return ChatContext{Kind: ContextDocNotFound, DocumentName: name}, nil
		}
		return b.buildGeneral(ctx, sessionID, prompt, base, recentBlock)
	}

	doc := match.Document
	if doc.Status != model.DocumentStatusCompleted {
		return ChatContext{Kind: ContextDocProcessing, DocumentName: doc.DisplayName()}, nil
	}

	stripped := StripMarker(prompt, match.Marker)
	if stripped == "" {
		stripped = prompt
	}
	return b.buildGrounded(ctx, sessionID, stripped, base, recentBlock, doc)
}

func (b *ContextBuilder) buildGrounded(ctx context.Context, sessionID, prompt, base, recentBlock string, doc model.Document) (ChatContext, error) {
	snippets, err := b.searcher.Search(ctx, retrieval.Query{
		SessionID:  sessionID,
		Text:       prompt,
		Limit:      SnippetLimit,
		DocumentID: doc.ID,
	})
	if err != nil {
		return ChatContext{}, fmt.Errorf("document retrieval: %w", err)
	}

	var lines []string
	var citations []model.Citation
	for i, s := range snippets {
		text := truncateSnippet(s.Content)
		page := metaInt(s.Metadata, "page")
		pageLabel := "?"
		if page > 0 {
			pageLabel = fmt.Sprintf("%d", page)
		}
		lines = append(lines, fmt.Sprintf("[%d] (p.%s) %s", i+1, pageLabel, text))
		citations = append(citations, model.Citation{
			DocumentID:   doc.ID,
			DocumentName: doc.DisplayName(),
			Page:         page,
			BBox:         metaFloats(s.Metadata, "bbox"),
			BBoxNorm:     metaFloats(s.Metadata, "bbox_norm"),
			PageWidth:    metaFloat(s.Metadata, "page_width"),
			PageHeight:   metaFloat(s.Metadata, "page_height"),
			Snippet:      text,
		})
	}
	lines, citations = b.clampToBudget(lines, citations)

	docContext := noContextFound
	if len(lines) > 0 {
		docContext = strings.Join(lines, "\n")
	}

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\n")
	if recentBlock != "" {
		sb.WriteString("## Recent conversation\n")
		sb.WriteString(recentBlock)
		sb.WriteString("\n\n")
	}
	sb.WriteString("## Document Context: ")
	sb.WriteString(doc.DisplayName())
	sb.WriteString("\n")
	sb.WriteString(docContext)
	sb.WriteString("\n\n")
	sb.WriteString(groundingRules)

	return ChatContext{
		Kind:         ContextGrounded,
		Prompt:       prompt,
		SystemPrompt: sb.String(),
		Citations:    citations,
		DocumentName: doc.DisplayName(),
	}, nil
}

func (b *ContextBuilder) buildGeneral(ctx context.Context, sessionID, prompt, base, recentBlock string) (ChatContext, error) {
	snippets, err := b.searcher.Search(ctx, retrieval.Query{
		SessionID:      sessionID,
		Text:           prompt,
		Limit:          SnippetLimit,
		ExcludeSources: []string{"pdf"},
	})
	if err != nil {
		// General retrieval is best-effort; a cold store must not fail the job.
		b.log.Warn().Err(err).Str("session_id", sessionID).Msg("memory search failed, answering without context")
		snippets = nil
	}

	var sb strings.Builder
	sb.WriteString(base)
	if recentBlock != "" {
		sb.WriteString("\n\n## Recent conversation\n")
		sb.WriteString(recentBlock)
	}
	if len(snippets) > 0 {
		var lines []string
		for _, s := range snippets {
			source := metaString(s.Metadata, "source")
			if source == "" {
				source = "chat"
			}
			lines = append(lines, fmt.Sprintf("[%s]: %s", strings.ToUpper(source), truncateSnippet(s.Content)))
		}
		lines, _ = b.clampToBudget(lines, nil)
		sb.WriteString("\n\n## Relevant memory\n")
		sb.WriteString(strings.Join(lines, "\n"))
	}

	return ChatContext{Kind: ContextGeneral, Prompt: prompt, SystemPrompt: sb.String()}, nil
}

// MemoryContext returns a plain context string for non-chat prompts (image
// generation), or "" when nothing relevant is stored.
func (b *ContextBuilder) MemoryContext(ctx context.Context, sessionID, prompt string) string {
	snippets, err := b.searcher.Search(ctx, retrieval.Query{
		SessionID: sessionID,
		Text:      prompt,
		Limit:     SnippetLimit,
	})
	if err != nil || len(snippets) == 0 {
		return ""
	}
	var lines []string
	for _, s := range snippets {
		lines = append(lines, truncateSnippet(s.Content))
	}
	lines, _ = b.clampToBudget(lines, nil)
	return strings.Join(lines, "\n")
}

// clampToBudget drops trailing lines (and their citations) once the running
// token count exceeds the configured budget.
func (b *ContextBuilder) clampToBudget(lines []string, citations []model.Citation) ([]string, []model.Citation) {
	total := 0
	for i, line := range lines {
		total += len(b.enc.Encode(line, nil, nil))
		if total > b.tokenBudget {
			if citations != nil && i < len(citations) {
				return lines[:i], citations[:i]
			}
			return lines[:i], citations
		}
	}
	return lines, citations
}

func formatRecent(recent []model.Message) string {
	if len(recent) > RecentTurnLimit {
		recent = recent[len(recent)-RecentTurnLimit:]
	}
	var lines []string
	for _, m := range recent {
		if m.Role == "" || m.Content == "" {
			continue
		}
		role := strings.ToUpper(m.Role[:1]) + m.Role[1:]
		lines = append(lines, role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func truncateSnippet(s string) string {
	text := strings.Join(strings.Fields(s), " ")
	if len(text) <= snippetMaxChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= snippetMaxChars {
		return text
	}
	return string(runes[:snippetMaxChars]) + fmt.Sprintf("... (len=%d)", len(runes))
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func metaInt(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func metaFloat(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func metaFloats(m map[string]any, key string) []float64 {
	if m == nil {
		return nil
	}
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, e := range raw {
		if f, ok := e.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}
