package retrieval

import "context"

// Snippet is one ranked result from the similarity-search store.
type Snippet struct {
	Content  string
	Metadata map[string]any
}

// Query scopes a search. DocumentID narrows results to chunks of one
// document; ExcludeSources drops memories whose "source" metadata matches
// (used to keep pdf chunks out of general chat retrieval).
type Query struct {
	SessionID      string
	Text           string
	Limit          int
	DocumentID     string
	ExcludeSources []string
}

type Searcher interface {
	Search(ctx context.Context, q Query) ([]Snippet, error)
}

type Indexer interface {
	Add(ctx context.Context, sessionID, content string, metadata map[string]any) error
}

// Store is the full retrieval collaborator the executor and context builder
// receive at startup. It is constructed and owned by the process bootstrap,
// never ambient global state.
type Store interface {
	Searcher
	Indexer
}
