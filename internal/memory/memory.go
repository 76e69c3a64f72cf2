package memory

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/blevesearch/bleve"
	"golang.org/x/sync/errgroup"

	"github.com/marketintel/mia/internal/store"
)

const (
	rrfK = 60 // reciprocal-rank-fusion constant

	embedBatchSize   = 16
	embedConcurrency = 4
)

// Embedder converts text into semantic vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore is the durable side of the memory layer.
type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []store.DocumentChunk) error
	SearchChunks(ctx context.Context, conversationID string, vector []float32, topK int) ([]store.ChunkSearchResult, error)
	ListChunks(ctx context.Context, conversationID string) ([]store.DocumentChunk, error)
}

// Hit is one retrieved chunk with its fused relevance score.
type Hit struct {
	ID      string
	Content string
	Score   float64
	Rank    int
}

// Engine stores report chunks in Postgres for vector recall and mirrors them
// into an in-memory bleve index for keyword recall. Queries fuse both tiers
// with reciprocal-rank fusion.
type Engine struct {
	store    ChunkStore
	embedder Embedder

	chunkSize    int
	chunkOverlap int
	topK         int

	mu     sync.RWMutex
	index  bleve.Index
	meta   map[string]store.DocumentChunk
	warmed map[string]bool

	logger *log.Logger
}

func NewEngine(cs ChunkStore, embedder Embedder, chunkSize, chunkOverlap, topK int) (*Engine, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating keyword index: %w", err)
	}
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if topK <= 0 {
		topK = 3
	}
	return &Engine{
		store:        cs,
		embedder:     embedder,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		topK:         topK,
		index:        index,
		meta:         make(map[string]store.DocumentChunk),
		warmed:       make(map[string]bool),
		logger:       log.New(log.Writer(), "[MEMORY] ", log.LstdFlags),
	}, nil
}

type indexedChunk struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
}

// Ingest chunks a report, embeds the chunks in bounded parallel batches, and
// persists them to both tiers.
func (e *Engine) Ingest(ctx context.Context, conversationID, report string) (int, error) {
	pieces := Chunk(report, e.chunkSize, e.chunkOverlap)
	if len(pieces) == 0 {
		return 0, nil
	}

	vectors := make([][]float32, len(pieces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for start := 0; start < len(pieces); start += embedBatchSize {
		start := start
		end := start + embedBatchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		g.Go(func() error {
			vecs, err := e.embedder.Embed(gctx, pieces[start:end])
			if err != nil {
				return fmt.Errorf("embedding chunks %d-%d: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), end-start)
			}
			copy(vectors[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	chunks := make([]store.DocumentChunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = store.DocumentChunk{
			ConversationID: conversationID,
			Content:        p,
			Embedding:      vectors[i],
		}
	}
	if err := e.store.InsertChunks(ctx, chunks); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range chunks {
		e.meta[c.ID] = c
		if err := e.index.Index(c.ID, indexedChunk{Content: c.Content, ConversationID: c.ConversationID}); err != nil {
			return 0, fmt.Errorf("indexing chunk %s: %w", c.ID, err)
		}
	}
	e.logger.Printf("Ingested %d chunks for conversation %s", len(chunks), conversationID)
	return len(chunks), nil
}

// Query retrieves the most relevant prior chunks for a conversation, fusing
// vector and keyword recall.
func (e *Engine) Query(ctx context.Context, conversationID, query string) ([]Hit, error) {
	if err := e.warm(ctx, conversationID); err != nil {
		e.logger.Printf("Keyword index warm-up failed: %v", err)
	}

	var vecHits []Hit
	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		e.logger.Printf("Query embedding failed, keyword-only retrieval: %v", err)
	} else if len(vecs) == 1 {
		results, err := e.store.SearchChunks(ctx, conversationID, vecs[0], e.topK)
		if err != nil {
			return nil, err
		}
		for i, r := range results {
			vecHits = append(vecHits, Hit{
				ID:      r.Chunk.ID,
				Content: r.Chunk.Content,
				Score:   1 - r.Distance,
				Rank:    i + 1,
			})
		}
	}

	bmHits, err := e.keywordSearch(conversationID, query, e.topK)
	if err != nil {
		e.logger.Printf("Keyword search failed: %v", err)
	}

	return fuseRRF(vecHits, bmHits, e.topK), nil
}

func (e *Engine) keywordSearch(conversationID, q string, k int) ([]Hit, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	res, err := e.index.Search(searchReq)
	if err != nil {
		return nil, err
	}
	var out []Hit
	for _, hit := range res.Hits {
		doc, ok := e.meta[hit.ID]
		if !ok || doc.ConversationID != conversationID {
			continue
		}
		out = append(out, Hit{ID: hit.ID, Content: doc.Content, Score: hit.Score, Rank: len(out) + 1})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// warm rebuilds the in-memory keyword index from Postgres the first time a
// conversation is queried after startup.
func (e *Engine) warm(ctx context.Context, conversationID string) error {
	e.mu.RLock()
	done := e.warmed[conversationID]
	e.mu.RUnlock()
	if done {
		return nil
	}

	chunks, err := e.store.ListChunks(ctx, conversationID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.warmed[conversationID] {
		return nil
	}
	for _, c := range chunks {
		if _, ok := e.meta[c.ID]; ok {
			continue
		}
		e.meta[c.ID] = c
		if err := e.index.Index(c.ID, indexedChunk{Content: c.Content, ConversationID: c.ConversationID}); err != nil {
			return err
		}
	}
	e.warmed[conversationID] = true
	return nil
}

func fuseRRF(a, b []Hit, k int) []Hit {
	type agg struct {
		item  Hit
		score float64
	}
	m := map[string]*agg{}
	add := func(list []Hit) {
		for _, h := range list {
			x, ok := m[h.ID]
			if !ok {
				m[h.ID] = &agg{item: h}
				x = m[h.ID]
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)

	items := make([]agg, 0, len(m))
	for _, v := range m {
		items = append(items, *v)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].score > items[j].score })

	n := int(math.Min(float64(k), float64(len(items))))
	out := make([]Hit, 0, n)
	for i := 0; i < n; i++ {
		h := items[i].item
		h.Score = items[i].score
		h.Rank = i + 1
		out = append(out, h)
	}
	return out
}
