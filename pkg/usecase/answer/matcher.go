package answer

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/ditto/pkg/embedding"
	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultThreshold is the similarity a paraphrase must exceed to reuse a prior answer
const DefaultThreshold = 0.95

// ValidateThreshold checks that threshold is in (0, 1]
func ValidateThreshold(threshold float64) error {
	if threshold <= 0 || threshold > 1 {
		return goerr.Wrap(model.ErrInvalidInput, "threshold must be in (0, 1]", goerr.V("threshold", threshold))
	}
	return nil
}

// Lookup is the outcome of matching a question against a history.
// Record is nil when nothing matched.
type Lookup struct {
	Record *model.QuestionRecord
	Score  float64
	Exact  bool

	// Embedding of the candidate question. Nil when no embedding was computed.
	Embedding []float32
}

// Matched reports whether a prior record was found
func (l *Lookup) Matched() bool {
	return l.Record != nil
}

// Matcher finds the prior record equivalent to a question
type Matcher struct {
	provider  embedding.Provider
	threshold float64
	model     string
}

// MatcherOption is a functional option for Matcher
type MatcherOption func(*Matcher)

// WithMatcherModel sets the embedding model identity of the provider.
// Stored embeddings of any other model are recomputed before comparison.
func WithMatcherModel(name string) MatcherOption {
	return func(m *Matcher) {
		m.model = name
	}
}

// NewMatcher creates a Matcher. threshold must be in (0, 1].
func NewMatcher(provider embedding.Provider, threshold float64, opts ...MatcherOption) (*Matcher, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	m := &Matcher{provider: provider, threshold: threshold}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Lookup searches history for a record equivalent to candidate. A record
// with the same question key matches without any embedding call; otherwise
// the most similar record matches if its cosine similarity is strictly
// greater than the threshold.
func (m *Matcher) Lookup(ctx context.Context, candidate string, history []*model.QuestionRecord) (*Lookup, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || len(history) == 0 {
		return &Lookup{}, nil
	}

	if rec := model.FindByKey(history, candidate); rec != nil {
		return &Lookup{Record: rec, Score: 1.0, Exact: true}, nil
	}

	texts := []string{candidate}
	var missing []int
	for i, rec := range history {
		if len(rec.Embedding) == 0 || rec.EmbeddingModel != m.model {
			texts = append(texts, rec.Question)
			missing = append(missing, i)
		}
	}

	embedded, err := m.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	target := embedded[0]
	if len(target) == 0 {
		return nil, goerr.New("empty candidate embedding")
	}

	vectors := make([][]float32, len(history))
	for i, rec := range history {
		vectors[i] = rec.Embedding
	}
	for j, idx := range missing {
		vectors[idx] = embedded[j+1]
	}

	// stored embeddings of another dimensionality are recomputed
	var stale []int
	var staleTexts []string
	for i, vec := range vectors {
		if len(vec) != len(target) {
			stale = append(stale, i)
			staleTexts = append(staleTexts, history[i].Question)
		}
	}
	if len(stale) > 0 {
		refreshed, err := m.embed(ctx, staleTexts)
		if err != nil {
			return nil, err
		}
		for j, idx := range stale {
			if len(refreshed[j]) != len(target) {
				return nil, goerr.Wrap(embedding.ErrDimensionMismatch, "embedding dimension differs from candidate",
					goerr.V("question", history[idx].Question),
					goerr.V("expected", len(target)),
					goerr.V("actual", len(refreshed[j])))
			}
			vectors[idx] = refreshed[j]
		}
	}

	var (
		best      *model.QuestionRecord
		bestScore float64
	)
	for i, rec := range history {
		score, err := embedding.CosineSimilarity(target, vectors[i])
		if errors.Is(err, embedding.ErrZeroVector) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if best == nil || score > bestScore || (score == bestScore && !rec.CreatedAt.Before(best.CreatedAt)) {
			best, bestScore = rec, score
		}
	}

	result := &Lookup{Score: bestScore, Embedding: target}
	if best != nil && bestScore > m.threshold {
		result.Record = best
	}
	return result, nil
}

func (m *Matcher) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := m.provider.Embed(ctx, texts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed questions", goerr.V("count", len(texts)))
	}
	if len(vectors) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(vectors)))
	}
	return vectors, nil
}
