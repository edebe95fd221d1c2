package answer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/ditto/pkg/embedding"
	"github.com/m-mizutani/ditto/pkg/generator"
	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/ditto/pkg/repository"
	"github.com/m-mizutani/ditto/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Source tells where an answer came from
type Source string

const (
	SourceHistory   Source = "history"
	SourceGenerated Source = "generated"
)

// UseCase resolves questions so that equivalent questions of a user always get the same answer
type UseCase struct {
	store     repository.HistoryStore
	provider  embedding.Provider
	generator generator.Generator
	threshold float64
	model     string
	now       func() time.Time

	matcher *Matcher
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithThreshold sets the similarity threshold for paraphrase matching
func WithThreshold(threshold float64) Option {
	return func(uc *UseCase) {
		uc.threshold = threshold
	}
}

// WithEmbeddingModel sets the identity of the embedding model, such as
// "gemini:gemini-embedding-001:768". It is stored with every new record so
// that embeddings of different models are never compared.
func WithEmbeddingModel(name string) Option {
	return func(uc *UseCase) {
		uc.model = name
	}
}

// WithClock replaces the clock used for record timestamps
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates a new answer UseCase instance
func New(
	store repository.HistoryStore,
	provider embedding.Provider,
	gen generator.Generator,
	opts ...Option,
) (*UseCase, error) {
	uc := &UseCase{
		store:     store,
		provider:  provider,
		generator: gen,
		threshold: DefaultThreshold,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	matcher, err := NewMatcher(provider, uc.threshold, WithMatcherModel(uc.model))
	if err != nil {
		return nil, err
	}
	uc.matcher = matcher

	return uc, nil
}

// ResolveInput is one question asked by a user
type ResolveInput struct {
	UserID   model.UserID
	Question model.Question
	Profile  string
}

// Answer is the resolved answer of a question
type Answer struct {
	Text   string
	Source Source

	// Score is the similarity of the matched record. Zero for generated answers.
	Score float64

	// RecordID of the replayed record, or of the newly recorded one
	RecordID model.RecordID

	// Question is the display label of the question
	Question string

	// RecordErr is set when the generated answer could not be saved to history
	RecordErr error
}

func validateUserID(userID model.UserID) error {
	if strings.TrimSpace(string(userID)) == "" {
		return goerr.Wrap(model.ErrInvalidInput, "user id is required", goerr.V("user_id", userID))
	}
	return nil
}

func (x ResolveInput) validate() error {
	if err := validateUserID(x.UserID); err != nil {
		return err
	}
	if !x.Question.HasText() && x.Question.Image == nil {
		return goerr.Wrap(model.ErrInvalidInput, "question text or image is required")
	}
	if strings.TrimSpace(x.Profile) == "" {
		return goerr.Wrap(model.ErrInvalidInput, "profile is required")
	}
	if x.Question.Image != nil {
		if err := x.Question.Image.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the prior answer of an equivalent question when one
// exists in the user's history. Otherwise it generates a new answer and
// records it. Image-only questions are always generated and never recorded.
func (u *UseCase) Resolve(ctx context.Context, input ResolveInput) (*Answer, error) {
	logger := logging.From(ctx).With("user_id", input.UserID)

	logger.Debug("validating question", "question", input.Question.Label(), "has_image", input.Question.Image != nil)
	if err := input.validate(); err != nil {
		return nil, err
	}

	history, err := u.store.Get(ctx, input.UserID)
	if err != nil {
		return nil, model.ErrMatchLookupFailed.Wrap(err,
			goerr.V("user_id", input.UserID),
			goerr.V("step", "load history"))
	}

	var lookup *Lookup
	if input.Question.HasText() {
		logger.Debug("matching question", "history", len(history))
		lookup, err = u.matcher.Lookup(ctx, input.Question.Text, history)
		if err != nil {
			return nil, model.ErrMatchLookupFailed.Wrap(err,
				goerr.V("user_id", input.UserID),
				goerr.V("step", "match question"))
		}

		if lookup.Matched() {
			logger.Debug("replaying prior answer",
				"record_id", lookup.Record.ID,
				"score", lookup.Score,
				"exact", lookup.Exact)
			return &Answer{
				Text:     lookup.Record.Answer,
				Source:   SourceHistory,
				Score:    lookup.Score,
				RecordID: lookup.Record.ID,
				Question: input.Question.Label(),
			}, nil
		}
		logger.Debug("no prior answer", "best_score", lookup.Score)
	}

	logger.Debug("generating answer")
	text, err := u.generator.Generate(ctx, generator.Input{
		Question: input.Question.Text,
		Image:    input.Question.Image,
		Profile:  input.Profile,
	})
	if err != nil {
		return nil, model.ErrGenerationFailed.Wrap(err,
			goerr.V("user_id", input.UserID))
	}
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrGenerationFailed, "generated answer is empty",
			goerr.V("user_id", input.UserID))
	}

	result := &Answer{
		Text:     text,
		Source:   SourceGenerated,
		Question: input.Question.Label(),
	}

	if !input.Question.HasText() || model.FindByKey(history, input.Question.Text) != nil {
		return result, nil
	}

	record := &model.QuestionRecord{
		ID:        model.NewRecordID(),
		Question:  input.Question.Text,
		Answer:    text,
		CreatedAt: u.nextTimestamp(history),
	}
	if lookup != nil && len(lookup.Embedding) > 0 {
		record.Embedding = lookup.Embedding
		record.EmbeddingModel = u.model
	}

	logger.Debug("recording answer", "record_id", record.ID)
	switch err := u.store.Append(ctx, input.UserID, record); {
	case err == nil:
		result.RecordID = record.ID
	case errors.Is(err, model.ErrDuplicateQuestion):
		logger.Info("question was recorded concurrently", "question", record.Question)
	default:
		result.RecordErr = model.ErrRecordingFailed.Wrap(err,
			goerr.V("user_id", input.UserID),
			goerr.V("record_id", record.ID))
		logger.Warn("failed to record answer", "error", result.RecordErr)
	}

	return result, nil
}

// timestampStep keeps clamped timestamps distinct at the microsecond
// precision Firestore stores.
const timestampStep = time.Microsecond

// nextTimestamp returns the current time, strictly later than the newest record
func (u *UseCase) nextTimestamp(history []*model.QuestionRecord) time.Time {
	now := u.now()
	if n := len(history); n > 0 && !isAfter(now, history[n-1].CreatedAt) {
		return history[n-1].CreatedAt.Truncate(timestampStep).Add(timestampStep)
	}
	return now
}

// isAfter reports whether t is later than u at timestampStep precision
func isAfter(t, u time.Time) bool {
	return t.Truncate(timestampStep).After(u.Truncate(timestampStep))
}
