package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/ditto/pkg/repository"
	"github.com/m-mizutani/gt"
)

func newRecord(question, answer string, createdAt time.Time) *model.QuestionRecord {
	return &model.QuestionRecord{
		ID:        model.NewRecordID(),
		Question:  question,
		Answer:    answer,
		CreatedAt: createdAt,
	}
}

// testHistoryStore runs the behavior every HistoryStore must satisfy
func testHistoryStore(t *testing.T, store repository.HistoryStore) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("unknown user has empty history", func(t *testing.T) {
		userID := model.UserID(fmt.Sprintf("user-%d", time.Now().UnixNano()))
		records, err := store.Get(ctx, userID)
		gt.NoError(t, err)
		gt.A(t, records).Length(0)
	})

	t.Run("append keeps chronological order", func(t *testing.T) {
		userID := model.UserID(fmt.Sprintf("user-%d", time.Now().UnixNano()))
		first := newRecord("What is your age?", "34", now)
		first.Embedding = []float32{0.1, 0.2, 0.3}
		first.EmbeddingModel = "gemini:gemini-embedding-001:3"
		second := newRecord("What is your income?", "$50,000", now.Add(time.Second))

		gt.NoError(t, store.Append(ctx, userID, first))
		gt.NoError(t, store.Append(ctx, userID, second))

		records, err := store.Get(ctx, userID)
		gt.NoError(t, err)
		gt.A(t, records).Length(2)
		gt.Equal(t, records[0].ID, first.ID)
		gt.Equal(t, records[0].Question, "What is your age?")
		gt.Equal(t, records[0].Answer, "34")
		gt.Equal(t, []float32(records[0].Embedding), []float32{0.1, 0.2, 0.3})
		gt.Equal(t, records[0].EmbeddingModel, "gemini:gemini-embedding-001:3")
		gt.Equal(t, records[1].EmbeddingModel, "")
		gt.Equal(t, records[0].CreatedAt.Equal(now), true)
		gt.Equal(t, records[1].Answer, "$50,000")
		gt.A(t, []float32(records[1].Embedding)).Length(0)
	})

	t.Run("duplicate key is rejected", func(t *testing.T) {
		userID := model.UserID(fmt.Sprintf("user-%d", time.Now().UnixNano()))
		gt.NoError(t, store.Append(ctx, userID, newRecord("What is your age?", "34", now)))

		err := store.Append(ctx, userID, newRecord("  WHAT IS YOUR AGE?", "35", now.Add(time.Second)))
		gt.Error(t, err)
		gt.Equal(t, errors.Is(err, model.ErrDuplicateQuestion), true)

		records, err := store.Get(ctx, userID)
		gt.NoError(t, err)
		gt.A(t, records).Length(1)
		gt.Equal(t, records[0].Answer, "34")
	})

	t.Run("same key for other users is allowed", func(t *testing.T) {
		base := time.Now().UnixNano()
		u1 := model.UserID(fmt.Sprintf("user-%d-a", base))
		u2 := model.UserID(fmt.Sprintf("user-%d-b", base))
		gt.NoError(t, store.Append(ctx, u1, newRecord("What is your age?", "34", now)))
		gt.NoError(t, store.Append(ctx, u2, newRecord("What is your age?", "51", now)))

		records, err := store.Get(ctx, u2)
		gt.NoError(t, err)
		gt.A(t, records).Length(1)
		gt.Equal(t, records[0].Answer, "51")
	})

	t.Run("delete by index", func(t *testing.T) {
		userID := model.UserID(fmt.Sprintf("user-%d", time.Now().UnixNano()))
		for i, q := range []string{"q0", "q1", "q2"} {
			gt.NoError(t, store.Append(ctx, userID, newRecord(q, "a", now.Add(time.Duration(i)*time.Second))))
		}

		gt.NoError(t, store.Delete(ctx, userID, 1))
		records, err := store.Get(ctx, userID)
		gt.NoError(t, err)
		gt.A(t, records).Length(2)
		gt.Equal(t, records[0].Question, "q0")
		gt.Equal(t, records[1].Question, "q2")

		// the deleted question can be recorded again
		gt.NoError(t, store.Append(ctx, userID, newRecord("Q1", "b", now.Add(5*time.Second))))

		err = store.Delete(ctx, userID, 3)
		gt.Equal(t, errors.Is(err, model.ErrRecordNotFound), true)
		err = store.Delete(ctx, userID, -1)
		gt.Equal(t, errors.Is(err, model.ErrRecordNotFound), true)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		userID := model.UserID(fmt.Sprintf("user-%d", time.Now().UnixNano()))
		gt.NoError(t, store.Append(ctx, userID, newRecord("q", "a", now)))

		gt.NoError(t, store.Clear(ctx, userID))
		gt.NoError(t, store.Clear(ctx, userID))

		records, err := store.Get(ctx, userID)
		gt.NoError(t, err)
		gt.A(t, records).Length(0)

		gt.NoError(t, store.Append(ctx, userID, newRecord("q", "a", now)))
	})

	t.Run("concurrent append of the same question records once", func(t *testing.T) {
		userID := model.UserID(fmt.Sprintf("user-%d", time.Now().UnixNano()))

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = store.Append(ctx, userID, newRecord("What is your age?", fmt.Sprintf("%d", i), now))
			}(i)
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			gt.Equal(t, errors.Is(err, model.ErrDuplicateQuestion), true)
		}
		gt.Equal(t, succeeded, 1)

		records, err := store.Get(ctx, userID)
		gt.NoError(t, err)
		gt.A(t, records).Length(1)
	})
}

func TestMemory(t *testing.T) {
	testHistoryStore(t, repository.NewMemory())
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	gt.NoError(t, store.Append(ctx, "u", newRecord("q", "a", time.Now())))

	records, err := store.Get(ctx, "u")
	gt.NoError(t, err)
	records[0].Answer = "modified"

	records, err = store.Get(ctx, "u")
	gt.NoError(t, err)
	gt.Equal(t, records[0].Answer, "a")
}
