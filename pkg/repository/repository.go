package repository

import (
	"context"

	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// HistoryStore persists each user's answered questions in chronological order
type HistoryStore interface {
	// Get returns the user's records oldest first. Unknown users have an empty history.
	Get(ctx context.Context, userID model.UserID) ([]*model.QuestionRecord, error)

	// Append adds record to the end of the history. It fails with
	// model.ErrDuplicateQuestion if a record with the same question key exists.
	Append(ctx context.Context, userID model.UserID, record *model.QuestionRecord) error

	// Delete removes the record at index (0 is the oldest). It fails with
	// model.ErrRecordNotFound if index is out of range.
	Delete(ctx context.Context, userID model.UserID, index int) error

	// Clear removes all records of the user
	Clear(ctx context.Context, userID model.UserID) error
}

func errDuplicate(userID model.UserID, record *model.QuestionRecord) error {
	return goerr.Wrap(model.ErrDuplicateQuestion, "question already recorded",
		goerr.V("user_id", userID),
		goerr.V("question", record.Question))
}

func errNotFound(userID model.UserID, index int) error {
	return goerr.Wrap(model.ErrRecordNotFound, "no record at index",
		goerr.V("user_id", userID),
		goerr.V("index", index))
}
