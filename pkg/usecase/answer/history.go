package answer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/ditto/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// History returns the user's records oldest first
func (u *UseCase) History(ctx context.Context, userID model.UserID) ([]*model.QuestionRecord, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	records, err := u.store.Get(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get history", goerr.V("user_id", userID))
	}
	return records, nil
}

// DeleteRecord removes the record at index, where 0 is the oldest record
func (u *UseCase) DeleteRecord(ctx context.Context, userID model.UserID, index int) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if err := u.store.Delete(ctx, userID, index); err != nil {
		return goerr.Wrap(err, "failed to delete record", goerr.V("user_id", userID), goerr.V("index", index))
	}
	logging.From(ctx).Debug("deleted record", "user_id", userID, "index", index)
	return nil
}

// ClearHistory removes every record of the user
func (u *UseCase) ClearHistory(ctx context.Context, userID model.UserID) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if err := u.store.Clear(ctx, userID); err != nil {
		return goerr.Wrap(err, "failed to clear history", goerr.V("user_id", userID))
	}
	logging.From(ctx).Debug("cleared history", "user_id", userID)
	return nil
}

type exportDocument struct {
	UserID  model.UserID   `json:"user_id"`
	Records []exportRecord `json:"records"`
}

type exportRecord struct {
	ID        model.RecordID `json:"id"`
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	CreatedAt time.Time      `json:"created_at"`
}

// ExportHistory writes the user's history to w as JSON. Embeddings are not
// exported; they are recomputed on demand after import.
func (u *UseCase) ExportHistory(ctx context.Context, userID model.UserID, w io.Writer) error {
	records, err := u.History(ctx, userID)
	if err != nil {
		return err
	}

	doc := exportDocument{
		UserID:  userID,
		Records: make([]exportRecord, 0, len(records)),
	}
	for _, r := range records {
		doc.Records = append(doc.Records, exportRecord{
			ID:        r.ID,
			Question:  r.Question,
			Answer:    r.Answer,
			CreatedAt: r.CreatedAt,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&doc); err != nil {
		return goerr.Wrap(err, "failed to encode history", goerr.V("user_id", userID))
	}
	return nil
}

// ImportHistory appends records read from r (as written by ExportHistory) to
// the user's history in order. Records whose question is already in the
// history, or that have no question or answer, are skipped.
func (u *UseCase) ImportHistory(ctx context.Context, userID model.UserID, r io.Reader) (imported, skipped int, err error) {
	if err := validateUserID(userID); err != nil {
		return 0, 0, err
	}

	var doc exportDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, 0, goerr.Wrap(model.ErrInvalidInput, "failed to decode history", goerr.V("error", err.Error()))
	}

	history, err := u.store.Get(ctx, userID)
	if err != nil {
		return 0, 0, goerr.Wrap(err, "failed to get history", goerr.V("user_id", userID))
	}

	logger := logging.From(ctx)
	for _, rec := range doc.Records {
		if strings.TrimSpace(rec.Question) == "" || strings.TrimSpace(rec.Answer) == "" ||
			model.FindByKey(history, rec.Question) != nil {
			skipped++
			continue
		}

		record := &model.QuestionRecord{
			ID:        rec.ID,
			Question:  rec.Question,
			Answer:    rec.Answer,
			CreatedAt: rec.CreatedAt,
		}
		if record.ID == "" {
			record.ID = model.NewRecordID()
		}
		if n := len(history); record.CreatedAt.IsZero() || (n > 0 && !isAfter(record.CreatedAt, history[n-1].CreatedAt)) {
			record.CreatedAt = u.nextTimestamp(history)
		}

		if err := u.store.Append(ctx, userID, record); err != nil {
			if errors.Is(err, model.ErrDuplicateQuestion) {
				skipped++
				continue
			}
			return imported, skipped, goerr.Wrap(err, "failed to import record",
				goerr.V("user_id", userID),
				goerr.V("question", rec.Question))
		}
		history = append(history, record)
		imported++
	}

	logger.Debug("imported history", "user_id", userID, "imported", imported, "skipped", skipped)
	return imported, skipped, nil
}
