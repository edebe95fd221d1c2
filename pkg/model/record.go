package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

// ImageQuestionPlaceholder labels image-only questions. They are never recorded in history.
const ImageQuestionPlaceholder = "Image Question"

type UserID string

type RecordID string

// NewRecordID generates a new unique RecordID
func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

// QuestionRecord is one answered question in a user's history
type QuestionRecord struct {
	ID        RecordID
	Question  string
	Answer    string
	Embedding firestore.Vector32
	// EmbeddingModel identifies the model and dimensionality Embedding was computed with
	EmbeddingModel string
	CreatedAt      time.Time
}

// Key returns the case-insensitive comparison key of the question
func (r *QuestionRecord) Key() string {
	return QuestionKey(r.Question)
}

// QuestionKey normalizes a question for exact comparison: surrounding
// whitespace is ignored and letters are compared case-insensitively.
func QuestionKey(question string) string {
	return strings.ToLower(strings.TrimSpace(question))
}

// QuestionKeyHash returns a fixed-length identifier for the question key,
// usable as a document ID or hash field.
func QuestionKeyHash(question string) string {
	sum := sha256.Sum256([]byte(QuestionKey(question)))
	return hex.EncodeToString(sum[:])
}

// FindByKey returns the most recent record in history whose key equals the question's key
func FindByKey(history []*QuestionRecord, question string) *QuestionRecord {
	key := QuestionKey(question)
	if key == "" {
		return nil
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Key() == key {
			return history[i]
		}
	}
	return nil
}
