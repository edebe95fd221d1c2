package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionUsers     = "users"
	collectionQuestions = "questions"
)

// Firestore keeps each record at users/{userID}/questions/{question key hash}.
// The document ID makes the question key unique per user.
type Firestore struct {
	client *firestore.Client
}

type firestoreRecord struct {
	ID             string             `firestore:"id"`
	Question       string             `firestore:"question"`
	Answer         string             `firestore:"answer"`
	Embedding      firestore.Vector32 `firestore:"embedding,omitempty"`
	EmbeddingModel string             `firestore:"embedding_model,omitempty"`
	CreatedAt      time.Time          `firestore:"created_at"`
}

// NewFirestore creates a Firestore backed HistoryStore
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}
	return &Firestore{client: client}, nil
}

// Close closes the underlying client
func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) questions(userID model.UserID) *firestore.CollectionRef {
	return f.client.Collection(collectionUsers).Doc(string(userID)).Collection(collectionQuestions)
}

func (f *Firestore) documents(ctx context.Context, userID model.UserID) ([]*firestore.DocumentSnapshot, error) {
	iter := f.questions(userID).OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var docs []*firestore.DocumentSnapshot
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate questions", goerr.V("user_id", userID))
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (f *Firestore) Get(ctx context.Context, userID model.UserID) ([]*model.QuestionRecord, error) {
	docs, err := f.documents(ctx, userID)
	if err != nil {
		return nil, err
	}

	records := make([]*model.QuestionRecord, 0, len(docs))
	for _, doc := range docs {
		var fr firestoreRecord
		if err := doc.DataTo(&fr); err != nil {
			return nil, goerr.Wrap(err, "failed to decode question record",
				goerr.V("user_id", userID),
				goerr.V("doc_id", doc.Ref.ID))
		}
		records = append(records, &model.QuestionRecord{
			ID:             model.RecordID(fr.ID),
			Question:       fr.Question,
			Answer:         fr.Answer,
			Embedding:      fr.Embedding,
			EmbeddingModel: fr.EmbeddingModel,
			CreatedAt:      fr.CreatedAt,
		})
	}
	return records, nil
}

func (f *Firestore) Append(ctx context.Context, userID model.UserID, record *model.QuestionRecord) error {
	ref := f.questions(userID).Doc(model.QuestionKeyHash(record.Question))
	_, err := ref.Create(ctx, &firestoreRecord{
		ID:             string(record.ID),
		Question:       record.Question,
		Answer:         record.Answer,
		Embedding:      record.Embedding,
		EmbeddingModel: record.EmbeddingModel,
		CreatedAt:      record.CreatedAt,
	})
	if status.Code(err) == codes.AlreadyExists {
		return errDuplicate(userID, record)
	}
	if err != nil {
		return goerr.Wrap(err, "failed to create question record",
			goerr.V("user_id", userID),
			goerr.V("record_id", record.ID))
	}
	return nil
}

func (f *Firestore) Delete(ctx context.Context, userID model.UserID, index int) error {
	if index < 0 {
		return errNotFound(userID, index)
	}

	docs, err := f.documents(ctx, userID)
	if err != nil {
		return err
	}
	if index >= len(docs) {
		return errNotFound(userID, index)
	}

	if _, err := docs[index].Ref.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete question record",
			goerr.V("user_id", userID),
			goerr.V("index", index))
	}
	return nil
}

func (f *Firestore) Clear(ctx context.Context, userID model.UserID) error {
	docs, err := f.documents(ctx, userID)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	bw := f.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue delete", goerr.V("user_id", userID))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to delete question record", goerr.V("user_id", userID))
		}
	}
	return nil
}
