package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
)

// Redis keeps a user's history as a list of JSON records plus a hash of
// question keys used for the uniqueness check.
type Redis struct {
	client *redis.Client
}

type redisRecord struct {
	ID             string    `json:"id"`
	Key            string    `json:"key"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	Embedding      []float32 `json:"embedding,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// KEYS[1] list, KEYS[2] key hash; ARGV[1] question key hash, ARGV[2] record JSON
var appendScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[2], ARGV[1], 1) == 0 then
  return 0
end
redis.call('RPUSH', KEYS[1], ARGV[2])
return 1
`)

// KEYS[1] list, KEYS[2] key hash; ARGV[1] index
var deleteScript = redis.NewScript(`
local v = redis.call('LINDEX', KEYS[1], ARGV[1])
if not v then
  return 0
end
local rec = cjson.decode(v)
redis.call('HDEL', KEYS[2], rec['key'])
redis.call('LSET', KEYS[1], ARGV[1], '__ditto_deleted__')
redis.call('LREM', KEYS[1], 1, '__ditto_deleted__')
return 1
`)

// NewRedis creates a Redis backed HistoryStore
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func historyKey(userID model.UserID) string {
	return "ditto:history:" + string(userID)
}

func questionKeysKey(userID model.UserID) string {
	return "ditto:keys:" + string(userID)
}

func (r *Redis) Get(ctx context.Context, userID model.UserID) ([]*model.QuestionRecord, error) {
	values, err := r.client.LRange(ctx, historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read history from redis", goerr.V("user_id", userID))
	}

	records := make([]*model.QuestionRecord, 0, len(values))
	for i, v := range values {
		var rr redisRecord
		if err := json.Unmarshal([]byte(v), &rr); err != nil {
			return nil, goerr.Wrap(err, "failed to decode question record",
				goerr.V("user_id", userID),
				goerr.V("index", i))
		}
		records = append(records, &model.QuestionRecord{
			ID:             model.RecordID(rr.ID),
			Question:       rr.Question,
			Answer:         rr.Answer,
			Embedding:      rr.Embedding,
			EmbeddingModel: rr.EmbeddingModel,
			CreatedAt:      rr.CreatedAt,
		})
	}
	return records, nil
}

func (r *Redis) Append(ctx context.Context, userID model.UserID, record *model.QuestionRecord) error {
	keyHash := model.QuestionKeyHash(record.Question)
	raw, err := json.Marshal(&redisRecord{
		ID:             string(record.ID),
		Key:            keyHash,
		Question:       record.Question,
		Answer:         record.Answer,
		Embedding:      record.Embedding,
		EmbeddingModel: record.EmbeddingModel,
		CreatedAt:      record.CreatedAt,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to encode question record")
	}

	added, err := appendScript.Run(ctx, r.client,
		[]string{historyKey(userID), questionKeysKey(userID)},
		keyHash, string(raw)).Int()
	if err != nil {
		return goerr.Wrap(err, "failed to append question record",
			goerr.V("user_id", userID),
			goerr.V("record_id", record.ID))
	}
	if added == 0 {
		return errDuplicate(userID, record)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, userID model.UserID, index int) error {
	// LINDEX counts negative indexes from the tail
	if index < 0 {
		return errNotFound(userID, index)
	}

	deleted, err := deleteScript.Run(ctx, r.client,
		[]string{historyKey(userID), questionKeysKey(userID)},
		index).Int()
	if err != nil {
		return goerr.Wrap(err, "failed to delete question record",
			goerr.V("user_id", userID),
			goerr.V("index", index))
	}
	if deleted == 0 {
		return errNotFound(userID, index)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, userID model.UserID) error {
	if err := r.client.Del(ctx, historyKey(userID), questionKeysKey(userID)).Err(); err != nil {
		return goerr.Wrap(err, "failed to clear history", goerr.V("user_id", userID))
	}
	return nil
}
