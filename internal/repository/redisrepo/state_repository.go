package redisrepo

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	apperrors "gacha-bot-backend/internal/common/errors"
	"gacha-bot-backend/internal/common/logger"
	"gacha-bot-backend/internal/domain/state"
)

const stateKey = "gacha:state"

// StateRepository stores the full state document as one JSON value.
type StateRepository struct {
	rdb *redis.Client
}

func NewStateRepository(rdb *redis.Client) *StateRepository {
	return &StateRepository{rdb: rdb}
}

// Load reads the persisted document. Only a missing key or a corrupt
// payload yields the canonical default; a transient Redis failure is
// returned as an error, otherwise a later save would overwrite the
// whole persisted state with defaults.
func (r *StateRepository) Load(ctx context.Context) (*state.Document, error) {
	raw, err := r.rdb.Get(ctx, stateKey).Result()
	if err == redis.Nil {
		return state.DefaultDocument(), nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("load", err)
	}

	doc := &state.Document{}
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		logger.Warn().Err(err).Msg("State document corrupt, using default document")
		return state.DefaultDocument(), nil
	}

	doc.Reconcile()
	return doc, nil
}

// Save writes the full document. Reconcile runs first so a caller that
// dropped a collection still persists the default schema superset.
func (r *StateRepository) Save(ctx context.Context, doc *state.Document) error {
	doc.Reconcile()

	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	return r.rdb.Set(ctx, stateKey, raw, 0).Err()
}
