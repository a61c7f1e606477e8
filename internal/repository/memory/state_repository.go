package memory

import (
	"context"
	"encoding/json"
	"sync"

	"gacha-bot-backend/internal/domain/state"
)

// StateRepository keeps the persisted document in memory. Used in tests
// and when running without Redis.
type StateRepository struct {
	mu  sync.Mutex
	raw []byte

	// LoadErr and SaveErr, when set, are returned by the matching
	// operation to exercise the failure paths.
	LoadErr error
	SaveErr error
	Saves   int
}

func NewStateRepository() *StateRepository {
	return &StateRepository{}
}

func (r *StateRepository) Load(ctx context.Context) (*state.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.LoadErr != nil {
		return nil, r.LoadErr
	}
	if r.raw == nil {
		return state.DefaultDocument(), nil
	}

	doc := &state.Document{}
	if err := json.Unmarshal(r.raw, doc); err != nil {
		return state.DefaultDocument(), nil
	}
	doc.Reconcile()
	return doc, nil
}

func (r *StateRepository) Save(ctx context.Context, doc *state.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Saves++
	if r.SaveErr != nil {
		return r.SaveErr
	}

	doc.Reconcile()
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	r.raw = raw
	return nil
}
