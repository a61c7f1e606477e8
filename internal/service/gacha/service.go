package gacha

import (
	"math/rand"
	"sync"
	"time"

	apperrors "gacha-bot-backend/internal/common/errors"
	"gacha-bot-backend/internal/domain/state"
	"gacha-bot-backend/internal/service/entitlement"
)

// Service owns the catalog and the weighted draw.
type Service struct {
	ledger *entitlement.Ledger

	mu  sync.Mutex
	rng *rand.Rand

	now func() time.Time
}

func NewService(ledger *entitlement.Ledger) *Service {
	return &Service{
		ledger: ledger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// NewServiceWithRand pins the random source and clock; used by tests.
func NewServiceWithRand(ledger *entitlement.Ledger, rng *rand.Rand, now func() time.Time) *Service {
	return &Service{ledger: ledger, rng: rng, now: now}
}

// DefaultItem is the fixed fallback when no catalog entry is eligible.
// A pull always produces something.
func DefaultItem() state.Item {
	return state.Item{
		ID:          0,
		Name:        "🎁 DEFAULT ITEM",
		Rarity:      state.RarityCommon,
		Probability: 100,
		Type:        state.ItemTypeText,
	}
}

// Resolve draws one item from the catalog under relative weights,
// filtered by premium eligibility.
func (s *Service) Resolve(items []state.Item, premiumCaller bool) state.Item {
	eligible := eligibleItems(items, premiumCaller)
	if len(eligible) == 0 {
		return DefaultItem()
	}

	var total float64
	for _, item := range eligible {
		total += weightOf(item)
	}

	s.mu.Lock()
	r := s.rng.Float64() * total
	s.mu.Unlock()

	return resolveAt(eligible, r)
}

// resolveAt walks the eligible sequence in stored order subtracting
// weights from r. If rounding drift exhausts the sequence, the last item
// wins deterministically; there is no retry.
func resolveAt(eligible []state.Item, r float64) state.Item {
	for _, item := range eligible {
		r -= weightOf(item)
		if r <= 0 {
			return item
		}
	}
	return eligible[len(eligible)-1]
}

func eligibleItems(items []state.Item, premiumCaller bool) []state.Item {
	eligible := make([]state.Item, 0, len(items))
	for _, item := range items {
		if !item.PremiumOnly || premiumCaller {
			eligible = append(eligible, item)
		}
	}
	return eligible
}

func weightOf(item state.Item) float64 {
	if item.Probability <= 0 {
		return 1
	}
	return item.Probability
}

// PullResult is what a successful pull reports back to the transport.
type PullResult struct {
	Item       state.Item `json:"item"`
	UsedBonus  bool       `json:"used_bonus"`
	Remaining  int        `json:"remaining"`
	BonusLeft  int        `json:"bonus_left"`
	TotalPulls int        `json:"total_pulls"`
	DailyLimit int        `json:"daily_limit"`
}

// Pull runs one gacha for an existing user: reserve the entitlement,
// draw, snapshot the item into the inventory. After the reservation
// succeeds no step can fail, so the mutation is all-or-nothing.
func (s *Service) Pull(doc *state.Document, userID int64, premium bool) (*PullResult, error) {
	u, ok := doc.Users[userID]
	if !ok {
		return nil, apperrors.NewUserNotFoundError(userID)
	}

	dailyLimit := s.ledger.DailyLimit(doc, premium)
	usedBonus, err := s.ledger.Consume(u, dailyLimit)
	if err != nil {
		return nil, err
	}

	item := s.Resolve(doc.Items, premium)

	now := s.now()
	u.Inventory = append(u.Inventory, state.InventoryItem{
		ItemID:      item.ID,
		Name:        item.Name,
		Rarity:      item.Rarity,
		Type:        item.Type,
		FileID:      item.FileID,
		ObtainedAt:  now,
		UsedBonus:   usedBonus,
		PremiumItem: item.PremiumOnly,
	})
	u.GachaCount++
	u.LastActive = now

	return &PullResult{
		Item:       item,
		UsedBonus:  usedBonus,
		Remaining:  dailyLimit - u.DailyGacha,
		BonusLeft:  u.BonusGacha,
		TotalPulls: u.GachaCount,
		DailyLimit: dailyLimit,
	}, nil
}

// ListItems returns the catalog entries visible to the caller's tier.
func (s *Service) ListItems(doc *state.Document, premiumCaller bool) []state.Item {
	return eligibleItems(doc.Items, premiumCaller)
}

// AddItemInput is the validated manual-add payload.
type AddItemInput struct {
	Name        string
	Rarity      state.Rarity
	Probability float64
	Type        state.ItemType
	PremiumOnly bool
	AddedBy     int64
}

// AddItem appends a validated item with the next sequential id.
func (s *Service) AddItem(doc *state.Document, input AddItemInput) (state.Item, error) {
	if input.Name == "" {
		return state.Item{}, apperrors.NewValidationError("name", "must not be empty")
	}
	if !state.ValidRarity(input.Rarity) {
		return state.Item{}, apperrors.NewValidationError("rarity", "must be COMMON, RARE, EPIC or LEGENDARY")
	}
	if input.Probability < 1 || input.Probability > 100 {
		return state.Item{}, apperrors.NewValidationError("probability", "must be between 1 and 100")
	}
	if !state.ValidItemType(input.Type) {
		return state.Item{}, apperrors.NewValidationError("type", "must be text, photo, document, sticker, video or audio")
	}

	item := state.Item{
		ID:          len(doc.Items) + 1,
		Name:        input.Name,
		Rarity:      input.Rarity,
		Probability: input.Probability,
		Type:        input.Type,
		PremiumOnly: input.PremiumOnly,
		AddedAt:     s.now(),
		AddedBy:     input.AddedBy,
	}
	doc.Items = append(doc.Items, item)
	return item, nil
}

// DeleteItem removes the item with the given id and reassigns ids so the
// catalog stays dense 1..N. Already-granted inventory snapshots keep
// their copied fields untouched.
func (s *Service) DeleteItem(doc *state.Document, itemID int) (state.Item, error) {
	idx := -1
	for i, item := range doc.Items {
		if item.ID == itemID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return state.Item{}, apperrors.NewItemNotFoundError(itemID)
	}

	deleted := doc.Items[idx]
	doc.Items = append(doc.Items[:idx], doc.Items[idx+1:]...)
	for i := range doc.Items {
		doc.Items[i].ID = i + 1
	}
	return deleted, nil
}
