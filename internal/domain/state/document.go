package state

import (
	"fmt"
	"time"
)

// Rarity of a catalog item.
type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
)

// ValidRarity reports whether r is one of the four recognized tiers.
func ValidRarity(r Rarity) bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// ItemType describes how an item is delivered to the winner.
type ItemType string

const (
	ItemTypeText     ItemType = "text"
	ItemTypePhoto    ItemType = "photo"
	ItemTypeDocument ItemType = "document"
	ItemTypeSticker  ItemType = "sticker"
	ItemTypeVideo    ItemType = "video"
	ItemTypeAudio    ItemType = "audio"
)

func ValidItemType(t ItemType) bool {
	switch t {
	case ItemTypeText, ItemTypePhoto, ItemTypeDocument, ItemTypeSticker, ItemTypeVideo, ItemTypeAudio:
		return true
	}
	return false
}

// DateLayout is the calendar-date format used for the lazy daily reset.
// Comparison is by date string, not elapsed duration.
const DateLayout = "2006-01-02"

// Item is a catalog entry. IDs are sequential and kept dense (1..N);
// they are reassigned when an item is deleted.
type Item struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Rarity Rarity `json:"rarity"`

	// Probability is a relative weight, not a percentage. The catalog is
	// not required to sum to 100.
	Probability float64 `json:"probability"`

	Type        ItemType `json:"type"`
	FileID      string   `json:"file_id"`
	PremiumOnly bool     `json:"premium_only"`

	AddedAt time.Time `json:"added_at"`
	AddedBy int64     `json:"added_by,omitempty"`
}

// InventoryItem is an immutable snapshot of an item at acquisition time.
// Later catalog edits never alter an already-granted entry.
type InventoryItem struct {
	ItemID      int       `json:"item_id"`
	Name        string    `json:"name"`
	Rarity      Rarity    `json:"rarity"`
	Type        ItemType  `json:"type"`
	FileID      string    `json:"file_id"`
	ObtainedAt  time.Time `json:"obtained_at"`
	UsedBonus   bool      `json:"used_bonus"`
	PremiumItem bool      `json:"premium_item"`
}

// Referral records one rewarded invite. A referred user id appears at
// most once per referrer.
type Referral struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	Date     time.Time `json:"date"`
}

// User is the per-principal economy record. Users are created on first
// authorized interaction and never deleted.
type User struct {
	Username   string          `json:"username"`
	Inventory  []InventoryItem `json:"inventory"`
	GachaCount int             `json:"gacha_count"`

	// DailyGacha counts pulls consumed today; LastGachaDate is the
	// calendar date the counter belongs to (empty before the first pull).
	DailyGacha    int    `json:"daily_gacha"`
	LastGachaDate string `json:"last_gacha_date"`

	BonusGacha int        `json:"bonus_gacha"`
	Referrals  []Referral `json:"referrals"`

	JoinedAt   time.Time `json:"joined_at"`
	LastActive time.Time `json:"last_active"`
}

// NewUser returns a fully populated record; no later code path needs a
// presence check on any field.
func NewUser(username string, now time.Time) *User {
	return &User{
		Username:   username,
		Inventory:  []InventoryItem{},
		Referrals:  []Referral{},
		JoinedAt:   now,
		LastActive: now,
	}
}

// HasReferred reports whether the user already holds a referral entry
// for the given referred id.
func (u *User) HasReferred(userID int64) bool {
	for _, r := range u.Referrals {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

type Settings struct {
	DailyLimitFree    int  `json:"daily_limit_free"`
	DailyLimitPremium int  `json:"daily_limit_premium"`
	GroupOnly         bool `json:"group_only"`
}

type PrivateMode struct {
	Enabled         bool    `json:"enabled"`
	Password        string  `json:"password"`
	AuthorizedUsers []int64 `json:"authorized_users"`
}

// Document is the root state record, persisted as a whole on every
// mutation. Collection fields never carry omitempty: a present-but-empty
// collection must survive a save/load round trip, otherwise it would be
// mis-reconciled as "use default" on the next load.
type Document struct {
	Users    map[int64]*User `json:"users"`
	Items    []Item          `json:"items"`
	Settings Settings        `json:"settings"`
	Admins   []int64         `json:"admins"`

	// Cooldowns maps "<user_id>_<action>" to the last-fire time in unix
	// milliseconds.
	Cooldowns map[string]int64 `json:"cooldowns"`

	PremiumUsers []int64     `json:"premium_users"`
	PrivateMode  PrivateMode `json:"private_mode"`
}

const (
	DefaultDailyLimitFree    = 10
	DefaultDailyLimitPremium = 15
	DefaultPrivatePassword   = "admin123"
)

// DefaultDocument returns the canonical default state, including the
// seed catalog.
func DefaultDocument() *Document {
	return &Document{
		Users: map[int64]*User{},
		Items: []Item{
			{ID: 1, Name: "💎 DIAMOND LEGENDARY", Rarity: RarityLegendary, Probability: 1, Type: ItemTypeText},
			{ID: 2, Name: "🔥 FIRE EPIC", Rarity: RarityEpic, Probability: 5, Type: ItemTypeText},
			{ID: 3, Name: "⭐ GOLD RARE", Rarity: RarityRare, Probability: 15, Type: ItemTypeText},
			{ID: 4, Name: "💧 WATER COMMON", Rarity: RarityCommon, Probability: 30, Type: ItemTypeText},
		},
		Settings: Settings{
			DailyLimitFree:    DefaultDailyLimitFree,
			DailyLimitPremium: DefaultDailyLimitPremium,
		},
		Admins:       []int64{},
		Cooldowns:    map[string]int64{},
		PremiumUsers: []int64{},
		PrivateMode: PrivateMode{
			Password:        DefaultPrivatePassword,
			AuthorizedUsers: []int64{},
		},
	}
}

// Reconcile repairs a partial or stale document in place so that every
// key of the default schema is present. Loaded persisted data is never
// trusted to be complete.
func (d *Document) Reconcile() {
	def := DefaultDocument()

	if d.Users == nil {
		d.Users = def.Users
	}
	for _, u := range d.Users {
		if u.Inventory == nil {
			u.Inventory = []InventoryItem{}
		}
		if u.Referrals == nil {
			u.Referrals = []Referral{}
		}
		if u.GachaCount < 0 {
			u.GachaCount = 0
		}
		if u.DailyGacha < 0 {
			u.DailyGacha = 0
		}
		if u.BonusGacha < 0 {
			u.BonusGacha = 0
		}
	}
	if d.Items == nil {
		d.Items = def.Items
	}
	if d.Settings.DailyLimitFree <= 0 {
		d.Settings.DailyLimitFree = def.Settings.DailyLimitFree
	}
	if d.Settings.DailyLimitPremium <= 0 {
		d.Settings.DailyLimitPremium = def.Settings.DailyLimitPremium
	}
	if d.Admins == nil {
		d.Admins = def.Admins
	}
	if d.Cooldowns == nil {
		d.Cooldowns = def.Cooldowns
	}
	for key, ts := range d.Cooldowns {
		if ts < 0 {
			d.Cooldowns[key] = 0
		}
	}
	if d.PremiumUsers == nil {
		d.PremiumUsers = def.PremiumUsers
	}
	if d.PrivateMode.Password == "" {
		d.PrivateMode.Password = def.PrivateMode.Password
	}
	if d.PrivateMode.AuthorizedUsers == nil {
		d.PrivateMode.AuthorizedUsers = def.PrivateMode.AuthorizedUsers
	}
}

// CooldownKey builds the composite (principal, action) key.
func CooldownKey(userID int64, action string) string {
	return fmt.Sprintf("%d_%s", userID, action)
}

// IsAdmin reports membership in the admin set. Identifiers are int64
// everywhere; there is no string/number coercion at this level.
func (d *Document) IsAdmin(userID int64) bool {
	return containsID(d.Admins, userID)
}

// IsManualPremium reports membership in the manually granted premium set.
func (d *Document) IsManualPremium(userID int64) bool {
	return containsID(d.PremiumUsers, userID)
}

// AddAdmin inserts userID into the admin set; reports whether a change
// occurred.
func (d *Document) AddAdmin(userID int64) bool {
	var changed bool
	d.Admins, changed = addID(d.Admins, userID)
	return changed
}

// RemoveAdmin removes userID from the admin set; reports whether a
// change occurred.
func (d *Document) RemoveAdmin(userID int64) bool {
	var changed bool
	d.Admins, changed = removeID(d.Admins, userID)
	return changed
}

// AddPremium inserts userID into the manual premium set.
func (d *Document) AddPremium(userID int64) bool {
	var changed bool
	d.PremiumUsers, changed = addID(d.PremiumUsers, userID)
	return changed
}

// RemovePremium removes userID from the manual premium set.
func (d *Document) RemovePremium(userID int64) bool {
	var changed bool
	d.PremiumUsers, changed = removeID(d.PremiumUsers, userID)
	return changed
}

func (p *PrivateMode) IsAuthorizedUser(userID int64) bool {
	return containsID(p.AuthorizedUsers, userID)
}

func (p *PrivateMode) Authorize(userID int64) bool {
	var changed bool
	p.AuthorizedUsers, changed = addID(p.AuthorizedUsers, userID)
	return changed
}

func (p *PrivateMode) Deauthorize(userID int64) bool {
	var changed bool
	p.AuthorizedUsers, changed = removeID(p.AuthorizedUsers, userID)
	return changed
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func addID(ids []int64, id int64) ([]int64, bool) {
	if containsID(ids, id) {
		return ids, false
	}
	return append(ids, id), true
}

func removeID(ids []int64, id int64) ([]int64, bool) {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...), true
		}
	}
	return ids, false
}
