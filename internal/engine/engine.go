package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "gacha-bot-backend/internal/common/errors"
	"gacha-bot-backend/internal/common/logger"
	"gacha-bot-backend/internal/domain/state"
	"gacha-bot-backend/internal/service/access"
	"gacha-bot-backend/internal/service/cooldown"
	"gacha-bot-backend/internal/service/entitlement"
	"gacha-bot-backend/internal/service/gacha"
	"gacha-bot-backend/internal/service/referral"
)

// Action names accepted by Execute. Transports map their commands onto
// these.
const (
	ActionStart       = "start"
	ActionAuth        = "auth"
	ActionGacha       = "gacha"
	ActionStatus      = "status"
	ActionHistory     = "history"
	ActionInventory   = "inventory"
	ActionLeaderboard = "leaderboard"
	ActionListItems   = "listitems"
	ActionInvite      = "invite"

	ActionAddItem     = "additem"
	ActionAddItemFile = "additem_file"
	ActionDelItem     = "delitem"

	ActionAddAdmin    = "addadmin"
	ActionDelAdmin    = "deladmin"
	ActionListAdmins  = "listadmins"
	ActionAddPremium  = "addpremium"
	ActionDelPremium  = "delpremium"
	ActionListPremium = "listpremium"

	ActionAddLimit    = "addlimit"
	ActionRemoveLimit = "removelimit"

	ActionPrivateOn          = "private_on"
	ActionPrivateOff         = "private_off"
	ActionPrivateStatus      = "private_status"
	ActionPrivateSetPassword = "private_setpassword"
	ActionPrivateAuthorize   = "private_authorize"
	ActionPrivateDeauthorize = "private_deauthorize"

	ActionStats     = "stats"
	ActionBackup    = "backup"
	ActionBroadcast = "broadcast"
)

// cooldownWindows gives the per-action throttle window. Actions absent
// from the table are never throttled.
var cooldownWindows = map[string]time.Duration{
	ActionStart:       5 * time.Second,
	ActionGacha:       30 * time.Second,
	ActionStatus:      10 * time.Second,
	ActionHistory:     10 * time.Second,
	ActionInventory:   10 * time.Second,
	ActionInvite:      10 * time.Second,
	ActionLeaderboard: 15 * time.Second,
	ActionListItems:   15 * time.Second,

	ActionAddItem:     10 * time.Second,
	ActionAddItemFile: 10 * time.Second,
	ActionDelItem:     10 * time.Second,
	ActionAddAdmin:    15 * time.Second,
	ActionDelAdmin:    15 * time.Second,
	ActionListAdmins:  10 * time.Second,
	ActionAddPremium:  10 * time.Second,
	ActionDelPremium:  10 * time.Second,
	ActionListPremium: 10 * time.Second,
	ActionAddLimit:    10 * time.Second,
	ActionRemoveLimit: 10 * time.Second,

	ActionStats:     10 * time.Second,
	ActionBackup:    30 * time.Second,
	ActionBroadcast: 60 * time.Second,
}

var ownerOnly = map[string]bool{
	ActionAddItem:     true,
	ActionAddItemFile: true,
	ActionDelItem:     true,
	ActionAddAdmin:    true,
	ActionDelAdmin:    true,
	ActionListAdmins:  true,
	ActionAddPremium:  true,
	ActionDelPremium:  true,
	ActionListPremium: true,
	ActionAddLimit:    true,
	ActionRemoveLimit: true,

	ActionPrivateOn:          true,
	ActionPrivateOff:         true,
	ActionPrivateStatus:      true,
	ActionPrivateSetPassword: true,
	ActionPrivateAuthorize:   true,
	ActionPrivateDeauthorize: true,

	ActionStats:     true,
	ActionBackup:    true,
	ActionBroadcast: true,
}

// needsPremiumLookup marks actions whose handler reads the caller's
// premium tier; the channel lookup for those runs before the state lock
// is taken.
var needsPremiumLookup = map[string]bool{
	ActionGacha:     true,
	ActionStatus:    true,
	ActionListItems: true,
}

// Status classifies how a request went through the gate chain.
type Status string

const (
	StatusAllowed   Status = "allowed"
	StatusFailed    Status = "failed"
	StatusDenied    Status = "denied"
	StatusThrottled Status = "throttled"
	StatusNeedsAuth Status = "needs_auth"
)

// Request is one principal action. Most fields are action-specific
// arguments and stay zero for actions that do not use them.
type Request struct {
	Actor    int64
	Username string
	ChatID   int64
	Action   string

	ReferrerID int64
	Password   string
	Text       string
	TargetID   int64
	Amount     int
	Kind       entitlement.LimitKind
	ItemID     int
	Item       *gacha.AddItemInput
	File       *gacha.FileMeta
}

// Outcome is the engine's answer. Payload is an action-specific result
// struct when Status is allowed; Err carries the domain error otherwise
// (and for failed).
type Outcome struct {
	Status  Status
	Payload any
	Err     error
}

// Messenger sends outbound texts; broadcast and referral notifications
// go through it.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Engine runs every action through the same pipeline: principal lock,
// access gate, cooldown gate, handler, commit. The state document is
// loaded once and kept in memory as the single authoritative copy; one
// state mutex serializes all mutate-save cycles, and network lookups
// happen before it is taken.
type Engine struct {
	repo     state.Repository
	gate     *access.Gate
	throttle *cooldown.Throttle
	ledger   *entitlement.Ledger
	gacha    *gacha.Service
	referral *referral.Service
	msg      Messenger

	botUsername  string
	primaryOwner int64
	now          func() time.Time

	stateMu sync.Mutex
	doc     *state.Document
	locks   *keyedMutex
}

func New(
	repo state.Repository,
	gate *access.Gate,
	throttle *cooldown.Throttle,
	ledger *entitlement.Ledger,
	gachaSvc *gacha.Service,
	referralSvc *referral.Service,
	msg Messenger,
	botUsername string,
) *Engine {
	return &Engine{
		repo:        repo,
		gate:        gate,
		throttle:    throttle,
		ledger:      ledger,
		gacha:       gachaSvc,
		referral:    referralSvc,
		msg:         msg,
		botUsername: botUsername,
		now:         time.Now,
		locks:       newKeyedMutex(),
	}
}

// SetPrimaryOwner marks the one admin that can never be removed from
// the admin set.
func (e *Engine) SetPrimaryOwner(id int64) {
	e.primaryOwner = id
}

// document returns the in-memory state, loading it from the repository
// on first use. Callers must hold stateMu. After the initial load the
// in-memory copy is authoritative; the repository is only written to.
func (e *Engine) document(ctx context.Context) (*state.Document, error) {
	if e.doc == nil {
		doc, err := e.repo.Load(ctx)
		if err != nil {
			return nil, err
		}
		e.doc = doc
	}
	return e.doc, nil
}

// Execute runs one request end to end.
func (e *Engine) Execute(ctx context.Context, req Request) Outcome {
	lock := e.locks.get(req.Actor)
	lock.Lock()
	defer lock.Unlock()

	// Channel lookups go over the network; resolve them before taking
	// the state mutex so a slow Telegram API does not stall every other
	// principal.
	var premiumByChannel, channelMember bool
	if needsPremiumLookup[req.Action] {
		premiumByChannel = e.gate.IsPremiumMember(ctx, req.Actor)
	}
	if req.Action == ActionGacha {
		channelMember = e.gate.IsChannelMember(ctx, req.Actor)
	}

	e.stateMu.Lock()

	doc, err := e.document(ctx)
	if err != nil {
		e.stateMu.Unlock()
		return Outcome{Status: StatusFailed, Err: err}
	}

	if req.Action != ActionAuth && !e.gate.IsAuthorized(doc, req.Actor) {
		e.stateMu.Unlock()
		return Outcome{Status: StatusNeedsAuth, Err: apperrors.NewNeedsAuthError()}
	}
	if ownerOnly[req.Action] && !e.gate.IsOwner(doc, req.Actor) {
		e.stateMu.Unlock()
		return Outcome{Status: StatusDenied, Err: apperrors.NewForbiddenError("admin access required")}
	}

	if window, ok := cooldownWindows[req.Action]; ok {
		if retry := e.throttle.Check(doc, req.Actor, req.Action, window); retry > 0 {
			e.stateMu.Unlock()
			return Outcome{Status: StatusThrottled, Err: apperrors.NewCooldownError(req.Action, retry)}
		}
	}

	createdUser := false
	if req.Action != ActionAuth {
		if u, ok := doc.Users[req.Actor]; !ok {
			doc.Users[req.Actor] = state.NewUser(req.Username, e.now())
			createdUser = true
		} else {
			if req.Username != "" {
				u.Username = req.Username
			}
			u.LastActive = e.now()
		}
	}

	outcome, recipients := e.dispatch(ctx, doc, req, createdUser, premiumByChannel, channelMember)

	// Cooldown timestamps are recorded on the pass above, so the
	// document is dirty even when the handler failed. A failed save is
	// logged and swallowed; the in-memory copy stays authoritative and
	// the next successful save persists everything.
	if err := e.repo.Save(ctx, doc); err != nil {
		logger.Error().Err(err).Str("action", req.Action).Int64("user_id", req.Actor).Msg("State save failed")
	}
	e.stateMu.Unlock()

	if recipients != nil {
		outcome.Payload = e.deliverBroadcast(ctx, recipients, req.Text)
	}
	return outcome
}

// dispatch runs the per-action handler with the state mutex held. The
// returned recipient list is non-nil only for broadcast, whose sends
// must not run under the lock.
func (e *Engine) dispatch(ctx context.Context, doc *state.Document, req Request, createdUser, premiumByChannel, channelMember bool) (Outcome, []int64) {
	premium := func() bool {
		return doc.IsManualPremium(req.Actor) || premiumByChannel
	}

	switch req.Action {
	case ActionStart:
		return e.handleStart(ctx, doc, req, createdUser), nil
	case ActionAuth:
		return e.handleAuth(doc, req), nil
	case ActionGacha:
		return e.handleGacha(doc, req, premium(), channelMember), nil
	case ActionStatus:
		return e.handleStatus(doc, req, premium()), nil
	case ActionHistory:
		return e.handleHistory(doc, req), nil
	case ActionInventory:
		return e.handleInventory(doc, req), nil
	case ActionLeaderboard:
		return e.handleLeaderboard(doc), nil
	case ActionListItems:
		return Outcome{Status: StatusAllowed, Payload: ItemListResult{Items: e.gacha.ListItems(doc, premium())}}, nil
	case ActionInvite:
		return e.handleInvite(doc, req), nil

	case ActionAddItem:
		return e.handleAddItem(doc, req), nil
	case ActionAddItemFile:
		return e.handleAddItemFile(doc, req), nil
	case ActionDelItem:
		return e.handleDelItem(doc, req), nil

	case ActionAddAdmin:
		return targetResult(req, doc.AddAdmin), nil
	case ActionDelAdmin:
		if req.TargetID != 0 && req.TargetID == e.primaryOwner {
			return Outcome{Status: StatusDenied, Err: apperrors.NewForbiddenError("the primary owner cannot be removed")}, nil
		}
		return targetResult(req, doc.RemoveAdmin), nil
	case ActionListAdmins:
		return Outcome{Status: StatusAllowed, Payload: IDListResult{IDs: append([]int64{}, doc.Admins...)}}, nil
	case ActionAddPremium:
		// Premium can be granted ahead of first contact; the target gets
		// a record immediately.
		if _, ok := doc.Users[req.TargetID]; !ok && req.TargetID != 0 {
			doc.Users[req.TargetID] = state.NewUser("", e.now())
		}
		return targetResult(req, doc.AddPremium), nil
	case ActionDelPremium:
		return targetResult(req, doc.RemovePremium), nil
	case ActionListPremium:
		return Outcome{Status: StatusAllowed, Payload: IDListResult{IDs: append([]int64{}, doc.PremiumUsers...)}}, nil

	case ActionAddLimit:
		return e.handleLimit(doc, req, e.ledger.AddLimit), nil
	case ActionRemoveLimit:
		return e.handleLimit(doc, req, e.ledger.RemoveLimit), nil

	case ActionPrivateOn:
		e.gate.SetEnabled(doc, true)
		return privateStatus(doc), nil
	case ActionPrivateOff:
		e.gate.SetEnabled(doc, false)
		return privateStatus(doc), nil
	case ActionPrivateStatus:
		return privateStatus(doc), nil
	case ActionPrivateSetPassword:
		if req.Password == "" {
			return Outcome{Status: StatusFailed, Err: apperrors.NewValidationError("password", "must not be empty")}, nil
		}
		e.gate.SetPassword(doc, req.Password)
		return privateStatus(doc), nil
	case ActionPrivateAuthorize:
		return targetResult(req, func(id int64) bool { return e.gate.Authorize(doc, id) }), nil
	case ActionPrivateDeauthorize:
		return targetResult(req, func(id int64) bool { return e.gate.Deauthorize(doc, id) }), nil

	case ActionStats:
		return e.handleStats(doc), nil
	case ActionBackup:
		return e.handleBackup(doc), nil
	case ActionBroadcast:
		if req.Text == "" {
			return Outcome{Status: StatusFailed, Err: apperrors.NewValidationError("text", "must not be empty")}, nil
		}
		recipients := make([]int64, 0, len(doc.Users))
		for id := range doc.Users {
			if id != req.Actor {
				recipients = append(recipients, id)
			}
		}
		return Outcome{Status: StatusAllowed}, recipients
	}

	return Outcome{Status: StatusFailed, Err: apperrors.NewValidationError("action", fmt.Sprintf("unknown action %q", req.Action))}, nil
}

func privateStatus(doc *state.Document) Outcome {
	return Outcome{Status: StatusAllowed, Payload: PrivateStatusResult{
		Enabled:         doc.PrivateMode.Enabled,
		AuthorizedUsers: len(doc.PrivateMode.AuthorizedUsers),
	}}
}

func targetResult(req Request, apply func(int64) bool) Outcome {
	if req.TargetID == 0 {
		return Outcome{Status: StatusFailed, Err: apperrors.NewValidationError("target_id", "must be a user id")}
	}
	return Outcome{Status: StatusAllowed, Payload: SetMutationResult{Target: req.TargetID, Changed: apply(req.TargetID)}}
}

func outcomeFor(payload any, err error) Outcome {
	if err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}
	return Outcome{Status: StatusAllowed, Payload: payload}
}

// StartResult reports first-contact bookkeeping.
type StartResult struct {
	Created         bool `json:"created"`
	ReferralApplied bool `json:"referral_applied"`
}

// AuthResult reports a private-mode password attempt.
type AuthResult struct {
	Granted bool `json:"granted"`
	Changed bool `json:"changed"`
}

// StatusResult is the principal's economy snapshot.
type StatusResult struct {
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	Premium    bool      `json:"premium"`
	DailyLimit int       `json:"daily_limit"`
	DailyUsed  int       `json:"daily_used"`
	BonusGacha int       `json:"bonus_gacha"`
	Available  int       `json:"available"`
	TotalPulls int       `json:"total_pulls"`
	Referrals  int       `json:"referrals"`
	JoinedAt   time.Time `json:"joined_at"`
}

// HistoryResult lists the most recent pulls, newest first.
type HistoryResult struct {
	Entries []state.InventoryItem `json:"entries"`
	Total   int                   `json:"total"`
}

// InventoryLine aggregates the copies of one item a user holds.
type InventoryLine struct {
	Name   string       `json:"name"`
	Rarity state.Rarity `json:"rarity"`
	Count  int          `json:"count"`
}

// InventoryResult carries the newest snapshots plus the aggregated
// per-item counts.
type InventoryResult struct {
	Entries []state.InventoryItem `json:"entries"`
	Lines   []InventoryLine       `json:"lines"`
	Total   int                   `json:"total"`
}

// LeaderboardEntry is one row of the pull-count ranking.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Pulls    int    `json:"pulls"`
}

type LeaderboardResult struct {
	Entries []LeaderboardEntry `json:"entries"`
}

type ItemListResult struct {
	Items []state.Item `json:"items"`
}

// InviteResult carries the deep link a user shares to earn referrals.
type InviteResult struct {
	Link      string `json:"link"`
	Referrals int    `json:"referrals"`
}

type SetMutationResult struct {
	Target  int64 `json:"target"`
	Changed bool  `json:"changed"`
}

type IDListResult struct {
	IDs []int64 `json:"ids"`
}

type LimitResult struct {
	Target int64                `json:"target"`
	Kind   entitlement.LimitKind `json:"kind"`
	Value  int                  `json:"value"`
}

type PrivateStatusResult struct {
	Enabled         bool `json:"enabled"`
	AuthorizedUsers int  `json:"authorized_users"`
}

type StatsResult struct {
	TotalUsers   int  `json:"total_users"`
	TotalPulls   int  `json:"total_pulls"`
	TotalItems   int  `json:"total_items"`
	PremiumUsers int  `json:"premium_users"`
	ActiveToday  int  `json:"active_today"`
	PrivateMode  bool `json:"private_mode"`
}

// BackupResult is a point-in-time JSON snapshot of the whole document.
type BackupResult struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

type BroadcastResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func (e *Engine) handleStart(ctx context.Context, doc *state.Document, req Request, created bool) Outcome {
	res := StartResult{Created: created}
	if req.ReferrerID != 0 {
		res.ReferralApplied = e.referral.Apply(ctx, doc, req.ReferrerID, req.Actor, req.Username)
	}
	return Outcome{Status: StatusAllowed, Payload: res}
}

func (e *Engine) handleAuth(doc *state.Document, req Request) Outcome {
	granted, changed := e.gate.Authenticate(doc, req.Actor, req.Password)
	if !granted {
		return Outcome{Status: StatusDenied, Payload: AuthResult{}, Err: apperrors.NewForbiddenError("wrong password")}
	}
	return Outcome{Status: StatusAllowed, Payload: AuthResult{Granted: true, Changed: changed}}
}

func (e *Engine) handleGacha(doc *state.Document, req Request, premium, channelMember bool) Outcome {
	if !channelMember {
		return Outcome{Status: StatusDenied, Err: apperrors.NewForbiddenError("join the main channel first")}
	}
	return outcomeFor(e.pullPayload(doc, req.Actor, premium))
}

func (e *Engine) pullPayload(doc *state.Document, userID int64, premium bool) (any, error) {
	res, err := e.gacha.Pull(doc, userID, premium)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) handleStatus(doc *state.Document, req Request, premium bool) Outcome {
	u := doc.Users[req.Actor]
	e.ledger.ResetIfNewDay(u)
	limit := e.ledger.DailyLimit(doc, premium)
	return Outcome{Status: StatusAllowed, Payload: StatusResult{
		UserID:     req.Actor,
		Username:   u.Username,
		Premium:    premium,
		DailyLimit: limit,
		DailyUsed:  u.DailyGacha,
		BonusGacha: u.BonusGacha,
		Available:  e.ledger.Available(u, limit),
		TotalPulls: u.GachaCount,
		Referrals:  len(u.Referrals),
		JoinedAt:   u.JoinedAt,
	}}
}

const historyPageSize = 10

func (e *Engine) handleHistory(doc *state.Document, req Request) Outcome {
	u := doc.Users[req.Actor]
	n := len(u.Inventory)
	entries := make([]state.InventoryItem, 0, historyPageSize)
	for i := n - 1; i >= 0 && len(entries) < historyPageSize; i-- {
		entries = append(entries, u.Inventory[i])
	}
	return Outcome{Status: StatusAllowed, Payload: HistoryResult{Entries: entries, Total: n}}
}

const inventoryPageSize = 15

func (e *Engine) handleInventory(doc *state.Document, req Request) Outcome {
	u := doc.Users[req.Actor]

	entries := make([]state.InventoryItem, 0, inventoryPageSize)
	for i := len(u.Inventory) - 1; i >= 0 && len(entries) < inventoryPageSize; i-- {
		entries = append(entries, u.Inventory[i])
	}

	byName := map[string]*InventoryLine{}
	order := []string{}
	for _, it := range u.Inventory {
		line, ok := byName[it.Name]
		if !ok {
			line = &InventoryLine{Name: it.Name, Rarity: it.Rarity}
			byName[it.Name] = line
			order = append(order, it.Name)
		}
		line.Count++
	}
	lines := make([]InventoryLine, 0, len(order))
	for _, name := range order {
		lines = append(lines, *byName[name])
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Count > lines[j].Count })

	return Outcome{Status: StatusAllowed, Payload: InventoryResult{Entries: entries, Lines: lines, Total: len(u.Inventory)}}
}

const leaderboardSize = 10

func (e *Engine) handleLeaderboard(doc *state.Document) Outcome {
	entries := make([]LeaderboardEntry, 0, len(doc.Users))
	for id, u := range doc.Users {
		if len(u.Inventory) == 0 {
			continue
		}
		entries = append(entries, LeaderboardEntry{UserID: id, Username: u.Username, Pulls: len(u.Inventory)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Pulls != entries[j].Pulls {
			return entries[i].Pulls > entries[j].Pulls
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > leaderboardSize {
		entries = entries[:leaderboardSize]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return Outcome{Status: StatusAllowed, Payload: LeaderboardResult{Entries: entries}}
}

func (e *Engine) handleInvite(doc *state.Document, req Request) Outcome {
	u := doc.Users[req.Actor]
	return Outcome{Status: StatusAllowed, Payload: InviteResult{
		Link:      fmt.Sprintf("https://t.me/%s?start=ref_%d", e.botUsername, req.Actor),
		Referrals: len(u.Referrals),
	}}
}

func (e *Engine) handleAddItem(doc *state.Document, req Request) Outcome {
	if req.Item == nil {
		return Outcome{Status: StatusFailed, Err: apperrors.NewValidationError("item", "missing item payload")}
	}
	input := *req.Item
	input.AddedBy = req.Actor
	item, err := e.gacha.AddItem(doc, input)
	return outcomeFor(item, err)
}

func (e *Engine) handleAddItemFile(doc *state.Document, req Request) Outcome {
	if req.File == nil {
		return Outcome{Status: StatusFailed, Err: apperrors.NewValidationError("file", "missing file payload")}
	}
	item := e.gacha.AddItemFromFile(doc, *req.File, req.Actor)
	return Outcome{Status: StatusAllowed, Payload: item}
}

func (e *Engine) handleDelItem(doc *state.Document, req Request) Outcome {
	item, err := e.gacha.DeleteItem(doc, req.ItemID)
	return outcomeFor(item, err)
}

func (e *Engine) handleLimit(doc *state.Document, req Request, apply func(*state.Document, int64, int, entitlement.LimitKind) (int, error)) Outcome {
	value, err := apply(doc, req.TargetID, req.Amount, req.Kind)
	if err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}
	return Outcome{Status: StatusAllowed, Payload: LimitResult{Target: req.TargetID, Kind: req.Kind, Value: value}}
}

func (e *Engine) handleStats(doc *state.Document) Outcome {
	activeSince := e.now().Add(-24 * time.Hour)
	res := StatsResult{
		TotalUsers:   len(doc.Users),
		TotalItems:   len(doc.Items),
		PremiumUsers: len(doc.PremiumUsers),
		PrivateMode:  doc.PrivateMode.Enabled,
	}
	for _, u := range doc.Users {
		res.TotalPulls += u.GachaCount
		if u.LastActive.After(activeSince) {
			res.ActiveToday++
		}
	}
	return Outcome{Status: StatusAllowed, Payload: res}
}

func (e *Engine) handleBackup(doc *state.Document) Outcome {
	data, err := json.Marshal(doc)
	if err != nil {
		return Outcome{Status: StatusFailed, Err: apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to serialize state snapshot")}
	}
	return Outcome{Status: StatusAllowed, Payload: BackupResult{
		ID:        uuid.NewString(),
		CreatedAt: e.now(),
		Data:      data,
	}}
}

// deliverBroadcast runs outside the state mutex; a broadcast to a large
// user base must not block every other request.
func (e *Engine) deliverBroadcast(ctx context.Context, recipients []int64, text string) BroadcastResult {
	var res BroadcastResult
	for _, id := range recipients {
		if e.msg == nil {
			res.Failed++
			continue
		}
		if err := e.msg.SendMessage(ctx, id, text); err != nil {
			logger.Debug().Err(err).Int64("user_id", id).Msg("Broadcast delivery failed")
			res.Failed++
			continue
		}
		res.Sent++
	}
	logger.Info().Int("sent", res.Sent).Int("failed", res.Failed).Msg("Broadcast finished")
	return res
}
