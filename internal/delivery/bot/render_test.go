package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "gacha-bot-backend/internal/common/errors"
	"gacha-bot-backend/internal/domain/state"
	"gacha-bot-backend/internal/engine"
	"gacha-bot-backend/internal/service/gacha"
)

func TestRenderThrottledIncludesRetry(t *testing.T) {
	out := engine.Outcome{Status: engine.StatusThrottled, Err: apperrors.NewCooldownError("gacha", 12)}
	text := renderOutcome(engine.Request{Action: engine.ActionGacha}, out)
	assert.Contains(t, text, "12 seconds")
}

func TestRenderNeedsAuth(t *testing.T) {
	out := engine.Outcome{Status: engine.StatusNeedsAuth, Err: apperrors.NewNeedsAuthError()}
	text := renderOutcome(engine.Request{Action: engine.ActionGacha}, out)
	assert.Contains(t, text, "/auth")
}

func TestRenderLimitExhausted(t *testing.T) {
	out := engine.Outcome{Status: engine.StatusFailed, Err: apperrors.NewLimitExhaustedError(0)}
	text := renderOutcome(engine.Request{Action: engine.ActionGacha}, out)
	assert.Contains(t, text, "No pulls left")
	assert.Contains(t, text, "/invite")
}

func TestRenderPull(t *testing.T) {
	res := &gacha.PullResult{
		Item:       state.Item{Name: "💎 DIAMOND LEGENDARY", Rarity: state.RarityLegendary},
		Remaining:  9,
		DailyLimit: 10,
		BonusLeft:  2,
	}
	text := renderOutcome(engine.Request{Action: engine.ActionGacha}, engine.Outcome{Status: engine.StatusAllowed, Payload: res})

	assert.Contains(t, text, "💎 DIAMOND LEGENDARY")
	assert.Contains(t, text, "LEGENDARY")
	assert.Contains(t, text, "9/10")
	assert.Contains(t, text, "+2 bonus")
}

func TestRenderLeaderboardMedals(t *testing.T) {
	res := engine.LeaderboardResult{Entries: []engine.LeaderboardEntry{
		{Rank: 1, Username: "alice", Pulls: 30},
		{Rank: 2, Username: "bob", Pulls: 20},
		{Rank: 3, Username: "carol", Pulls: 10},
		{Rank: 4, Username: "dave", Pulls: 5},
	}}
	text := renderOutcome(engine.Request{Action: engine.ActionLeaderboard}, engine.Outcome{Status: engine.StatusAllowed, Payload: res})

	assert.Contains(t, text, "🥇 @alice")
	assert.Contains(t, text, "🥉 @carol")
	assert.Contains(t, text, "4. @dave")
}

func TestRenderHistoryEmpty(t *testing.T) {
	text := renderOutcome(engine.Request{Action: engine.ActionHistory},
		engine.Outcome{Status: engine.StatusAllowed, Payload: engine.HistoryResult{}})
	assert.Contains(t, text, "No pulls yet")
}

func TestRenderHistoryEntries(t *testing.T) {
	res := engine.HistoryResult{
		Total: 2,
		Entries: []state.InventoryItem{
			{Name: "⭐ GOLD RARE", Rarity: state.RarityRare, ObtainedAt: time.Date(2025, 6, 10, 15, 4, 0, 0, time.UTC)},
		},
	}
	text := renderOutcome(engine.Request{Action: engine.ActionHistory}, engine.Outcome{Status: engine.StatusAllowed, Payload: res})

	assert.Contains(t, text, "⭐ GOLD RARE")
	assert.Contains(t, text, "Jun 10 15:04")
}

func TestRenderIDListLabels(t *testing.T) {
	res := engine.IDListResult{IDs: []int64{1, 2}}

	admins := renderOutcome(engine.Request{Action: engine.ActionListAdmins}, engine.Outcome{Status: engine.StatusAllowed, Payload: res})
	assert.Contains(t, admins, "Admins")

	premium := renderOutcome(engine.Request{Action: engine.ActionListPremium}, engine.Outcome{Status: engine.StatusAllowed, Payload: res})
	assert.Contains(t, premium, "Premium users")
}

func TestRenderPrivateStatus(t *testing.T) {
	text := renderOutcome(engine.Request{Action: engine.ActionPrivateStatus},
		engine.Outcome{Status: engine.StatusAllowed, Payload: engine.PrivateStatusResult{Enabled: true, AuthorizedUsers: 3}})
	assert.Contains(t, text, "ON")
	assert.Contains(t, text, "3")
}
