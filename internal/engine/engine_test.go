package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gacha-bot-backend/internal/common/errors"
	"gacha-bot-backend/internal/domain/state"
	"gacha-bot-backend/internal/repository/memory"
	"gacha-bot-backend/internal/service/access"
	"gacha-bot-backend/internal/service/cooldown"
	"gacha-bot-backend/internal/service/entitlement"
	"gacha-bot-backend/internal/service/gacha"
	"gacha-bot-backend/internal/service/referral"
)

type recordingMessenger struct {
	mu   sync.Mutex
	sent []int64
	err  error
}

func (m *recordingMessenger) SendMessage(_ context.Context, chatID int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, chatID)
	return m.err
}

func newTestEngine(repo state.Repository) *Engine {
	ledger := entitlement.New()
	return New(
		repo,
		access.NewGate(nil, "", ""),
		cooldown.New(),
		ledger,
		gacha.NewService(ledger),
		referral.NewService(ledger, nil),
		&recordingMessenger{},
		"gacha_test_bot",
	)
}

func seed(t *testing.T, repo *memory.StateRepository, mutate func(doc *state.Document)) {
	t.Helper()
	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	mutate(doc)
	require.NoError(t, repo.Save(context.Background(), doc))
}

func TestExecuteStartCreatesUser(t *testing.T) {
	repo := memory.NewStateRepository()
	e := newTestEngine(repo)

	out := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionStart})
	require.Equal(t, StatusAllowed, out.Status)
	res := out.Payload.(StartResult)
	assert.True(t, res.Created)
	assert.False(t, res.ReferralApplied)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	u, ok := doc.Users[100]
	require.True(t, ok)
	assert.Equal(t, "alice", u.Username)
}

func TestExecuteStartWithReferral(t *testing.T) {
	repo := memory.NewStateRepository()
	e := newTestEngine(repo)

	require.Equal(t, StatusAllowed, e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionStart}).Status)

	out := e.Execute(context.Background(), Request{Actor: 200, Username: "bob", Action: ActionStart, ReferrerID: 100})
	require.Equal(t, StatusAllowed, out.Status)
	assert.True(t, out.Payload.(StartResult).ReferralApplied)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Users[100].BonusGacha)
	assert.Equal(t, 1, doc.Users[200].BonusGacha)
}

func TestExecuteThrottlesRepeatedAction(t *testing.T) {
	repo := memory.NewStateRepository()
	e := newTestEngine(repo)

	first := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionGacha})
	require.Equal(t, StatusAllowed, first.Status)

	second := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionGacha})
	require.Equal(t, StatusThrottled, second.Status)

	appErr, ok := apperrors.AsAppError(second.Err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeCooldown, appErr.Code)
}

func TestExecuteGachaCommitsPull(t *testing.T) {
	repo := memory.NewStateRepository()
	e := newTestEngine(repo)

	out := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionGacha})
	require.Equal(t, StatusAllowed, out.Status)

	res := out.Payload.(*gacha.PullResult)
	assert.NotEmpty(t, res.Item.Name)
	assert.Equal(t, 1, res.TotalPulls)
	assert.Equal(t, state.DefaultDailyLimitFree-1, res.Remaining)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	u := doc.Users[100]
	assert.Equal(t, 1, u.GachaCount)
	assert.Equal(t, 1, u.DailyGacha)
	require.Len(t, u.Inventory, 1)
}

func TestExecuteDeniesOwnerActionForRegularUser(t *testing.T) {
	repo := memory.NewStateRepository()
	e := newTestEngine(repo)

	out := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionStats})
	require.Equal(t, StatusDenied, out.Status)

	appErr, ok := apperrors.AsAppError(out.Err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeForbidden, appErr.Code)
}

func TestExecuteOwnerActions(t *testing.T) {
	repo := memory.NewStateRepository()
	seed(t, repo, func(doc *state.Document) {
		doc.AddAdmin(1)
	})
	e := newTestEngine(repo)

	out := e.Execute(context.Background(), Request{Actor: 1, Username: "owner", Action: ActionAddAdmin, TargetID: 2})
	require.Equal(t, StatusAllowed, out.Status)
	assert.True(t, out.Payload.(SetMutationResult).Changed)

	out = e.Execute(context.Background(), Request{Actor: 1, Username: "owner", Action: ActionListAdmins})
	require.Equal(t, StatusAllowed, out.Status)
	assert.ElementsMatch(t, []int64{1, 2}, out.Payload.(IDListResult).IDs)

	out = e.Execute(context.Background(), Request{Actor: 1, Username: "owner", Action: ActionAddLimit, TargetID: 1, Amount: 3, Kind: entitlement.KindBonus})
	require.Equal(t, StatusAllowed, out.Status)
	assert.Equal(t, 3, out.Payload.(LimitResult).Value)
}

func TestExecuteNeedsAuthUnderPrivateMode(t *testing.T) {
	repo := memory.NewStateRepository()
	seed(t, repo, func(doc *state.Document) {
		doc.PrivateMode.Enabled = true
		doc.PrivateMode.Password = "sesame"
	})
	e := newTestEngine(repo)

	out := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionGacha})
	require.Equal(t, StatusNeedsAuth, out.Status)

	// A denied request must not create the user.
	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	_, ok := doc.Users[100]
	assert.False(t, ok)

	out = e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionAuth, Password: "wrong"})
	require.Equal(t, StatusDenied, out.Status)

	out = e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionAuth, Password: "sesame"})
	require.Equal(t, StatusAllowed, out.Status)
	assert.True(t, out.Payload.(AuthResult).Granted)

	out = e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionGacha})
	assert.Equal(t, StatusAllowed, out.Status)
}

func TestExecutePrivateModeToggle(t *testing.T) {
	repo := memory.NewStateRepository()
	seed(t, repo, func(doc *state.Document) {
		doc.AddAdmin(1)
	})
	e := newTestEngine(repo)

	out := e.Execute(context.Background(), Request{Actor: 1, Username: "owner", Action: ActionPrivateOn})
	require.Equal(t, StatusAllowed, out.Status)
	assert.True(t, out.Payload.(PrivateStatusResult).Enabled)

	// Admins bypass the private gate.
	out = e.Execute(context.Background(), Request{Actor: 1, Username: "owner", Action: ActionPrivateStatus})
	require.Equal(t, StatusAllowed, out.Status)

	out = e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionStart})
	assert.Equal(t, StatusNeedsAuth, out.Status)
}

func TestExecuteUnknownAction(t *testing.T) {
	repo := memory.NewStateRepository()
	e := newTestEngine(repo)

	out := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: "selfdestruct"})
	require.Equal(t, StatusFailed, out.Status)

	appErr, ok := apperrors.AsAppError(out.Err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidation, appErr.Code)
}

func TestExecuteSaveFailureSwallowed(t *testing.T) {
	repo := memory.NewStateRepository()
	repo.SaveErr = errors.New("disk full")
	e := newTestEngine(repo)

	out := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionStart})
	assert.Equal(t, StatusAllowed, out.Status)
	assert.NoError(t, out.Err)
	assert.Equal(t, 1, repo.Saves)
}

func TestExecuteSaveFailureKeepsStateAuthoritative(t *testing.T) {
	repo := memory.NewStateRepository()
	e := newTestEngine(repo)

	repo.SaveErr = errors.New("redis: connection refused")
	first := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionGacha})
	require.Equal(t, StatusAllowed, first.Status)

	// The repository recovers, but the pull and its cooldown must not
	// have been lost with the failed save.
	repo.SaveErr = nil
	second := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionGacha})
	require.Equal(t, StatusThrottled, second.Status)

	status := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionStatus})
	require.Equal(t, StatusAllowed, status.Status)
	st := status.Payload.(StatusResult)
	assert.Equal(t, 1, st.TotalPulls)
	assert.Equal(t, 1, st.DailyUsed)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Users[100].GachaCount)
	require.Len(t, doc.Users[100].Inventory, 1)
}

func TestExecuteLoadFailureFailsRequest(t *testing.T) {
	repo := memory.NewStateRepository()
	repo.LoadErr = errors.New("redis: connection refused")
	e := newTestEngine(repo)

	out := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionStart})
	require.Equal(t, StatusFailed, out.Status)
	assert.Error(t, out.Err)

	// Once the repository recovers the engine loads the real document
	// instead of having replaced it with a default one.
	repo.LoadErr = nil
	out = e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionStart})
	assert.Equal(t, StatusAllowed, out.Status)
}

func TestExecuteTouchesLastActiveOnAcceptedAction(t *testing.T) {
	repo := memory.NewStateRepository()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	seed(t, repo, func(doc *state.Document) {
		u := state.NewUser("alice", now.Add(-48*time.Hour))
		doc.Users[100] = u
	})
	e := newTestEngine(repo)
	e.now = func() time.Time { return now }

	out := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionStatus})
	require.Equal(t, StatusAllowed, out.Status)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, doc.Users[100].LastActive.Equal(now))
}

func TestExecuteStatsCountsRollingDayActive(t *testing.T) {
	repo := memory.NewStateRepository()
	now := time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC)
	seed(t, repo, func(doc *state.Document) {
		doc.AddAdmin(1)
		// Active six hours ago, on the previous calendar date. The
		// rolling window still counts it.
		doc.Users[100] = state.NewUser("alice", now.Add(-6*time.Hour))
		doc.Users[200] = state.NewUser("bob", now.Add(-38*time.Hour))
	})
	e := newTestEngine(repo)
	e.now = func() time.Time { return now }

	out := e.Execute(context.Background(), Request{Actor: 1, Username: "owner", Action: ActionStats})
	require.Equal(t, StatusAllowed, out.Status)

	res := out.Payload.(StatsResult)
	assert.Equal(t, 3, res.TotalUsers)
	// alice plus the owner, whose record was just created; bob is past
	// the window.
	assert.Equal(t, 2, res.ActiveToday)
}

func TestExecuteBroadcast(t *testing.T) {
	repo := memory.NewStateRepository()
	now := time.Now()
	seed(t, repo, func(doc *state.Document) {
		doc.AddAdmin(1)
		doc.Users[1] = state.NewUser("owner", now)
		doc.Users[100] = state.NewUser("alice", now)
		doc.Users[200] = state.NewUser("bob", now)
	})

	msg := &recordingMessenger{}
	ledger := entitlement.New()
	e := New(repo, access.NewGate(nil, "", ""), cooldown.New(), ledger,
		gacha.NewService(ledger), referral.NewService(ledger, nil), msg, "gacha_test_bot")

	out := e.Execute(context.Background(), Request{Actor: 1, Username: "owner", Action: ActionBroadcast, Text: "hello"})
	require.Equal(t, StatusAllowed, out.Status)

	res := out.Payload.(BroadcastResult)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 0, res.Failed)
	assert.ElementsMatch(t, []int64{100, 200}, msg.sent)
}

func TestExecuteBackupSnapshot(t *testing.T) {
	repo := memory.NewStateRepository()
	seed(t, repo, func(doc *state.Document) {
		doc.AddAdmin(1)
	})
	e := newTestEngine(repo)

	out := e.Execute(context.Background(), Request{Actor: 1, Username: "owner", Action: ActionBackup})
	require.Equal(t, StatusAllowed, out.Status)

	res := out.Payload.(BackupResult)
	assert.NotEmpty(t, res.ID)
	assert.Contains(t, string(res.Data), `"items"`)
}

func TestExecuteStatusAndReadViews(t *testing.T) {
	repo := memory.NewStateRepository()
	e := newTestEngine(repo)

	require.Equal(t, StatusAllowed, e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionGacha}).Status)

	out := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionStatus})
	require.Equal(t, StatusAllowed, out.Status)
	st := out.Payload.(StatusResult)
	assert.Equal(t, state.DefaultDailyLimitFree, st.DailyLimit)
	assert.Equal(t, 1, st.DailyUsed)
	assert.Equal(t, 1, st.TotalPulls)
	assert.False(t, st.Premium)

	out = e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionHistory})
	require.Equal(t, StatusAllowed, out.Status)
	hist := out.Payload.(HistoryResult)
	assert.Equal(t, 1, hist.Total)
	require.Len(t, hist.Entries, 1)

	out = e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionInventory})
	require.Equal(t, StatusAllowed, out.Status)
	inv := out.Payload.(InventoryResult)
	assert.Equal(t, 1, inv.Total)

	out = e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionLeaderboard})
	require.Equal(t, StatusAllowed, out.Status)
	lb := out.Payload.(LeaderboardResult)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, 1, lb.Entries[0].Rank)
	assert.Equal(t, int64(100), lb.Entries[0].UserID)

	out = e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionInvite})
	require.Equal(t, StatusAllowed, out.Status)
	assert.Equal(t, "https://t.me/gacha_test_bot?start=ref_100", out.Payload.(InviteResult).Link)
}

func TestExecuteConcurrentSamePrincipalNoDoubleSpend(t *testing.T) {
	repo := memory.NewStateRepository()
	seed(t, repo, func(doc *state.Document) {
		u := state.NewUser("alice", time.Now())
		u.BonusGacha = 1
		doc.Users[100] = u
	})
	e := newTestEngine(repo)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]Outcome, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionGacha})
		}(i)
	}
	wg.Wait()

	allowed := 0
	for _, out := range results {
		if out.Status == StatusAllowed {
			allowed++
		}
	}
	// The per-principal lock serializes the burst, so exactly one pull
	// lands and the rest hit the cooldown.
	assert.Equal(t, 1, allowed)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Users[100].GachaCount)
}

func TestExecutePrimaryOwnerCannotBeRemoved(t *testing.T) {
	repo := memory.NewStateRepository()
	seed(t, repo, func(doc *state.Document) {
		doc.AddAdmin(1)
		doc.AddAdmin(2)
	})
	e := newTestEngine(repo)
	e.SetPrimaryOwner(1)

	out := e.Execute(context.Background(), Request{Actor: 2, Username: "second", Action: ActionDelAdmin, TargetID: 1})
	require.Equal(t, StatusDenied, out.Status)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, doc.IsAdmin(1))

	out = e.Execute(context.Background(), Request{Actor: 1, Username: "owner", Action: ActionDelAdmin, TargetID: 2})
	assert.Equal(t, StatusAllowed, out.Status)
}

func TestExecuteAddPremiumCreatesRecord(t *testing.T) {
	repo := memory.NewStateRepository()
	seed(t, repo, func(doc *state.Document) {
		doc.AddAdmin(1)
	})
	e := newTestEngine(repo)

	out := e.Execute(context.Background(), Request{Actor: 1, Username: "owner", Action: ActionAddPremium, TargetID: 900})
	require.Equal(t, StatusAllowed, out.Status)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, doc.IsManualPremium(900))
	_, ok := doc.Users[900]
	assert.True(t, ok)
}

func TestExecuteInventoryPagesNewestFifteen(t *testing.T) {
	repo := memory.NewStateRepository()
	now := time.Now()
	seed(t, repo, func(doc *state.Document) {
		u := state.NewUser("alice", now)
		for i := 0; i < 20; i++ {
			u.Inventory = append(u.Inventory, state.InventoryItem{
				ItemID: i + 1,
				Name:   "💧 WATER COMMON",
				Rarity: state.RarityCommon,
			})
		}
		doc.Users[100] = u
	})
	e := newTestEngine(repo)

	out := e.Execute(context.Background(), Request{Actor: 100, Username: "alice", Action: ActionInventory})
	require.Equal(t, StatusAllowed, out.Status)

	inv := out.Payload.(InventoryResult)
	assert.Equal(t, 20, inv.Total)
	require.Len(t, inv.Entries, 15)
	assert.Equal(t, 20, inv.Entries[0].ItemID)
	assert.Equal(t, 6, inv.Entries[14].ItemID)
	require.Len(t, inv.Lines, 1)
	assert.Equal(t, 20, inv.Lines[0].Count)
}

func TestExecuteItemAdministration(t *testing.T) {
	repo := memory.NewStateRepository()
	seed(t, repo, func(doc *state.Document) {
		doc.AddAdmin(1)
	})
	e := newTestEngine(repo)

	out := e.Execute(context.Background(), Request{Actor: 1, Username: "owner", Action: ActionAddItem, Item: &gacha.AddItemInput{
		Name:        "🌈 PRISM EPIC",
		Rarity:      state.RarityEpic,
		Probability: 5,
		Type:        state.ItemTypeText,
	}})
	require.Equal(t, StatusAllowed, out.Status)
	added := out.Payload.(state.Item)
	assert.Equal(t, 5, added.ID)
	assert.Equal(t, int64(1), added.AddedBy)

	out = e.Execute(context.Background(), Request{Actor: 1, Username: "owner", Action: ActionDelItem, ItemID: 1})
	require.Equal(t, StatusAllowed, out.Status)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Items, 4)
	for i, item := range doc.Items {
		assert.Equal(t, i+1, item.ID)
	}
}
