package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDocument(t *testing.T) {
	doc := DefaultDocument()

	assert.NotNil(t, doc.Users)
	assert.Len(t, doc.Items, 4)
	assert.Equal(t, DefaultDailyLimitFree, doc.Settings.DailyLimitFree)
	assert.Equal(t, DefaultDailyLimitPremium, doc.Settings.DailyLimitPremium)
	assert.NotNil(t, doc.Cooldowns)
	assert.NotNil(t, doc.PremiumUsers)
	assert.NotNil(t, doc.PrivateMode.AuthorizedUsers)
	assert.False(t, doc.PrivateMode.Enabled)

	for i, item := range doc.Items {
		assert.Equal(t, i+1, item.ID, "seed catalog ids must be dense")
		assert.Greater(t, item.Probability, 0.0)
	}
}

func TestReconcile_PartialDocument(t *testing.T) {
	doc := &Document{
		Users: map[int64]*User{
			42: {Username: "alice", DailyGacha: -3},
		},
	}

	doc.Reconcile()

	assert.NotNil(t, doc.Items)
	assert.NotNil(t, doc.Admins)
	assert.NotNil(t, doc.Cooldowns)
	assert.NotNil(t, doc.PremiumUsers)
	assert.Equal(t, DefaultDailyLimitFree, doc.Settings.DailyLimitFree)
	assert.Equal(t, DefaultPrivatePassword, doc.PrivateMode.Password)
	assert.NotNil(t, doc.PrivateMode.AuthorizedUsers)

	u := doc.Users[42]
	assert.NotNil(t, u.Inventory)
	assert.NotNil(t, u.Referrals)
	assert.Equal(t, 0, u.DailyGacha, "negative counters are clamped")
}

func TestReconcile_KeepsLoadedValues(t *testing.T) {
	doc := DefaultDocument()
	doc.Settings.DailyLimitFree = 3
	doc.PrivateMode.Enabled = true
	doc.PrivateMode.Password = "secret"
	doc.Admins = []int64{7}

	doc.Reconcile()

	assert.Equal(t, 3, doc.Settings.DailyLimitFree)
	assert.True(t, doc.PrivateMode.Enabled)
	assert.Equal(t, "secret", doc.PrivateMode.Password)
	assert.Equal(t, []int64{7}, doc.Admins)
}

func TestDocument_JSONRoundTrip_EmptyCollections(t *testing.T) {
	doc := DefaultDocument()
	doc.Items = []Item{}
	u := NewUser("bob", time.Now())
	doc.Users[1] = u

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	// An empty items list must be serialized, not omitted, so a load does
	// not replace it with the default catalog.
	assert.Contains(t, string(raw), `"items":[]`)

	var back Document
	require.NoError(t, json.Unmarshal(raw, &back))
	back.Reconcile()

	assert.Empty(t, back.Items)
	assert.NotNil(t, back.Users[1].Inventory)
	assert.Empty(t, back.Users[1].Inventory)
}

func TestNewUser(t *testing.T) {
	now := time.Now()
	u := NewUser("carol", now)

	assert.Equal(t, "carol", u.Username)
	assert.NotNil(t, u.Inventory)
	assert.NotNil(t, u.Referrals)
	assert.Zero(t, u.GachaCount)
	assert.Zero(t, u.DailyGacha)
	assert.Zero(t, u.BonusGacha)
	assert.Empty(t, u.LastGachaDate)
	assert.Equal(t, now, u.JoinedAt)
}

func TestAdminAndPremiumSets(t *testing.T) {
	doc := DefaultDocument()

	assert.True(t, doc.AddAdmin(10))
	assert.False(t, doc.AddAdmin(10), "duplicate insert reports no change")
	assert.True(t, doc.IsAdmin(10))
	assert.True(t, doc.RemoveAdmin(10))
	assert.False(t, doc.RemoveAdmin(10), "absent removal reports no change")

	assert.True(t, doc.AddPremium(20))
	assert.True(t, doc.IsManualPremium(20))
	assert.True(t, doc.RemovePremium(20))
	assert.False(t, doc.IsManualPremium(20))
}

func TestPrivateModeSet(t *testing.T) {
	pm := &PrivateMode{AuthorizedUsers: []int64{}}

	assert.True(t, pm.Authorize(5))
	assert.False(t, pm.Authorize(5))
	assert.True(t, pm.IsAuthorizedUser(5))
	assert.True(t, pm.Deauthorize(5))
	assert.False(t, pm.Deauthorize(5))
}

func TestCooldownKey(t *testing.T) {
	assert.Equal(t, "123_gacha", CooldownKey(123, "gacha"))
}

func TestHasReferred(t *testing.T) {
	u := NewUser("dan", time.Now())
	assert.False(t, u.HasReferred(9))
	u.Referrals = append(u.Referrals, Referral{UserID: 9, Username: "eve", Date: time.Now()})
	assert.True(t, u.HasReferred(9))
}
