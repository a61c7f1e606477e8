package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gacha-bot-backend/internal/common/errors"
	"gacha-bot-backend/internal/domain/state"
)

func ledgerAt(day string) *Ledger {
	ts, _ := time.Parse(state.DateLayout, day)
	return NewWithClock(func() time.Time { return ts })
}

func TestConsume_DailyReset(t *testing.T) {
	ledger := ledgerAt("2024-05-02")
	u := state.NewUser("alice", time.Now())
	u.DailyGacha = 3
	u.LastGachaDate = "2024-05-01"

	usedBonus, err := ledger.Consume(u, 10)
	require.NoError(t, err)

	// Yesterday's counter resets before today's increment applies.
	assert.False(t, usedBonus)
	assert.Equal(t, 1, u.DailyGacha)
	assert.Equal(t, "2024-05-02", u.LastGachaDate)
}

func TestConsume_BonusBeforeDaily(t *testing.T) {
	ledger := ledgerAt("2024-05-02")
	u := state.NewUser("bob", time.Now())
	u.LastGachaDate = "2024-05-02"
	u.BonusGacha = 2

	usedBonus, err := ledger.Consume(u, 10)
	require.NoError(t, err)
	assert.True(t, usedBonus)
	assert.Equal(t, 1, u.BonusGacha)
	assert.Equal(t, 0, u.DailyGacha, "daily quota untouched while bonus remains")

	usedBonus, err = ledger.Consume(u, 10)
	require.NoError(t, err)
	assert.True(t, usedBonus)

	usedBonus, err = ledger.Consume(u, 10)
	require.NoError(t, err)
	assert.False(t, usedBonus)
	assert.Equal(t, 1, u.DailyGacha)
}

func TestConsume_BonusFundedResetDay(t *testing.T) {
	ledger := ledgerAt("2024-05-02")
	u := state.NewUser("carol", time.Now())
	u.DailyGacha = 3
	u.LastGachaDate = "2024-05-01"
	u.BonusGacha = 1

	usedBonus, err := ledger.Consume(u, 10)
	require.NoError(t, err)
	assert.True(t, usedBonus)
	assert.Equal(t, 0, u.DailyGacha, "bonus-funded pull leaves the reset counter at zero")
}

func TestConsume_Exhausted(t *testing.T) {
	ledger := ledgerAt("2024-05-02")
	u := state.NewUser("dan", time.Now())
	u.LastGachaDate = "2024-05-02"
	u.DailyGacha = 10

	_, err := ledger.Consume(u, 10)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeLimitExhausted, appErr.Code)
}

func TestAvailable(t *testing.T) {
	ledger := New()
	u := state.NewUser("eve", time.Now())
	u.DailyGacha = 4
	u.BonusGacha = 2

	assert.Equal(t, 8, ledger.Available(u, 10))
}

func TestDailyLimit(t *testing.T) {
	ledger := New()
	doc := state.DefaultDocument()
	doc.Settings.DailyLimitFree = 10
	doc.Settings.DailyLimitPremium = 15

	assert.Equal(t, 10, ledger.DailyLimit(doc, false))
	assert.Equal(t, 15, ledger.DailyLimit(doc, true))
}

func TestAddLimit_DailyClampsAtZero(t *testing.T) {
	ledger := New()
	doc := state.DefaultDocument()
	u := state.NewUser("frank", time.Now())
	u.DailyGacha = 7
	doc.Users[1] = u

	newVal, err := ledger.AddLimit(doc, 1, 5, KindDaily)
	require.NoError(t, err)
	assert.Equal(t, 2, newVal)

	newVal, err = ledger.AddLimit(doc, 1, 10, KindDaily)
	require.NoError(t, err)
	assert.Equal(t, 0, newVal, "clamped, not negative")
}

func TestAddRemoveLimit_Bonus(t *testing.T) {
	ledger := New()
	doc := state.DefaultDocument()
	doc.Users[1] = state.NewUser("gina", time.Now())

	newVal, err := ledger.AddLimit(doc, 1, 3, KindBonus)
	require.NoError(t, err)
	assert.Equal(t, 3, newVal)

	newVal, err = ledger.RemoveLimit(doc, 1, 5, KindBonus)
	require.NoError(t, err)
	assert.Equal(t, 0, newVal, "bonus clamped at zero")
}

func TestRemoveLimit_DailyIncrements(t *testing.T) {
	ledger := New()
	doc := state.DefaultDocument()
	u := state.NewUser("hank", time.Now())
	u.DailyGacha = 2
	doc.Users[1] = u

	newVal, err := ledger.RemoveLimit(doc, 1, 4, KindDaily)
	require.NoError(t, err)
	// Removing daily allowance pushes the consumed counter up without an
	// upper bound.
	assert.Equal(t, 6, newVal)
}

func TestLimit_Validation(t *testing.T) {
	ledger := New()
	doc := state.DefaultDocument()
	doc.Users[1] = state.NewUser("iris", time.Now())

	tests := []struct {
		name   string
		userID int64
		amount int
		kind   LimitKind
		code   apperrors.ErrorCode
	}{
		{"unknown user", 2, 1, KindDaily, apperrors.ErrCodeUserNotFound},
		{"invalid kind", 1, 1, LimitKind("weekly"), apperrors.ErrCodeValidation},
		{"zero amount", 1, 0, KindDaily, apperrors.ErrCodeValidation},
		{"negative amount", 1, -2, KindBonus, apperrors.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.AddLimit(doc, tt.userID, tt.amount, tt.kind)
			require.Error(t, err)
			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, appErr.Code)

			_, err = ledger.RemoveLimit(doc, tt.userID, tt.amount, tt.kind)
			require.Error(t, err)
		})
	}
}

func TestBalances_NeverNegative(t *testing.T) {
	ledger := ledgerAt("2024-05-02")
	doc := state.DefaultDocument()
	u := state.NewUser("kate", time.Now())
	doc.Users[1] = u

	// An arbitrary mix of operations must keep both balances >= 0.
	ledger.AddLimit(doc, 1, 5, KindDaily)
	ledger.RemoveLimit(doc, 1, 3, KindBonus)
	ledger.AddLimit(doc, 1, 2, KindBonus)
	ledger.RemoveLimit(doc, 1, 9, KindBonus)
	for i := 0; i < 12; i++ {
		ledger.Consume(u, 10)
	}
	ledger.AddLimit(doc, 1, 100, KindDaily)

	assert.GreaterOrEqual(t, u.DailyGacha, 0)
	assert.GreaterOrEqual(t, u.BonusGacha, 0)
}
