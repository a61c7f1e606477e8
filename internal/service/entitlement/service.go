package entitlement

import (
	"time"

	apperrors "gacha-bot-backend/internal/common/errors"
	"gacha-bot-backend/internal/domain/state"
)

// LimitKind selects which balance an admin adjustment targets.
type LimitKind string

const (
	KindDaily LimitKind = "daily"
	KindBonus LimitKind = "bonus"
)

// Ledger owns the daily-quota and bonus-balance rules. All mutations
// keep dailyGacha and bonusGacha non-negative.
type Ledger struct {
	now func() time.Time
}

func New() *Ledger {
	return &Ledger{now: time.Now}
}

func NewWithClock(now func() time.Time) *Ledger {
	return &Ledger{now: now}
}

func (l *Ledger) today() string {
	return l.now().Format(state.DateLayout)
}

// ResetIfNewDay applies the lazy daily reset: when the stored calendar
// date differs from today, the consumed counter starts over. There is no
// background timer; this runs at read time on a pull attempt.
func (l *Ledger) ResetIfNewDay(u *state.User) {
	today := l.today()
	if u.LastGachaDate != today {
		u.DailyGacha = 0
		u.LastGachaDate = today
	}
}

// DailyLimit returns the tier-dependent daily cap.
func (l *Ledger) DailyLimit(doc *state.Document, premium bool) int {
	if premium {
		return doc.Settings.DailyLimitPremium
	}
	return doc.Settings.DailyLimitFree
}

// Available is the remaining entitlement: unused daily quota plus the
// bonus balance.
func (l *Ledger) Available(u *state.User, dailyLimit int) int {
	return (dailyLimit - u.DailyGacha) + u.BonusGacha
}

// Consume reserves one pull after applying the daily reset. Bonus pulls
// are spent before daily quota; the ordering is observable in status
// displays and must not change. Returns whether the pull was
// bonus-funded.
func (l *Ledger) Consume(u *state.User, dailyLimit int) (usedBonus bool, err error) {
	l.ResetIfNewDay(u)

	available := l.Available(u, dailyLimit)
	if available <= 0 {
		return false, apperrors.NewLimitExhaustedError(available)
	}

	if u.BonusGacha > 0 {
		u.BonusGacha--
		return true, nil
	}
	u.DailyGacha++
	return false, nil
}

// AddLimit grants allowance. For the daily kind it decreases the
// consumed counter (more pulls left today), clamped at zero; repeated
// grants have no configured ceiling, so remaining allowance may exceed
// the nominal daily cap. For the bonus kind it increments the balance.
func (l *Ledger) AddLimit(doc *state.Document, userID int64, amount int, kind LimitKind) (int, error) {
	u, err := l.target(doc, userID, amount, kind)
	if err != nil {
		return 0, err
	}

	switch kind {
	case KindDaily:
		u.DailyGacha = max(0, u.DailyGacha-amount)
		return u.DailyGacha, nil
	default:
		u.BonusGacha += amount
		return u.BonusGacha, nil
	}
}

// RemoveLimit revokes allowance: daily kind pushes the consumed counter
// up, bonus kind decrements the balance clamped at zero.
func (l *Ledger) RemoveLimit(doc *state.Document, userID int64, amount int, kind LimitKind) (int, error) {
	u, err := l.target(doc, userID, amount, kind)
	if err != nil {
		return 0, err
	}

	switch kind {
	case KindDaily:
		u.DailyGacha += amount
		return u.DailyGacha, nil
	default:
		u.BonusGacha = max(0, u.BonusGacha-amount)
		return u.BonusGacha, nil
	}
}

func (l *Ledger) target(doc *state.Document, userID int64, amount int, kind LimitKind) (*state.User, error) {
	if kind != KindDaily && kind != KindBonus {
		return nil, apperrors.NewValidationError("kind", "must be 'daily' or 'bonus'")
	}
	if amount <= 0 {
		return nil, apperrors.NewValidationError("amount", "must be a positive integer")
	}
	u, ok := doc.Users[userID]
	if !ok {
		return nil, apperrors.NewUserNotFoundError(userID)
	}
	return u, nil
}
