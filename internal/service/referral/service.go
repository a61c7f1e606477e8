package referral

import (
	"context"
	"fmt"
	"time"

	"gacha-bot-backend/internal/common/logger"
	"gacha-bot-backend/internal/domain/state"
	"gacha-bot-backend/internal/service/entitlement"
)

// Notifier delivers the best-effort reward notification. Failures never
// roll back an applied referral.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Service applies once-only referral rewards between two users.
type Service struct {
	ledger   *entitlement.Ledger
	notifier Notifier
	now      func() time.Time
}

func NewService(ledger *entitlement.Ledger, notifier Notifier) *Service {
	return &Service{ledger: ledger, notifier: notifier, now: time.Now}
}

func NewServiceWithClock(ledger *entitlement.Ledger, notifier Notifier, now func() time.Time) *Service {
	return &Service{ledger: ledger, notifier: notifier, now: now}
}

// Apply validates and applies the referral reward. Returns false without
// mutating anything when the referrer is unknown, refers themself, or
// already holds an entry for the referred user. On success the referrer
// gets one extra slot today plus one persistent bonus pull, and the
// referred user (created if absent) gets one bonus pull. All checks run
// before the first write, so the multi-field update is all-or-nothing.
func (s *Service) Apply(ctx context.Context, doc *state.Document, referrerID, newUserID int64, newUsername string) bool {
	referrer, ok := doc.Users[referrerID]
	if !ok {
		return false
	}
	if referrerID == newUserID {
		return false
	}
	if referrer.HasReferred(newUserID) {
		return false
	}

	now := s.now()
	referrer.Referrals = append(referrer.Referrals, state.Referral{
		UserID:   newUserID,
		Username: newUsername,
		Date:     now,
	})

	// Same reset-then-reduce rule as a pull consumption: roll the day
	// over first, then free one slot of today's consumed quota.
	s.ledger.ResetIfNewDay(referrer)
	if referrer.DailyGacha > 0 {
		referrer.DailyGacha--
	}
	referrer.BonusGacha++

	newUser, ok := doc.Users[newUserID]
	if !ok {
		newUser = state.NewUser(newUsername, now)
		doc.Users[newUserID] = newUser
	}
	newUser.BonusGacha++

	s.notify(ctx, referrerID, newUsername, referrer)
	return true
}

func (s *Service) notify(ctx context.Context, referrerID int64, newUsername string, referrer *state.User) {
	if s.notifier == nil {
		return
	}

	text := fmt.Sprintf(
		"🎉 *REFERRAL APPLIED!*\n\n@%s joined with your referral code.\n\n"+
			"🎁 You received +1 daily slot and +1 bonus pull.\n"+
			"🎁 Bonus balance: %dx",
		newUsername, referrer.BonusGacha,
	)

	if err := s.notifier.SendMessage(ctx, referrerID, text); err != nil {
		logger.Debug().Err(err).Int64("referrer_id", referrerID).Msg("Referral notification failed")
	}
}
