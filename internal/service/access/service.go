package access

import (
	"context"
	"time"

	"gacha-bot-backend/internal/common/logger"
	"gacha-bot-backend/internal/domain/state"
)

// MembershipResolver is the single capability the gate consumes from the
// transport collaborator.
type MembershipResolver interface {
	IsChannelMember(ctx context.Context, channel string, userID int64) (bool, error)
}

// Gate resolves a principal's authorization tier and premium status.
type Gate struct {
	membership     MembershipResolver
	mainChannel    string
	premiumChannel string
	lookupTimeout  time.Duration
}

func NewGate(membership MembershipResolver, mainChannel, premiumChannel string) *Gate {
	return &Gate{
		membership:     membership,
		mainChannel:    mainChannel,
		premiumChannel: premiumChannel,
		lookupTimeout:  5 * time.Second,
	}
}

// IsOwner reports membership in the admin set.
func (g *Gate) IsOwner(doc *state.Document, userID int64) bool {
	return doc.IsAdmin(userID)
}

// IsChannelMember checks the required main channel. A missing channel
// configuration or a failed lookup degrades to "member": joining may
// never become a hard dependency on the collaborator being up.
func (g *Gate) IsChannelMember(ctx context.Context, userID int64) bool {
	if g.mainChannel == "" || g.membership == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, g.lookupTimeout)
	defer cancel()

	ok, err := g.membership.IsChannelMember(ctx, g.mainChannel, userID)
	if err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Msg("Main channel membership check failed")
		return true
	}
	return ok
}

// IsPremiumMember checks the premium channel. Failure degrades the other
// way: a principal is never treated as premium because a lookup broke.
func (g *Gate) IsPremiumMember(ctx context.Context, userID int64) bool {
	if g.premiumChannel == "" || g.membership == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, g.lookupTimeout)
	defer cancel()

	ok, err := g.membership.IsChannelMember(ctx, g.premiumChannel, userID)
	if err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Msg("Premium membership check failed")
		return false
	}
	return ok
}

// IsPremium combines the manual premium set with the channel lookup.
// Owners get no implicit premium. The document read is not synchronized
// here; callers running concurrently hold the engine's state lock.
func (g *Gate) IsPremium(ctx context.Context, doc *state.Document, userID int64) bool {
	if doc.IsManualPremium(userID) {
		return true
	}
	return g.IsPremiumMember(ctx, userID)
}

// IsAuthorized reports whether private mode permits the principal.
func (g *Gate) IsAuthorized(doc *state.Document, userID int64) bool {
	if !doc.PrivateMode.Enabled {
		return true
	}
	return doc.PrivateMode.IsAuthorizedUser(userID) || doc.IsAdmin(userID)
}

// Authorize adds the principal to the private-mode allow list; reports
// whether a change occurred.
func (g *Gate) Authorize(doc *state.Document, userID int64) bool {
	return doc.PrivateMode.Authorize(userID)
}

// Deauthorize removes the principal from the allow list.
func (g *Gate) Deauthorize(doc *state.Document, userID int64) bool {
	return doc.PrivateMode.Deauthorize(userID)
}

// SetEnabled toggles private mode.
func (g *Gate) SetEnabled(doc *state.Document, enabled bool) {
	doc.PrivateMode.Enabled = enabled
}

// SetPassword replaces the private-mode password. Already-authorized
// users keep their access.
func (g *Gate) SetPassword(doc *state.Document, password string) {
	doc.PrivateMode.Password = password
}

// Authenticate grants access when the password matches. Returns whether
// access is now granted and whether this call changed anything.
func (g *Gate) Authenticate(doc *state.Document, userID int64, password string) (granted, changed bool) {
	if password != doc.PrivateMode.Password {
		return false, false
	}
	return true, doc.PrivateMode.Authorize(userID)
}
