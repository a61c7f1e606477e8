package bot

import (
	"fmt"
	"strings"

	apperrors "gacha-bot-backend/internal/common/errors"
	"gacha-bot-backend/internal/domain/state"
	"gacha-bot-backend/internal/engine"
	"gacha-bot-backend/internal/service/gacha"
)

// renderOutcome turns an engine outcome into the Markdown reply text.
func renderOutcome(req engine.Request, out engine.Outcome) string {
	switch out.Status {
	case engine.StatusThrottled:
		if appErr, ok := apperrors.AsAppError(out.Err); ok {
			if retry, ok := appErr.Details["retry_after_sec"]; ok {
				return fmt.Sprintf("⏳ Slow down! Try again in %v seconds.", retry)
			}
		}
		return "⏳ Slow down! Try again in a moment."
	case engine.StatusNeedsAuth:
		return "🔒 This bot is in private mode. Send /auth <password> to get access."
	case engine.StatusDenied:
		return renderDenied(out)
	case engine.StatusFailed:
		return renderFailed(out)
	}
	return renderPayload(req, out.Payload)
}

func renderDenied(out engine.Outcome) string {
	appErr, ok := apperrors.AsAppError(out.Err)
	if !ok {
		return "🚫 Not allowed."
	}
	return fmt.Sprintf("🚫 %s", appErr.Message)
}

func renderFailed(out engine.Outcome) string {
	appErr, ok := apperrors.AsAppError(out.Err)
	if !ok {
		return "❌ Something went wrong, try again later."
	}
	switch appErr.Code {
	case apperrors.ErrCodeLimitExhausted:
		return "😔 *No pulls left today!*\n\nCome back tomorrow or invite friends with /invite to earn bonus pulls."
	case apperrors.ErrCodeValidation:
		return fmt.Sprintf("⚠️ %s", appErr.Message)
	case apperrors.ErrCodeUserNotFound, apperrors.ErrCodeItemNotFound:
		return fmt.Sprintf("❓ %s", appErr.Message)
	}
	return "❌ Something went wrong, try again later."
}

func renderPayload(req engine.Request, payload any) string {
	switch res := payload.(type) {
	case engine.StartResult:
		return renderStart(res)
	case engine.AuthResult:
		return "✅ Access granted! Send /gacha to start pulling."
	case *gacha.PullResult:
		return renderPull(res)
	case engine.StatusResult:
		return renderStatus(res)
	case engine.HistoryResult:
		return renderHistory(res)
	case engine.InventoryResult:
		return renderInventory(res)
	case engine.LeaderboardResult:
		return renderLeaderboard(res)
	case engine.ItemListResult:
		return renderItems(res)
	case engine.InviteResult:
		return fmt.Sprintf("🤝 *Invite friends, earn pulls!*\n\nYour link:\n%s\n\nReferrals so far: %d", res.Link, res.Referrals)
	case engine.SetMutationResult:
		if res.Changed {
			return fmt.Sprintf("✅ Done: `%d` updated.", res.Target)
		}
		return fmt.Sprintf("ℹ️ No change for `%d`.", res.Target)
	case engine.IDListResult:
		return renderIDList(req.Action, res)
	case engine.LimitResult:
		return fmt.Sprintf("✅ Limit updated for `%d`: %s is now %d.", res.Target, res.Kind, res.Value)
	case engine.PrivateStatusResult:
		mode := "OFF"
		if res.Enabled {
			mode = "ON"
		}
		return fmt.Sprintf("🔐 Private mode: *%s*\nAuthorized users: %d", mode, res.AuthorizedUsers)
	case engine.StatsResult:
		return renderStats(res)
	case engine.BroadcastResult:
		return fmt.Sprintf("📣 Broadcast finished: %d sent, %d failed.", res.Sent, res.Failed)
	case state.Item:
		return fmt.Sprintf("✅ Item #%d added: %s (%s, weight %.0f)", res.ID, res.Name, res.Rarity, res.Probability)
	}
	return ""
}

func renderStart(res engine.StartResult) string {
	var sb strings.Builder
	sb.WriteString("🎰 *Welcome to the Gacha Bot!*\n\n")
	sb.WriteString("Send /gacha to pull, /status to check your limits, /invite to earn bonus pulls.")
	if res.ReferralApplied {
		sb.WriteString("\n\n🎁 Referral bonus applied! You start with an extra pull.")
	}
	return sb.String()
}

func renderPull(res *gacha.PullResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎉 *You got:* %s\n", res.Item.Name)
	fmt.Fprintf(&sb, "✨ Rarity: *%s*\n\n", res.Item.Rarity)
	if res.UsedBonus {
		sb.WriteString("🎁 Bonus pull used.\n")
	}
	fmt.Fprintf(&sb, "📊 Today: %d/%d left", res.Remaining, res.DailyLimit)
	if res.BonusLeft > 0 {
		fmt.Fprintf(&sb, " (+%d bonus)", res.BonusLeft)
	}
	return sb.String()
}

func renderStatus(res engine.StatusResult) string {
	tier := "Free"
	if res.Premium {
		tier = "⭐ Premium"
	}
	return fmt.Sprintf(
		"👤 *@%s*\n\nTier: %s\nToday: %d/%d used\nBonus pulls: %d\nAvailable now: %d\nTotal pulls: %d\nReferrals: %d",
		res.Username, tier, res.DailyUsed, res.DailyLimit, res.BonusGacha, res.Available, res.TotalPulls, res.Referrals,
	)
}

func renderHistory(res engine.HistoryResult) string {
	if res.Total == 0 {
		return "📜 No pulls yet. Send /gacha to start!"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 *Last pulls* (%d total):\n\n", res.Total)
	for _, e := range res.Entries {
		fmt.Fprintf(&sb, "• %s [%s] — %s\n", e.Name, e.Rarity, e.ObtainedAt.Format("Jan 2 15:04"))
	}
	return sb.String()
}

func renderInventory(res engine.InventoryResult) string {
	if res.Total == 0 {
		return "🎒 Your inventory is empty. Send /gacha to start!"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎒 *Inventory* (%d items):\n\n", res.Total)
	for _, line := range res.Lines {
		fmt.Fprintf(&sb, "• %s [%s] ×%d\n", line.Name, line.Rarity, line.Count)
	}
	return sb.String()
}

var rankMedals = []string{"🥇", "🥈", "🥉"}

func renderLeaderboard(res engine.LeaderboardResult) string {
	if len(res.Entries) == 0 {
		return "🏆 Nobody has pulled yet. Be the first!"
	}
	var sb strings.Builder
	sb.WriteString("🏆 *Top pullers:*\n\n")
	for _, e := range res.Entries {
		medal := fmt.Sprintf("%d.", e.Rank)
		if e.Rank <= len(rankMedals) {
			medal = rankMedals[e.Rank-1]
		}
		fmt.Fprintf(&sb, "%s @%s — %d pulls\n", medal, e.Username, e.Pulls)
	}
	return sb.String()
}

func renderItems(res engine.ItemListResult) string {
	if len(res.Items) == 0 {
		return "📦 The catalog is empty."
	}
	var sb strings.Builder
	sb.WriteString("📦 *Catalog:*\n\n")
	for _, item := range res.Items {
		fmt.Fprintf(&sb, "#%d %s [%s] w=%.0f", item.ID, item.Name, item.Rarity, item.Probability)
		if item.PremiumOnly {
			sb.WriteString(" ⭐")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderIDList(action string, res engine.IDListResult) string {
	label := "👮 Admins"
	if action == engine.ActionListPremium {
		label = "⭐ Premium users"
	}
	if len(res.IDs) == 0 {
		return fmt.Sprintf("%s: none", label)
	}
	ids := make([]string, 0, len(res.IDs))
	for _, id := range res.IDs {
		ids = append(ids, fmt.Sprintf("`%d`", id))
	}
	return fmt.Sprintf("%s: %s", label, strings.Join(ids, ", "))
}

func renderStats(res engine.StatsResult) string {
	private := "off"
	if res.PrivateMode {
		private = "on"
	}
	return fmt.Sprintf(
		"📊 *Bot stats*\n\nUsers: %d\nTotal pulls: %d\nCatalog items: %d\nPremium users: %d\nActive today: %d\nPrivate mode: %s",
		res.TotalUsers, res.TotalPulls, res.TotalItems, res.PremiumUsers, res.ActiveToday, private,
	)
}
