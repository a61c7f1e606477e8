package bot

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gacha-bot-backend/internal/domain/state"
	"gacha-bot-backend/internal/engine"
	"gacha-bot-backend/internal/service/entitlement"
	"gacha-bot-backend/internal/service/gacha"
)

// requestFromMessage maps a command message onto an engine request.
// Malformed arguments still produce a request; the engine rejects them
// with a validation error the user sees rendered.
func requestFromMessage(msg *tgbotapi.Message) (engine.Request, bool) {
	req := engine.Request{
		Actor:    msg.From.ID,
		Username: displayName(msg.From),
		ChatID:   msg.Chat.ID,
	}
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		req.Action = engine.ActionStart
		req.ReferrerID = parseReferrer(args)
	case "auth":
		req.Action = engine.ActionAuth
		req.Password = args
	case "gacha":
		req.Action = engine.ActionGacha
	case "status":
		req.Action = engine.ActionStatus
	case "history":
		req.Action = engine.ActionHistory
	case "inventory":
		req.Action = engine.ActionInventory
	case "leaderboard":
		req.Action = engine.ActionLeaderboard
	case "items":
		req.Action = engine.ActionListItems
	case "invite":
		req.Action = engine.ActionInvite

	case "additem":
		if file, ok := fileMetaFrom(msg.ReplyToMessage); ok && args == "" {
			req.Action = engine.ActionAddItemFile
			req.File = &file
		} else {
			req.Action = engine.ActionAddItem
			req.Item = parseItemSpec(args)
		}
	case "delitem":
		req.Action = engine.ActionDelItem
		req.ItemID, _ = strconv.Atoi(args)

	case "addadmin":
		req.Action = engine.ActionAddAdmin
		req.TargetID = parseID(args)
	case "deladmin":
		req.Action = engine.ActionDelAdmin
		req.TargetID = parseID(args)
	case "admins":
		req.Action = engine.ActionListAdmins
	case "addpremium":
		req.Action = engine.ActionAddPremium
		req.TargetID = parseID(args)
	case "delpremium":
		req.Action = engine.ActionDelPremium
		req.TargetID = parseID(args)
	case "premiumlist":
		req.Action = engine.ActionListPremium

	case "addlimit":
		req.Action = engine.ActionAddLimit
		req.TargetID, req.Amount, req.Kind = parseLimitArgs(args)
	case "dellimit":
		req.Action = engine.ActionRemoveLimit
		req.TargetID, req.Amount, req.Kind = parseLimitArgs(args)

	case "private":
		return privateRequest(req, args)

	case "stats":
		req.Action = engine.ActionStats
	case "backup":
		req.Action = engine.ActionBackup
	case "broadcast":
		req.Action = engine.ActionBroadcast
		req.Text = args

	default:
		return req, false
	}
	return req, true
}

func privateRequest(req engine.Request, args string) (engine.Request, bool) {
	sub, rest, _ := strings.Cut(args, " ")
	rest = strings.TrimSpace(rest)

	switch sub {
	case "on":
		req.Action = engine.ActionPrivateOn
	case "off":
		req.Action = engine.ActionPrivateOff
	case "status":
		req.Action = engine.ActionPrivateStatus
	case "password":
		req.Action = engine.ActionPrivateSetPassword
		req.Password = rest
	case "allow":
		req.Action = engine.ActionPrivateAuthorize
		req.TargetID = parseID(rest)
	case "revoke":
		req.Action = engine.ActionPrivateDeauthorize
		req.TargetID = parseID(rest)
	default:
		req.Action = engine.ActionPrivateStatus
	}
	return req, true
}

// parseReferrer extracts the inviter id from a "ref_<id>" deep link
// payload; anything else means no referral.
func parseReferrer(args string) int64 {
	raw, ok := strings.CutPrefix(args, "ref_")
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func parseID(args string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// parseLimitArgs reads "<user_id> <amount> [daily|bonus]"; the kind
// defaults to daily.
func parseLimitArgs(args string) (int64, int, entitlement.LimitKind) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return 0, 0, entitlement.KindDaily
	}
	target := parseID(fields[0])
	amount, _ := strconv.Atoi(fields[1])
	kind := entitlement.KindDaily
	if len(fields) >= 3 && entitlement.LimitKind(fields[2]) == entitlement.KindBonus {
		kind = entitlement.KindBonus
	}
	return target, amount, kind
}

// parseItemSpec reads "name | rarity | probability | type [| premium]".
// A nil result lets the engine report the malformed payload.
func parseItemSpec(args string) *gacha.AddItemInput {
	parts := strings.Split(args, "|")
	if len(parts) < 4 {
		return nil
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	probability, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return nil
	}

	input := &gacha.AddItemInput{
		Name:        parts[0],
		Rarity:      state.Rarity(strings.ToUpper(parts[1])),
		Probability: probability,
		Type:        state.ItemType(strings.ToLower(parts[3])),
	}
	if len(parts) >= 5 && strings.EqualFold(parts[4], "premium") {
		input.PremiumOnly = true
	}
	return input
}

// fileMetaFrom pulls attachment metadata out of a replied-to message so
// an admin can turn any media into a catalog item.
func fileMetaFrom(msg *tgbotapi.Message) (gacha.FileMeta, bool) {
	if msg == nil {
		return gacha.FileMeta{}, false
	}

	switch {
	case len(msg.Photo) > 0:
		photo := msg.Photo[len(msg.Photo)-1]
		return gacha.FileMeta{FileID: photo.FileID, FileName: "photo.jpg", Type: state.ItemTypePhoto, Size: int64(photo.FileSize)}, true
	case msg.Document != nil:
		return gacha.FileMeta{FileID: msg.Document.FileID, FileName: msg.Document.FileName, Type: state.ItemTypeDocument, Size: int64(msg.Document.FileSize)}, true
	case msg.Sticker != nil:
		return gacha.FileMeta{FileID: msg.Sticker.FileID, FileName: "sticker.webp", Type: state.ItemTypeSticker, Size: int64(msg.Sticker.FileSize)}, true
	case msg.Video != nil:
		return gacha.FileMeta{FileID: msg.Video.FileID, FileName: msg.Video.FileName, Type: state.ItemTypeVideo, Size: int64(msg.Video.FileSize)}, true
	case msg.Audio != nil:
		return gacha.FileMeta{FileID: msg.Audio.FileID, FileName: msg.Audio.FileName, Type: state.ItemTypeAudio, Size: int64(msg.Audio.FileSize)}, true
	}
	return gacha.FileMeta{}, false
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
