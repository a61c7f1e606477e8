package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "gacha-bot-backend/internal/common/errors"
	"gacha-bot-backend/internal/common/middleware"
	"gacha-bot-backend/internal/domain/state"
	"gacha-bot-backend/internal/engine"
	"gacha-bot-backend/internal/service/entitlement"
	"gacha-bot-backend/internal/service/gacha"
)

type handlers struct {
	engine *engine.Engine
}

func newHandlers(eng *engine.Engine) *handlers {
	return &handlers{engine: eng}
}

type successResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// run executes the request and renders the outcome. Every non-allowed
// status carries an AppError, which the middleware maps to an HTTP code.
func (h *handlers) run(c *gin.Context, req engine.Request) {
	user, _ := middleware.UserFromContext(c)
	req.Actor = user.ID
	req.Username = user.Username
	req.ChatID = user.ID

	out := h.engine.Execute(c.Request.Context(), req)
	if out.Status != engine.StatusAllowed {
		middleware.RespondError(c, out.Err)
		return
	}

	c.JSON(http.StatusOK, successResponse{
		Success:   true,
		Data:      out.Payload,
		Timestamp: time.Now(),
	})
}

type actionPayload struct {
	Action     string          `json:"action" binding:"required"`
	ReferrerID int64           `json:"referrer_id"`
	Password   string          `json:"password"`
	Text       string          `json:"text"`
	TargetID   int64           `json:"target_id"`
	Amount     int             `json:"amount"`
	Kind       string          `json:"kind"`
	ItemID     int             `json:"item_id"`
	Item       *addItemPayload `json:"item"`
}

// action is the generic entrypoint: any engine action expressed as one
// JSON body. The convenience routes cover the common cases.
func (h *handlers) action(c *gin.Context) {
	var body actionPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("body", err.Error()))
		return
	}

	req := engine.Request{
		Action:     body.Action,
		ReferrerID: body.ReferrerID,
		Password:   body.Password,
		Text:       body.Text,
		TargetID:   body.TargetID,
		Amount:     body.Amount,
		Kind:       entitlement.LimitKind(body.Kind),
		ItemID:     body.ItemID,
	}
	if body.Item != nil {
		req.Item = &gacha.AddItemInput{
			Name:        body.Item.Name,
			Rarity:      state.Rarity(body.Item.Rarity),
			Probability: body.Item.Probability,
			Type:        state.ItemType(body.Item.Type),
			PremiumOnly: body.Item.PremiumOnly,
		}
	}
	h.run(c, req)
}

type authPayload struct {
	Password string `json:"password" binding:"required"`
}

func (h *handlers) auth(c *gin.Context) {
	var body authPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("password", "required"))
		return
	}
	h.run(c, engine.Request{Action: engine.ActionAuth, Password: body.Password})
}

func (h *handlers) pull(c *gin.Context) {
	h.run(c, engine.Request{Action: engine.ActionGacha})
}

func (h *handlers) status(c *gin.Context) {
	h.run(c, engine.Request{Action: engine.ActionStatus})
}

func (h *handlers) history(c *gin.Context) {
	h.run(c, engine.Request{Action: engine.ActionHistory})
}

func (h *handlers) inventory(c *gin.Context) {
	h.run(c, engine.Request{Action: engine.ActionInventory})
}

func (h *handlers) invite(c *gin.Context) {
	h.run(c, engine.Request{Action: engine.ActionInvite})
}

func (h *handlers) leaderboard(c *gin.Context) {
	h.run(c, engine.Request{Action: engine.ActionLeaderboard})
}

func (h *handlers) listItems(c *gin.Context) {
	h.run(c, engine.Request{Action: engine.ActionListItems})
}

type addItemPayload struct {
	Name        string  `json:"name" binding:"required"`
	Rarity      string  `json:"rarity" binding:"required"`
	Probability float64 `json:"probability" binding:"required"`
	Type        string  `json:"type" binding:"required"`
	PremiumOnly bool    `json:"premium_only"`
}

func (h *handlers) addItem(c *gin.Context) {
	var body addItemPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("body", err.Error()))
		return
	}
	h.run(c, engine.Request{Action: engine.ActionAddItem, Item: &gacha.AddItemInput{
		Name:        body.Name,
		Rarity:      state.Rarity(body.Rarity),
		Probability: body.Probability,
		Type:        state.ItemType(body.Type),
		PremiumOnly: body.PremiumOnly,
	}})
}

func (h *handlers) deleteItem(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("id", "must be an integer"))
		return
	}
	h.run(c, engine.Request{Action: engine.ActionDelItem, ItemID: id})
}

func (h *handlers) targetAction(c *gin.Context, action string) {
	target, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("id", "must be an integer"))
		return
	}
	h.run(c, engine.Request{Action: action, TargetID: target})
}

func (h *handlers) listAdmins(c *gin.Context)   { h.run(c, engine.Request{Action: engine.ActionListAdmins}) }
func (h *handlers) addAdmin(c *gin.Context)     { h.targetAction(c, engine.ActionAddAdmin) }
func (h *handlers) removeAdmin(c *gin.Context)  { h.targetAction(c, engine.ActionDelAdmin) }
func (h *handlers) listPremium(c *gin.Context)  { h.run(c, engine.Request{Action: engine.ActionListPremium}) }
func (h *handlers) addPremium(c *gin.Context)   { h.targetAction(c, engine.ActionAddPremium) }
func (h *handlers) removePremium(c *gin.Context) { h.targetAction(c, engine.ActionDelPremium) }

type limitPayload struct {
	TargetID int64  `json:"target_id" binding:"required"`
	Amount   int    `json:"amount" binding:"required"`
	Kind     string `json:"kind" binding:"required"`
	Remove   bool   `json:"remove"`
}

func (h *handlers) adjustLimit(c *gin.Context) {
	var body limitPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("body", err.Error()))
		return
	}

	action := engine.ActionAddLimit
	if body.Remove {
		action = engine.ActionRemoveLimit
	}
	h.run(c, engine.Request{
		Action:   action,
		TargetID: body.TargetID,
		Amount:   body.Amount,
		Kind:     entitlement.LimitKind(body.Kind),
	})
}

type privatePayload struct {
	Enabled  *bool  `json:"enabled"`
	Password string `json:"password"`
	TargetID int64  `json:"target_id"`
	Revoke   bool   `json:"revoke"`
}

func (h *handlers) privateStatus(c *gin.Context) {
	h.run(c, engine.Request{Action: engine.ActionPrivateStatus})
}

// privateUpdate multiplexes the private-mode mutations: toggle, set a
// new password, or manage the allow list.
func (h *handlers) privateUpdate(c *gin.Context) {
	var body privatePayload
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("body", err.Error()))
		return
	}

	switch {
	case body.Enabled != nil && *body.Enabled:
		h.run(c, engine.Request{Action: engine.ActionPrivateOn})
	case body.Enabled != nil:
		h.run(c, engine.Request{Action: engine.ActionPrivateOff})
	case body.Password != "":
		h.run(c, engine.Request{Action: engine.ActionPrivateSetPassword, Password: body.Password})
	case body.TargetID != 0 && body.Revoke:
		h.run(c, engine.Request{Action: engine.ActionPrivateDeauthorize, TargetID: body.TargetID})
	case body.TargetID != 0:
		h.run(c, engine.Request{Action: engine.ActionPrivateAuthorize, TargetID: body.TargetID})
	default:
		middleware.RespondError(c, apperrors.NewValidationError("body", "nothing to update"))
	}
}

func (h *handlers) stats(c *gin.Context) {
	h.run(c, engine.Request{Action: engine.ActionStats})
}

func (h *handlers) backup(c *gin.Context) {
	h.run(c, engine.Request{Action: engine.ActionBackup})
}

type broadcastPayload struct {
	Text string `json:"text" binding:"required"`
}

func (h *handlers) broadcast(c *gin.Context) {
	var body broadcastPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("text", "required"))
		return
	}
	h.run(c, engine.Request{Action: engine.ActionBroadcast, Text: body.Text})
}
