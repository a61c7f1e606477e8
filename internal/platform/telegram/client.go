package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gacha-bot-backend/internal/common/logger"
)

// Client is a thin Bot API client for the calls the engine consumes from
// the transport: membership resolution, fire-and-forget delivery and
// file reference resolution.
type Client struct {
	httpClient *http.Client
	token      string
}

// ChatMember carries the membership status of a user in a chat.
type ChatMember struct {
	Status string `json:"status"`
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		token: token,
	}
}

func (c *Client) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/%s", c.token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = params.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !parsed.Ok {
		return nil, fmt.Errorf("telegram api error: %s", parsed.Description)
	}

	return parsed.Result, nil
}

// GetChatMember fetches the membership record of userID in the chat.
func (c *Client) GetChatMember(ctx context.Context, chatRef string, userID int64) (*ChatMember, error) {
	params := url.Values{}
	params.Set("chat_id", chatRef)
	params.Set("user_id", strconv.FormatInt(userID, 10))

	result, err := c.call(ctx, "getChatMember", params)
	if err != nil {
		return nil, err
	}

	member := &ChatMember{}
	if err := json.Unmarshal(result, member); err != nil {
		return nil, fmt.Errorf("failed to parse chat member: %w", err)
	}
	return member, nil
}

// IsChannelMember reports whether userID belongs to the channel with an
// active status. The caller decides the safe default on error.
func (c *Client) IsChannelMember(ctx context.Context, channel string, userID int64) (bool, error) {
	member, err := c.GetChatMember(ctx, channel, userID)
	if err != nil {
		return false, err
	}

	switch member.Status {
	case "member", "administrator", "creator":
		return true, nil
	}
	return false, nil
}

// SendMessage delivers a markdown text message. Delivery is best-effort
// from the engine's perspective; callers log and ignore failures.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	params.Set("parse_mode", "Markdown")

	if _, err := c.call(ctx, "sendMessage", params); err != nil {
		logger.Debug().Err(err).Int64("chat_id", chatID).Msg("sendMessage failed")
		return err
	}
	return nil
}

// GetFileLink resolves a file_id to a download URL.
func (c *Client) GetFileLink(ctx context.Context, fileID string) (string, error) {
	params := url.Values{}
	params.Set("file_id", fileID)

	result, err := c.call(ctx, "getFile", params)
	if err != nil {
		return "", err
	}

	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(result, &file); err != nil {
		return "", fmt.Errorf("failed to parse file info: %w", err)
	}
	return fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", c.token, file.FilePath), nil
}

// DownloadFile resolves and fetches the bytes behind a file reference.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	link, err := c.GetFileLink(ctx, fileID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
