package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// TelegramConfig holds Bot API configuration.
type TelegramConfig struct {
	Token   string
	ChatID  int64  // target group for join request effects
	BaseURL string // overridable for tests
}

// TelegramService implements the outbound messaging capability against the
// Telegram Bot API: direct messages plus the platform-level join request
// approve/decline.
type TelegramService struct {
	config TelegramConfig
	client *http.Client
}

// NewTelegramService creates a new Telegram messenger.
func NewTelegramService(config TelegramConfig) *TelegramService {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	return &TelegramService{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendMessage sends a Markdown direct message to a user.
func (s *TelegramService) SendMessage(ctx context.Context, userID int64, text string) error {
	return s.call(ctx, "sendMessage", map[string]any{
		"chat_id":    userID,
		"text":       text,
		"parse_mode": "Markdown",
	})
}

// ApproveJoinRequest approves the user's pending join request to the
// target group.
func (s *TelegramService) ApproveJoinRequest(ctx context.Context, userID int64) error {
	return s.call(ctx, "approveChatJoinRequest", map[string]any{
		"chat_id": s.config.ChatID,
		"user_id": userID,
	})
}

// DeclineJoinRequest declines the user's pending join request to the
// target group.
func (s *TelegramService) DeclineJoinRequest(ctx context.Context, userID int64) error {
	return s.call(ctx, "declineChatJoinRequest", map[string]any{
		"chat_id": s.config.ChatID,
		"user_id": userID,
	})
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (s *TelegramService) call(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", s.config.BaseURL, s.config.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !result.OK {
		return fmt.Errorf("%s rejected: %s", method, result.Description)
	}
	return nil
}
