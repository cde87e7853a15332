package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"FallWatch.iot/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const DefaultTelegramURL = "https://api.telegram.org"

type telegramRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// TelegramChannel posts alerts to a chat through the Bot API. Failures are
// logged and reported, never retried.
type TelegramChannel struct {
	client *resty.Client
	token  string
	chatID string
	tz     *time.Location
	logger *zap.Logger
}

func NewTelegramChannel(baseURL, token, chatID string, tz *time.Location, logger *zap.Logger) *TelegramChannel {
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")

	return &TelegramChannel{
		client: client,
		token:  token,
		chatID: chatID,
		tz:     tz,
		logger: logger,
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Send(ctx context.Context, alert models.Alert) (string, error) {
	if t.token == "" || t.chatID == "" {
		t.logger.Warn("Telegram credentials missing, skipping alert")
		return "", skipped("telegram credentials missing")
	}

	var result telegramResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(telegramRequest{
			ChatID:    t.chatID,
			Text:      ChatMessage(alert, t.tz),
			ParseMode: "Markdown",
		}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + t.token + "/sendMessage")
	if err != nil {
		return "", fmt.Errorf("telegram request failed: %w", err)
	}
	if resp.IsError() || !result.OK {
		return "", fmt.Errorf("telegram returned %d: %s", resp.StatusCode(), result.Description)
	}
	return strconv.FormatInt(result.Result.MessageID, 10), nil
}
