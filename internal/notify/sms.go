package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"FallWatch.iot/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const DefaultSMSURL = "https://www.fast2sms.com/dev/bulkV2"

type smsRequest struct {
	Route    string `json:"route"`
	Message  string `json:"message"`
	Language string `json:"language"`
	Flash    int    `json:"flash"`
	Numbers  string `json:"numbers"`
}

type smsResponse struct {
	Return    bool            `json:"return"`
	RequestID string          `json:"request_id"`
	Message   json.RawMessage `json:"message"`
}

// SMSChannel texts every active session that carries a phone number. One
// recipient's failure does not stop delivery to the rest.
type SMSChannel struct {
	client    *resty.Client
	url       string
	apiKey    string
	directory Directory
	tz        *time.Location
	logger    *zap.Logger
}

func NewSMSChannel(url, apiKey string, directory Directory, tz *time.Location, logger *zap.Logger) *SMSChannel {
	if url == "" {
		url = DefaultSMSURL
	}
	return &SMSChannel{
		client:    resty.New().SetTimeout(10 * time.Second),
		url:       url,
		apiKey:    apiKey,
		directory: directory,
		tz:        tz,
		logger:    logger,
	}
}

func (s *SMSChannel) Name() string { return "sms" }

func (s *SMSChannel) Send(ctx context.Context, alert models.Alert) (string, error) {
	if s.apiKey == "" {
		return "", skipped("sms api key missing")
	}

	recipients, err := s.directory.Recipients(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve sms recipients: %w", err)
	}
	if len(recipients) == 0 {
		s.logger.Warn("No logged-in users with phone numbers found for SMS")
		return "", skipped("no recipients")
	}

	text := SMSMessage(alert, s.tz)
	refs := make([]string, len(recipients))
	errs := make([]error, len(recipients))

	// Recipients are sent concurrently so a hanging number cannot use up the
	// deadline of the ones after it.
	var wg sync.WaitGroup
	for i, r := range recipients {
		wg.Add(1)
		go func(i int, r models.Recipient) {
			defer wg.Done()
			ref, err := s.sendOne(ctx, r.Phone, text)
			if err != nil {
				s.logger.Error("Failed to send SMS", zap.String("name", r.Name), zap.String("phone", r.Phone), zap.Error(err))
				errs[i] = fmt.Errorf("%s: %w", r.Phone, err)
				return
			}
			s.logger.Info("SMS sent", zap.String("name", r.Name), zap.String("phone", r.Phone))
			refs[i] = ref
		}(i, r)
	}
	wg.Wait()

	var sent []string
	for _, ref := range refs {
		if ref != "" {
			sent = append(sent, ref)
		}
	}
	return strings.Join(sent, ","), multierr.Combine(errs...)
}

func (s *SMSChannel) sendOne(ctx context.Context, phone, text string) (string, error) {
	var result smsResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("authorization", s.apiKey).
		SetBody(smsRequest{
			Route:    "q",
			Message:  text,
			Language: "english",
			Flash:    0,
			Numbers:  phone,
		}).
		SetResult(&result).
		SetError(&result).
		Post(s.url)
	if err != nil {
		return "", fmt.Errorf("sms request failed: %w", err)
	}
	if resp.IsError() || !result.Return {
		return "", fmt.Errorf("sms provider returned %d: %s", resp.StatusCode(), string(result.Message))
	}
	return result.RequestID, nil
}
