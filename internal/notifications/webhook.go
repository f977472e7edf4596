package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

type Sender struct {
	webhookURL string
	appName    string
	client     *resty.Client
}

func NewSender(webhookURL, appName string) *Sender {
	if appName == "" {
		appName = "PriceGraph"
	}
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Sender{
		webhookURL: webhookURL,
		appName:    appName,
		client:     client,
	}
}

// Send logs msg and, when a webhook is configured, posts it. Failures are
// logged and swallowed.
func (s *Sender) Send(ctx context.Context, msg string) {
	formatted := fmt.Sprintf("[%s] %s", s.appName, msg)
	log.Info().Str("notification", formatted).Msg("alert")

	if s.webhookURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(s.formatPayload(formatted)).
		Post(s.webhookURL)
	if err != nil {
		log.Error().Err(err).Msg("failed to send notification after retries")
		return
	}
	if resp.IsError() {
		log.Error().Int("status", resp.StatusCode()).Msg("webhook rejected notification")
	}
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.appName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.appName,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}
