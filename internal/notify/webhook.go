package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/yourusername/propcast/internal/models"
)

// WebhookConfig holds configuration for the webhook client
type WebhookConfig struct {
	URL            string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
	RatePerMinute  int
	BreakerTimeout time.Duration
}

// DefaultWebhookConfig returns recommended defaults for url
func DefaultWebhookConfig(url string) WebhookConfig {
	return WebhookConfig{
		URL:            url,
		Timeout:        10 * time.Second,
		MaxRetries:     3,
		RetryWaitMin:   200 * time.Millisecond,
		RetryWaitMax:   5 * time.Second,
		RatePerMinute:  6,
		BreakerTimeout: time.Minute,
	}
}

// WebhookPublisher POSTs recommendations as JSON
type WebhookPublisher struct {
	cfg     WebhookConfig
	client  *retryablehttp.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewWebhookPublisher creates a rate-limited, retrying webhook publisher behind a circuit breaker
func NewWebhookPublisher(cfg WebhookConfig, log *logrus.Logger) *WebhookPublisher {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = retryPolicy
	retryClient.Logger = nil

	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 1
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "retrain-webhook",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("Webhook circuit breaker state changed")
		},
	})

	return &WebhookPublisher{
		cfg:     cfg,
		client:  retryClient,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		breaker: cb,
		logger:  log,
	}
}

// Publish sends rec to the configured URL
func (p *WebhookPublisher) Publish(ctx context.Context, rec *models.RetrainRecommendation) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendation: %w", err)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.post(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("failed to deliver retrain recommendation %s: %w", rec.ID, err)
	}

	p.logger.WithFields(logrus.Fields{
		"recommendation_id": rec.ID,
		"url":               p.cfg.URL,
	}).Info("Retrain recommendation delivered")
	return nil
}

func (p *WebhookPublisher) post(ctx context.Context, body []byte) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

// retryPolicy retries network errors, 429 and 5xx
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}
