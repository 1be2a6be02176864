package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// WebhookDisabledAlert is the payload of the single alerting contract in
// this layer: a webhook subscription was auto-disabled after sustained
// delivery failure.
type WebhookDisabledAlert struct {
	WebhookID           string    `json:"webhook_id"`
	Name                string    `json:"name"`
	URL                 string    `json:"url"`
	EstablishmentSlug   string    `json:"establishment_slug"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	DisabledAt          time.Time `json:"disabled_at"`
}

// Alerter receives the auto-disable trigger. Delivery to operators (email or
// otherwise) is an external collaborator behind this interface.
type Alerter interface {
	WebhookDisabled(ctx context.Context, alert WebhookDisabledAlert)
}

// AlertChannel is one fan-out target of the AlertManager.
type AlertChannel interface {
	Send(alert WebhookDisabledAlert) error
}

// AlertManager fans alerts out to its channels. Channel failures are logged
// and never propagated; alerting sits downstream of the failure it reports
// and must not add one of its own.
type AlertManager struct {
	channels []AlertChannel
	mu       sync.RWMutex
	log      zerolog.Logger
}

func NewAlertManager(log zerolog.Logger) *AlertManager {
	return &AlertManager{
		log: log.With().Str("component", "alerting").Logger(),
	}
}

func (m *AlertManager) AddChannel(ch AlertChannel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

func (m *AlertManager) WebhookDisabled(_ context.Context, alert WebhookDisabledAlert) {
	m.log.Warn().
		Str("webhook_id", alert.WebhookID).
		Str("webhook_name", alert.Name).
		Str("url", alert.URL).
		Str("establishment", alert.EstablishmentSlug).
		Int("consecutive_failures", alert.ConsecutiveFailures).
		Msg("webhook auto-disabled")

	m.mu.RLock()
	channels := make([]AlertChannel, len(m.channels))
	copy(channels, m.channels)
	m.mu.RUnlock()

	for _, ch := range channels {
		if err := ch.Send(alert); err != nil {
			m.log.Error().Err(err).Str("webhook_id", alert.WebhookID).Msg("alert channel send failed")
		}
	}
}

type ConsoleAlertChannel struct{}

func (c *ConsoleAlertChannel) Send(alert WebhookDisabledAlert) error {
	fmt.Printf("[ALERT] webhook %q (%s) disabled after %d consecutive failed deliveries to %s\n",
		alert.Name, alert.WebhookID, alert.ConsecutiveFailures, alert.URL)
	return nil
}
