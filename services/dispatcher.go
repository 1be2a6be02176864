package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/resvia/resvia/models"
	"github.com/resvia/resvia/monitoring"
)

// Event names pushed to subscribers.
const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCheckedIn = "booking.checked_in"
	EventBookingCancelled = "booking.cancelled"
)

// Event is one occurrence to deliver. Delivery is at-least-once; receivers
// dedupe on ID.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"event"`
	OccurredAt time.Time              `json:"created_at"`
	Data       map[string]interface{} `json:"data"`
}

func NewEvent(eventType string, data map[string]interface{}) Event {
	return Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type dispatchSubscriptionStore interface {
	ListForEvent(ctx context.Context, establishmentSlug string) ([]*models.WebhookSubscription, error)
	Disable(ctx context.Context, id, reason string) error
}

type dispatchLogStore interface {
	Append(ctx context.Context, entry *models.WebhookDeliveryLog) error
	RecentOutcomes(ctx context.Context, webhookID string, limit int) ([]bool, error)
}

type DispatcherOptions struct {
	Workers          int
	QueueSize        int
	AttemptTimeout   time.Duration
	OutboundRPS      float64
	DisableThreshold int

	// DelayUnit scales a subscription's RetryDelay. It is one second in
	// production and shortened in tests.
	DelayUnit time.Duration
}

func (o *DispatcherOptions) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 10 * time.Second
	}
	if o.OutboundRPS <= 0 {
		o.OutboundRPS = 20
	}
	if o.DisableThreshold <= 0 {
		o.DisableThreshold = 10
	}
	if o.DelayUnit <= 0 {
		o.DelayUnit = time.Second
	}
}

// Dispatcher delivers events to every matching subscription: signed POST,
// bounded per-attempt timeout, linear backoff retries, every attempt logged,
// auto-disable after sustained failure. Dispatch is fire-and-forget relative
// to the triggering request; the bounded queue drops (and counts) events
// rather than applying back-pressure to a booking confirmation.
type Dispatcher struct {
	subs     dispatchSubscriptionStore
	logs     dispatchLogStore
	alerter  monitoring.Alerter
	metrics  *monitoring.Metrics
	client   *http.Client
	throttle *rate.Limiter
	opts     DispatcherOptions
	log      zerolog.Logger

	queue chan dispatchTask
	wg    sync.WaitGroup
	once  sync.Once
}

type dispatchTask struct {
	establishmentSlug string
	event             Event
}

func CreateDispatcher(
	subs dispatchSubscriptionStore,
	logs dispatchLogStore,
	alerter monitoring.Alerter,
	metrics *monitoring.Metrics,
	opts DispatcherOptions,
	log zerolog.Logger,
) *Dispatcher {
	opts.applyDefaults()

	d := &Dispatcher{
		subs:     subs,
		logs:     logs,
		alerter:  alerter,
		metrics:  metrics,
		client:   &http.Client{Timeout: opts.AttemptTimeout},
		throttle: rate.NewLimiter(rate.Limit(opts.OutboundRPS), int(opts.OutboundRPS)),
		opts:     opts,
		log:      log.With().Str("component", "dispatcher").Logger(),
		queue:    make(chan dispatchTask, opts.QueueSize),
	}

	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}

	return d
}

// Dispatch enqueues an event for every subscription of the establishment.
// It never blocks: a full queue drops the event, which is counted and
// logged, and the triggering state transition proceeds regardless.
func (d *Dispatcher) Dispatch(_ context.Context, establishmentSlug string, event Event) {
	select {
	case d.queue <- dispatchTask{establishmentSlug: establishmentSlug, event: event}:
		d.metrics.QueueDepth.Inc()
	default:
		d.metrics.DroppedEvents.Inc()
		d.log.Error().
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Str("establishment", establishmentSlug).
			Msg("dispatch queue full, event dropped")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for task := range d.queue {
		d.metrics.QueueDepth.Dec()
		d.process(task)
	}
}

func (d *Dispatcher) process(task dispatchTask) {
	// The triggering request is long gone; deliveries run on their own
	// lifetime, bounded per attempt.
	ctx := context.Background()

	subs, err := d.subs.ListForEvent(ctx, task.establishmentSlug)
	if err != nil {
		d.log.Error().Err(err).
			Str("establishment", task.establishmentSlug).
			Str("event_id", task.event.ID).
			Msg("failed to list subscriptions")
		return
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		if !sub.SubscribedTo(task.event.Type) {
			continue
		}
		if !sub.IsActive {
			d.recordSkip(ctx, sub, task.event)
			continue
		}

		// Subscriptions deliver concurrently; retries within one
		// subscription stay sequential.
		wg.Add(1)
		go func(sub *models.WebhookSubscription) {
			defer wg.Done()
			d.deliver(ctx, sub, task.event)
		}(sub)
	}
	wg.Wait()
}

// recordSkip keeps the decision not to dispatch observable in the delivery
// log without counting toward the consecutive-failure tally.
func (d *Dispatcher) recordSkip(ctx context.Context, sub *models.WebhookSubscription, event Event) {
	d.appendLog(ctx, &models.WebhookDeliveryLog{
		WebhookID: sub.ID,
		EventID:   event.ID,
		EventType: event.Type,
		Error:     "subscription inactive, delivery skipped",
	})
}

func (d *Dispatcher) deliver(ctx context.Context, sub *models.WebhookSubscription, event Event) {
	body, contentType, err := encodePayload(sub.Format, event)
	if err != nil {
		d.log.Error().Err(err).Str("webhook_id", sub.ID).Msg("payload encoding failed")
		return
	}
	signature := signPayload(body, sub.Secret)

	maxAttempts := sub.RetryCount
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	baseDelay := time.Duration(sub.RetryDelay) * d.opts.DelayUnit

	delivered := false
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			// Linear backoff: retryDelay times the number of failed
			// attempts so far.
			select {
			case <-ctx.Done():
				return
			case <-time.After(baseDelay * time.Duration(attempt-1)):
			}
		}

		start := time.Now()
		statusCode, attemptErr := d.post(ctx, sub.URL, body, contentType, signature, event)
		elapsed := time.Since(start)

		success := attemptErr == nil
		entry := &models.WebhookDeliveryLog{
			WebhookID:     sub.ID,
			EventID:       event.ID,
			EventType:     event.Type,
			AttemptNumber: attempt,
			Success:       success,
			Final:         success || attempt == maxAttempts,
			DurationMs:    elapsed.Milliseconds(),
		}
		if statusCode != 0 {
			code := statusCode
			entry.StatusCode = &code
		}
		if attemptErr != nil {
			entry.Error = attemptErr.Error()
		}
		d.appendLog(ctx, entry)

		d.metrics.DeliveryDuration.Observe(elapsed.Seconds())
		if success {
			d.metrics.Deliveries.WithLabelValues("success").Inc()
			delivered = true
			break
		}
		d.metrics.Deliveries.WithLabelValues("failure").Inc()
		d.log.Warn().Err(attemptErr).
			Str("webhook_id", sub.ID).
			Str("event_id", event.ID).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Msg("webhook delivery attempt failed")
	}

	if !delivered {
		d.maybeDisable(ctx, sub)
	}
}

func (d *Dispatcher) post(ctx context.Context, targetURL string, body []byte, contentType, signature string, event Event) (int, error) {
	if err := d.throttle.Wait(ctx); err != nil {
		return 0, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-ID", event.ID)
	req.Header.Set("X-Webhook-Event", event.Type)
	req.Header.Set("X-Webhook-Timestamp", fmt.Sprintf("%d", event.OccurredAt.Unix()))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("delivery failed with status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// maybeDisable runs after a delivery exhausts its retries: when the most
// recent settled deliveries are all failures up to the threshold, the
// subscription is turned off and the alerting collaborator notified once.
func (d *Dispatcher) maybeDisable(ctx context.Context, sub *models.WebhookSubscription) {
	outcomes, err := d.logs.RecentOutcomes(ctx, sub.ID, d.opts.DisableThreshold)
	if err != nil {
		d.log.Error().Err(err).Str("webhook_id", sub.ID).Msg("failed to read delivery outcomes")
		return
	}

	consecutive := 0
	for _, success := range outcomes {
		if success {
			break
		}
		consecutive++
	}
	if consecutive < d.opts.DisableThreshold {
		return
	}

	reason := fmt.Sprintf("auto-disabled after %d consecutive failed deliveries", consecutive)
	if err := d.subs.Disable(ctx, sub.ID, reason); err != nil {
		d.log.Error().Err(err).Str("webhook_id", sub.ID).Msg("failed to disable webhook")
		return
	}
	d.metrics.WebhooksDisabled.Inc()

	d.alerter.WebhookDisabled(ctx, monitoring.WebhookDisabledAlert{
		WebhookID:           sub.ID,
		Name:                sub.Name,
		URL:                 sub.URL,
		EstablishmentSlug:   sub.EstablishmentSlug,
		ConsecutiveFailures: consecutive,
		DisabledAt:          time.Now().UTC(),
	})
}

func (d *Dispatcher) appendLog(ctx context.Context, entry *models.WebhookDeliveryLog) {
	if err := d.logs.Append(ctx, entry); err != nil {
		d.log.Error().Err(err).
			Str("webhook_id", entry.WebhookID).
			Str("event_id", entry.EventID).
			Msg("failed to append delivery log")
	}
}

// Close stops accepting events and drains the queue.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func encodePayload(format models.WebhookFormat, event Event) ([]byte, string, error) {
	if format == models.WebhookFormatForm {
		values := url.Values{}
		values.Set("id", event.ID)
		values.Set("event", event.Type)
		values.Set("created_at", event.OccurredAt.Format(time.RFC3339))
		for key, value := range event.Data {
			values.Set(fmt.Sprintf("data[%s]", key), fmt.Sprint(value))
		}
		return []byte(values.Encode()), "application/x-www-form-urlencoded", nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return nil, "", err
	}
	return body, "application/json", nil
}

func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
