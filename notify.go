package haven

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NotificationCategory identifies which detector produced a notification.
type NotificationCategory string

const (
	CategoryStatistical NotificationCategory = "statistical"
	CategoryML          NotificationCategory = "ml"
	CategoryWelfare     NotificationCategory = "welfare"
)

// Notification is an alert ready for delivery. DedupID is stable for a
// given (category, entity, type) so a re-sent identical alert overwrites
// its predecessor instead of stacking up.
type Notification struct {
	Title    string               `json:"title"`
	Message  string               `json:"message"`
	DedupID  string               `json:"dedup_id"`
	Category NotificationCategory `json:"category"`

	// Hints for rich clients. Zero values mean "sink default".
	Priority string `json:"priority,omitempty"`
	Sound    string `json:"sound,omitempty"`
	Badge    int    `json:"badge,omitempty"`
}

// DedupID builds the stable notification key for a category and subject.
func DedupID(category NotificationCategory, parts ...string) string {
	elems := append([]string{"haven", string(category)}, parts...)
	return strings.Join(elems, "_")
}

// NotificationRecord is a delivered notification in the persistent log.
type NotificationRecord struct {
	ID        string               `json:"id"`
	DedupID   string               `json:"dedup_id"`
	Category  NotificationCategory `json:"category"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	CreatedAt time.Time            `json:"created_at"`
}

// NotificationLog persists delivered notifications. SQLiteBackend
// implements it; MemoryNotificationLog serves tests and setups without a
// database.
type NotificationLog interface {
	RecordNotification(ctx context.Context, rec NotificationRecord) error
	Notifications(ctx context.Context, limit int) ([]NotificationRecord, error)
}

var _ NotificationLog = (*SQLiteBackend)(nil)
var _ NotificationLog = (*MemoryNotificationLog)(nil)

// MemoryNotificationLog is a bounded in-memory notification log. The
// newest record wins on dedup id collisions.
type MemoryNotificationLog struct {
	mu      sync.Mutex
	cap     int
	records []NotificationRecord
}

// NewMemoryNotificationLog creates a log retaining at most capacity records.
func NewMemoryNotificationLog(capacity int) *MemoryNotificationLog {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryNotificationLog{cap: capacity}
}

func (l *MemoryNotificationLog) RecordNotification(_ context.Context, rec NotificationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.records {
		if l.records[i].DedupID == rec.DedupID {
			l.records = append(l.records[:i], l.records[i+1:]...)
			break
		}
	}
	l.records = append(l.records, rec)
	if len(l.records) > l.cap {
		l.records = l.records[len(l.records)-l.cap:]
	}
	return nil
}

func (l *MemoryNotificationLog) Notifications(_ context.Context, limit int) ([]NotificationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.records) {
		limit = len(l.records)
	}
	out := make([]NotificationRecord, 0, limit)
	for i := len(l.records) - 1; i >= len(l.records)-limit; i-- {
		out = append(out, l.records[i])
	}
	return out, nil
}

// ParseSinkName splits a dot-qualified service name ("notify.mobile_app_x")
// into its domain and service parts.
func ParseSinkName(name string) (domain, service string, err error) {
	domain, service, ok := strings.Cut(name, ".")
	if !ok || domain == "" || service == "" || strings.Contains(service, ".") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSinkName, name)
	}
	return domain, service, nil
}

// Sink delivers a notification to one external destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// ServiceCaller invokes a platform service by domain and service name.
// HASource implements it over the Home Assistant WebSocket API.
type ServiceCaller interface {
	CallService(ctx context.Context, domain, service string, data map[string]any) error
}

// ServiceSink forwards notifications to a platform notify service.
type ServiceSink struct {
	name    string
	domain  string
	service string
	caller  ServiceCaller
}

// NewServiceSink builds a sink from a dot-qualified service name.
func NewServiceSink(name string, caller ServiceCaller) (*ServiceSink, error) {
	domain, service, err := ParseSinkName(name)
	if err != nil {
		return nil, err
	}
	return &ServiceSink{name: name, domain: domain, service: service, caller: caller}, nil
}

func (s *ServiceSink) Name() string { return s.name }

func (s *ServiceSink) Deliver(ctx context.Context, n Notification) error {
	data := map[string]any{
		"title":   n.Title,
		"message": stripMarkdown(n.Message),
		"data": map[string]any{
			"tag": n.DedupID,
		},
	}
	extra := data["data"].(map[string]any)
	if n.Priority != "" {
		extra["priority"] = n.Priority
	}
	if n.Sound != "" {
		extra["push"] = map[string]any{"sound": n.Sound}
	}
	if n.Badge > 0 {
		extra["badge"] = n.Badge
	}
	return s.caller.CallService(ctx, s.domain, s.service, data)
}

// WebhookSink POSTs notifications as JSON to an HTTP endpoint.
type WebhookSink struct {
	url    string
	client HTTPDoer
}

// NewWebhookSink creates a webhook sink. A nil client uses a default
// http.Client with a 10s timeout.
func NewWebhookSink(url string, client HTTPDoer) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSink{url: url, client: client}
}

func (w *WebhookSink) Name() string { return w.url }

func (w *WebhookSink) Deliver(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 || resp.StatusCode == 429 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Notifier fans a notification out to the persistent log and every
// configured sink. A failing sink is logged and skipped; delivery never
// aborts the caller's tick.
type Notifier struct {
	log     NotificationLog
	sinks   []Sink
	logger  *slog.Logger
	retryer *Retryer
	breaker *CircuitBreaker
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithSink adds a delivery sink.
func WithSink(s Sink) NotifierOption {
	return func(n *Notifier) {
		n.sinks = append(n.sinks, s)
	}
}

// WithNotifierLogger sets the logger.
func WithNotifierLogger(l *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = l
	}
}

// NewNotifier creates a notifier writing to the given log.
func NewNotifier(log NotificationLog, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		log:    log,
		logger: slog.Default(),
		retryer: NewRetryer(RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    100 * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            0.1,
			RetryIf:           IsRetryable,
		}),
		breaker: NewCircuitBreaker(5, time.Minute),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Send records the notification and forwards it to all sinks. The
// returned error reflects only the persistent log; sink failures are
// logged as warnings.
func (n *Notifier) Send(ctx context.Context, notif Notification) error {
	rec := NotificationRecord{
		ID:        uuid.NewString(),
		DedupID:   notif.DedupID,
		Category:  notif.Category,
		Title:     notif.Title,
		Message:   notif.Message,
		CreatedAt: time.Now().UTC(),
	}
	logErr := n.log.RecordNotification(ctx, rec)
	if logErr != nil {
		n.logger.Warn("notification log write failed",
			"dedup_id", notif.DedupID, "error", logErr)
	}

	for _, sink := range n.sinks {
		err := n.breaker.Execute(func() error {
			result := n.retryer.Do(ctx, func() error {
				return sink.Deliver(ctx, notif)
			})
			return result.LastErr
		})
		if err != nil {
			n.logger.Warn("notification sink delivery failed",
				"sink", sink.Name(), "dedup_id", notif.DedupID, "error", err)
			continue
		}
		n.logger.Info("notification delivered",
			"sink", sink.Name(), "dedup_id", notif.DedupID, "category", notif.Category)
	}

	return logErr
}

var (
	markdownBold   = regexp.MustCompile(`\*\*([^*]*)\*\*`)
	markdownItalic = regexp.MustCompile(`\*([^*]*)\*`)
	markdownCode   = regexp.MustCompile("`([^`]*)`")
)

// stripMarkdown flattens the markdown used in alert bodies to plain text
// for sinks that render messages literally.
func stripMarkdown(s string) string {
	s = markdownBold.ReplaceAllString(s, "$1")
	s = markdownItalic.ReplaceAllString(s, "$1")
	s = markdownCode.ReplaceAllString(s, "$1")
	return s
}
