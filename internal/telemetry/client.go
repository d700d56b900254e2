package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/posthog/posthog-go"
)

// Client sends usage events.
type Client interface {
	// Track enqueues an event and returns immediately. Disabled clients drop it.
	Track(event string, properties map[string]any)
	Close() error
}

// Properties are event properties.
type Properties = map[string]any

// eventSchema lists the properties each event may carry. Events missing from it
// are dropped, as are properties missing from their event's list.
var eventSchema = map[string][]string{
	EventRunCompleted: {
		"source", "tier", "operations", "rejected", "attempted", "succeeded",
		"cancelled", "refresh", "kinds", "duration_ms",
	},
	EventCommandExecuted: {"command", "duration_ms", "success"},
	EventCommandError:    {"command", "duration_ms", "error_type"},
}

// maxValueLen caps string values. Anything longer is treated as content.
const maxValueLen = 40

type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// PostHogClient sends events to PostHog.
type PostHogClient struct {
	sink    enqueuer
	consent *Config
	common  posthog.Properties
	logger  *slog.Logger

	mu     sync.RWMutex
	active bool
}

// ClientConfig configures NewPostHogClient.
type ClientConfig struct {
	APIKey   string
	Version  string
	Config   *Config
	Endpoint string // self-hosted PostHog, optional
	Logger   *slog.Logger
}

// NewPostHogClient creates a client. Without an API key or consent state the
// client drops every event.
func NewPostHogClient(cfg ClientConfig) (*PostHogClient, error) {
	c := newClient(nil, cfg.Config, cfg.Version, cfg.Logger)
	if cfg.APIKey == "" || cfg.Config == nil {
		return c, nil
	}

	phConfig := posthog.Config{
		BatchSize: 10,
		Interval:  time.Second,
		Logger:    slogAdapter{c.logger},
	}
	if cfg.Endpoint != "" {
		phConfig.Endpoint = cfg.Endpoint
	}
	sink, err := posthog.NewWithConfig(cfg.APIKey, phConfig)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	c.sink, c.active = sink, true
	return c, nil
}

func newClient(sink enqueuer, consent *Config, version string, logger *slog.Logger) *PostHogClient {
	if logger == nil {
		logger = slog.Default()
	}
	common := posthog.NewProperties().
		Set("os", runtime.GOOS).
		Set("arch", runtime.GOARCH).
		Set("cli_version", version).
		Set("$process_person_profile", false)
	return &PostHogClient{sink: sink, consent: consent, common: common, logger: logger, active: sink != nil}
}

// Track implements Client.
func (c *PostHogClient) Track(event string, properties map[string]any) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.active || c.consent == nil || !c.consent.IsEnabled() {
		return
	}
	msg, ok := c.capture(event, properties)
	if !ok {
		c.logger.Debug("telemetry event dropped", "event", event)
		return
	}
	if err := c.sink.Enqueue(msg); err != nil {
		c.logger.Debug("telemetry enqueue failed", "event", event, "error", err)
	}
}

// capture shapes an event for sending: only schema properties survive, and
// long strings are removed.
func (c *PostHogClient) capture(event string, properties map[string]any) (posthog.Capture, bool) {
	allowed, known := eventSchema[event]
	if !known {
		return posthog.Capture{}, false
	}
	props := posthog.NewProperties()
	for k, v := range c.common {
		props.Set(k, v)
	}
	for _, key := range allowed {
		v, present := properties[key]
		if !present {
			continue
		}
		if s, isString := v.(string); isString && len(s) > maxValueLen {
			continue
		}
		props.Set(key, v)
	}
	return posthog.Capture{
		DistinctId: c.consent.AnonymousID,
		Event:      event,
		Properties: props,
	}, true
}

// Close flushes pending events. Later events are dropped.
func (c *PostHogClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.sink == nil {
		return nil
	}
	c.active = false
	return c.sink.Close()
}

// NoopClient drops every event.
type NoopClient struct{}

func (NoopClient) Track(string, map[string]any) {}
func (NoopClient) Close() error                 { return nil }

// NewNoopClient returns a client that does nothing.
func NewNoopClient() *NoopClient { return &NoopClient{} }

// slogAdapter routes PostHog's own logging to debug level.
type slogAdapter struct{ logger *slog.Logger }

func (a slogAdapter) Debugf(format string, args ...interface{}) { a.log(format, args) }
func (a slogAdapter) Logf(format string, args ...interface{})   { a.log(format, args) }
func (a slogAdapter) Warnf(format string, args ...interface{})  { a.log(format, args) }
func (a slogAdapter) Errorf(format string, args ...interface{}) { a.log(format, args) }

func (a slogAdapter) log(format string, args []interface{}) {
	a.logger.Debug("posthog: " + fmt.Sprintf(format, args...))
}
