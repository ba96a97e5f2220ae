package kompas

import (
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
)

// WithStore sets the document store
func WithStore(store Store) Option {
	return func(c *Coordinator) {
		c.store = store
	}
}

// WithMemoryStore uses the default sharded in-memory store
func WithMemoryStore() Option {
	return func(c *Coordinator) {
		c.store = NewMemoryStore()
	}
}

// WithFetcher sets the transport used for discovery fetches
func WithFetcher(fetcher Fetcher) Option {
	return func(c *Coordinator) {
		c.fetcher = fetcher
	}
}

// WithHTTPClient sets the HTTP client on the default fetcher, or replaces a
// custom fetcher with an HTTPFetcher using the given client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Coordinator) {
		if hf, ok := c.fetcher.(*HTTPFetcher); ok {
			hf.Client = client
			return
		}
		c.fetcher = &HTTPFetcher{Client: client}
	}
}

// WithUserAgent sets the User-Agent header sent by the default fetcher
func WithUserAgent(ua string) Option {
	return func(c *Coordinator) {
		if hf, ok := c.fetcher.(*HTTPFetcher); ok {
			hf.UserAgent = ua
		}
	}
}

// WithClientID sets the client identifier sent on initial document fetches
func WithClientID(id string) Option {
	return func(c *Coordinator) {
		c.clientID = id
	}
}

// WithKeyPrefix sets the store key prefix namespacing the two document slots
func WithKeyPrefix(prefix string) Option {
	return func(c *Coordinator) {
		c.keyPrefix = prefix
	}
}

// WithInitialEndpoint sets the URL of the initial discovery endpoint
func WithInitialEndpoint(url string) Option {
	return func(c *Coordinator) {
		c.initialURL = url
	}
}

// WithRefreshHandicap sets the safety margin subtracted from a document's
// expiry when deciding whether it is due for refresh
func WithRefreshHandicap(d time.Duration) Option {
	return func(c *Coordinator) {
		c.handicap = d
	}
}

// WithSettleDelay sets the delay a refresh waits before reading the cached
// document and fetching, letting transient conditions settle
func WithSettleDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		c.settleDelay = d
	}
}

// WithClock sets the clock used for expiry stamps and the settle delay
func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clk
	}
}

// WithoutAutoInit disables the bootstrap started by New; call Init explicitly
func WithoutAutoInit() Option {
	return func(c *Coordinator) {
		c.autoInit = false
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Coordinator) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Coordinator) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug() Option {
	return func(c *Coordinator) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Coordinator) {
		c.debug = config
	}
}

// WithLogger sets a custom logger for debug output
func WithLogger(logger Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a simple console logger
func WithSimpleLogger() Option {
	return func(c *Coordinator) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Coordinator) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the coordinator configuration and returns an error if invalid
func (c *Coordinator) ValidateConfiguration() error {
	var errors []string

	// Validate each configuration section
	errors = append(errors, c.validateCoreConfig()...)
	errors = append(errors, c.validateTimingConfig()...)
	errors = append(errors, c.validateDebugConfig()...)
	errors = append(errors, c.validateExtremeValues()...)

	if len(errors) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

// validateCoreConfig validates the collaborators and identifiers
func (c *Coordinator) validateCoreConfig() []string {
	var errors []string

	if c.store == nil {
		errors = append(errors, "store cannot be nil")
	}

	if c.fetcher == nil {
		errors = append(errors, "fetcher cannot be nil")
	}

	if c.clientID == "" {
		errors = append(errors, "clientID must be set")
	}

	if c.keyPrefix == "" {
		errors = append(errors, "keyPrefix must be set")
	}

	if c.initialURL == "" {
		errors = append(errors, "initial endpoint must be set")
	}

	return errors
}

// validateTimingConfig validates expiry and refresh timing
func (c *Coordinator) validateTimingConfig() []string {
	var errors []string

	if c.handicap < 0 {
		errors = append(errors, "refreshHandicap must be non-negative")
	}

	if c.settleDelay < 0 {
		errors = append(errors, "settleDelay must be non-negative")
	}

	if c.clock == nil {
		errors = append(errors, "clock cannot be nil")
	}

	return errors
}

// validateDebugConfig validates debug configuration
func (c *Coordinator) validateDebugConfig() []string {
	var errors []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			errors = append(errors, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			errors = append(errors, "logger must be set when debug is enabled")
		}
	}

	return errors
}

// validateExtremeValues validates that configuration values are within reasonable bounds
func (c *Coordinator) validateExtremeValues() []string {
	var errors []string

	if c.handicap > 24*time.Hour {
		errors = append(errors, "refreshHandicap > 24h would mark documents stale on arrival")
	}

	if c.settleDelay > time.Minute {
		errors = append(errors, "settleDelay > 1m may cause very long refresh stalls")
	}

	return errors
}
