package kompas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ambiyansyah-risyal/kompas/internal/flight"
)

// Operation names used as flight keys and metrics labels.
const (
	opInit          = "init"
	opFetchInitial  = "fetch-initial"
	opFetchExternal = "fetch-external"
	opRefresh       = "refresh"
)

// Store slot names used in keys and metrics labels.
const (
	slotInitial  = "initial"
	slotExternal = "external"
)

// Default timing configuration.
const (
	DefaultRefreshHandicap = 60 * time.Second
	DefaultSettleDelay     = 100 * time.Millisecond
	DefaultKeyPrefix       = "kompas"
)

// Coordinator retrieves, caches and refreshes the two-tier discovery
// configuration of an API client: a long-lived initial document and a
// short-lived external document carrying live endpoint URIs. Every network
// operation is deduplicated so at most one fetch per operation is in flight
// regardless of caller concurrency. It is safe for concurrent use.
type Coordinator struct {
	store       Store
	fetcher     Fetcher
	clientID    string
	keyPrefix   string
	initialURL  string
	handicap    time.Duration
	settleDelay time.Duration
	clock       clock.Clock
	autoInit    bool

	metrics *MetricsCollector
	debug   *DebugConfig
	logger  Logger

	flights flight.Group
	ready   atomic.Bool

	initializedEvents  emitter[*InitialDocument]
	externalDataEvents emitter[*ExternalDocument]

	validationError error
}

// New constructs a Coordinator using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
// Unless WithoutAutoInit is given, a background bootstrap starts immediately
// when validation passes.
func New(options ...Option) *Coordinator {
	c := &Coordinator{
		store:       NewMemoryStore(),
		fetcher:     NewHTTPFetcher(),
		keyPrefix:   DefaultKeyPrefix,
		handicap:    DefaultRefreshHandicap,
		settleDelay: DefaultSettleDelay,
		clock:       clock.New(),
		autoInit:    true,
		metrics:     nil,
		debug:       DefaultDebugConfig(),
		logger:      nil,
	}

	for _, option := range options {
		option(c)
	}

	if err := c.ValidateConfiguration(); err != nil {
		c.validationError = err
	}

	if c.autoInit && c.validationError == nil {
		go func() {
			_ = c.Init(context.Background())
		}()
	}

	return c
}

// Init brings the coordinator to ready state using at most one concurrent
// bootstrap attempt no matter how many callers invoke it. The cached initial
// document is used when present; otherwise it is fetched. Each successful
// attempt emits the initialized event. The attempt handle clears on success
// and failure alike, so a failed bootstrap can be retried by calling Init
// again.
func (c *Coordinator) Init(ctx context.Context) error {
	if c.clientID == "" {
		err := c.newError(ErrorTypeConfiguration, "client id is not configured", ErrMissingClientID, "", opInit, "", 0, 0)
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeConfiguration, opInit)
		}
		return err
	}

	_, joined, err := c.flights.Do(ctx, opInit, func(fctx context.Context) (interface{}, error) {
		return c.bootstrap(fctx)
	})
	c.recordJoin(joined, opInit)
	return err
}

// FetchInitialData retrieves the bootstrap document from the configured
// initial endpoint, persisting the response body to the initial slot exactly
// as received. Concurrent callers share a single fetch and its outcome.
func (c *Coordinator) FetchInitialData(ctx context.Context) (*InitialDocument, error) {
	v, joined, err := c.flights.Do(ctx, opFetchInitial, func(fctx context.Context) (interface{}, error) {
		return c.fetchInitial(fctx)
	})
	c.recordJoin(joined, opFetchInitial)
	if err != nil {
		return nil, err
	}
	return v.(*InitialDocument), nil
}

// FetchExternalData retrieves the live endpoint document from the given URI,
// annotates it with the server's discovery tag and a computed expiry,
// persists it and emits the external-data-updated event. Concurrent callers
// share a single fetch and its outcome; a caller arriving while another
// endpoint's fetch is in flight joins that fetch.
func (c *Coordinator) FetchExternalData(ctx context.Context, endpoint string) (*ExternalDocument, error) {
	v, joined, err := c.flights.Do(ctx, opFetchExternal, func(fctx context.Context) (interface{}, error) {
		return c.fetchExternal(fctx, endpoint)
	})
	c.recordJoin(joined, opFetchExternal)
	if err != nil {
		return nil, err
	}
	return v.(*ExternalDocument), nil
}

// RefreshExternalData re-fetches the external document from the URI the
// previously cached document designates for the next discovery round. It
// waits the settle delay first, then delegates to FetchExternalData, so a
// refresh and a direct fetch can never run two network calls at once.
// Requires a previously cached external document to chain from.
func (c *Coordinator) RefreshExternalData(ctx context.Context) (*ExternalDocument, error) {
	v, joined, err := c.flights.Do(ctx, opRefresh, func(fctx context.Context) (interface{}, error) {
		return c.refresh(fctx)
	})
	c.recordJoin(joined, opRefresh)
	if err != nil {
		return nil, err
	}
	return v.(*ExternalDocument), nil
}

// ExternalDataExpired reports whether the external document is due for
// refresh: missing from the store, within the refresh handicap of its
// expiry, or past it. True always means "refresh now". It never touches the
// network.
func (c *Coordinator) ExternalDataExpired(ctx context.Context) (bool, error) {
	doc, err := c.ExternalData(ctx)
	if err != nil {
		if errors.Is(err, ErrNoExternalData) {
			if c.metrics != nil {
				c.metrics.RecordExpiryCheck("missing")
			}
			return true, nil
		}
		return false, err
	}

	expired := doc.Expired(c.clock.Now(), c.handicap)
	if c.metrics != nil {
		if expired {
			c.metrics.RecordExpiryCheck("stale")
		} else {
			c.metrics.RecordExpiryCheck("fresh")
		}
	}
	return expired, nil
}

// InitialData returns the cached initial document, or ErrNoInitialData when
// the slot is empty.
func (c *Coordinator) InitialData(ctx context.Context) (*InitialDocument, error) {
	data, found, err := c.store.GetItem(ctx, c.initialKey())
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeStorage, opInit)
		}
		return nil, c.newError(ErrorTypeStorage, "reading initial document failed", err, "", opInit, "", 0, 0)
	}
	if !found {
		if c.metrics != nil {
			c.metrics.RecordStoreMiss(slotInitial)
		}
		return nil, ErrNoInitialData
	}
	if c.metrics != nil {
		c.metrics.RecordStoreHit(slotInitial)
	}

	var doc InitialDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, c.newError(ErrorTypeDecode, "decoding cached initial document failed", err, "", opInit, "", 0, 0)
	}
	return &doc, nil
}

// ExternalData returns the cached external document, or ErrNoExternalData
// when the slot is empty.
func (c *Coordinator) ExternalData(ctx context.Context) (*ExternalDocument, error) {
	data, found, err := c.store.GetItem(ctx, c.externalKey())
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeStorage, opFetchExternal)
		}
		return nil, c.newError(ErrorTypeStorage, "reading external document failed", err, "", opFetchExternal, "", 0, 0)
	}
	if !found {
		if c.metrics != nil {
			c.metrics.RecordStoreMiss(slotExternal)
		}
		return nil, ErrNoExternalData
	}
	if c.metrics != nil {
		c.metrics.RecordStoreHit(slotExternal)
	}

	var doc ExternalDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, c.newError(ErrorTypeDecode, "decoding cached external document failed", err, "", opFetchExternal, "", 0, 0)
	}
	return &doc, nil
}

// RemoveInitialData deletes the cached initial document.
func (c *Coordinator) RemoveInitialData(ctx context.Context) error {
	if err := c.store.RemoveItem(ctx, c.initialKey()); err != nil {
		return c.newError(ErrorTypeStorage, "removing initial document failed", err, "", opInit, "", 0, 0)
	}
	return nil
}

// RemoveExternalData deletes the cached external document.
func (c *Coordinator) RemoveExternalData(ctx context.Context) error {
	if err := c.store.RemoveItem(ctx, c.externalKey()); err != nil {
		return c.newError(ErrorTypeStorage, "removing external document failed", err, "", opFetchExternal, "", 0, 0)
	}
	return nil
}

// ClearDiscovery deletes both cached documents. Readiness is not reset.
func (c *Coordinator) ClearDiscovery(ctx context.Context) error {
	if err := c.RemoveInitialData(ctx); err != nil {
		return err
	}
	return c.RemoveExternalData(ctx)
}

// Initialized reports whether bootstrap has ever completed successfully.
// Once true it stays true for the lifetime of the coordinator.
func (c *Coordinator) Initialized() bool {
	return c.ready.Load()
}

// OnInitialized registers a handler for the initialized event, fired with
// the bootstrap document on each successful Init attempt. The returned
// function removes the handler.
func (c *Coordinator) OnInitialized(fn func(*InitialDocument)) func() {
	return c.initializedEvents.subscribe(fn)
}

// OnExternalDataUpdated registers a handler fired with each freshly
// persisted external document. The returned function removes the handler.
func (c *Coordinator) OnExternalDataUpdated(fn func(*ExternalDocument)) func() {
	return c.externalDataEvents.subscribe(fn)
}

func (c *Coordinator) bootstrap(ctx context.Context) (interface{}, error) {
	requestID := c.newRequestID()
	if c.debug != nil && c.debug.Enabled && c.debug.LogFetches && c.logger != nil {
		c.logger.Debug("Starting bootstrap", "requestID", requestID)
	}

	doc, err := c.InitialData(ctx)
	if errors.Is(err, ErrNoInitialData) {
		doc, err = c.FetchInitialData(ctx)
	}
	if err != nil {
		if c.debug != nil && c.debug.Enabled && c.debug.LogFetches && c.logger != nil {
			c.logger.Warn("Bootstrap failed", "requestID", requestID, "error", err.Error())
		}
		return nil, err
	}

	c.ready.Store(true)
	if c.metrics != nil {
		c.metrics.SetInitialized(true)
	}
	if c.debug != nil && c.debug.Enabled && c.debug.LogFetches && c.logger != nil {
		c.logger.Debug("Bootstrap complete", "requestID", requestID, "version", doc.Version)
	}

	c.emitInitialized(doc)
	return doc, nil
}

func (c *Coordinator) fetchInitial(ctx context.Context) (*InitialDocument, error) {
	start := c.clock.Now()
	requestID := c.newRequestID()

	if c.debug != nil && c.debug.Enabled && c.debug.LogFetches && c.logger != nil {
		c.logger.Debug("Starting initial fetch", "requestID", requestID, "url", c.initialURL)
	}
	if c.metrics != nil {
		c.metrics.RecordFetchStart(opFetchInitial)
		defer c.metrics.RecordFetchEnd(opFetchInitial)
	}

	resp, err := c.fetcher.Get(ctx, c.initialURL, &FetchOptions{
		Query:         url.Values{"clientId": {c.clientID}},
		SkipAuthCheck: true,
	})
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeTransport, opFetchInitial)
		}
		return nil, c.newError(ErrorTypeTransport, "initial discovery request failed", err, requestID, opFetchInitial, c.initialURL, 0, c.clock.Since(start))
	}

	if c.metrics != nil {
		c.metrics.RecordFetch(opFetchInitial, resp.StatusCode, c.clock.Since(start))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeServer, opFetchInitial)
		}
		return nil, c.newError(ErrorTypeServer, "initial discovery endpoint returned an error status", nil, requestID, opFetchInitial, c.initialURL, resp.StatusCode, c.clock.Since(start))
	}

	var doc InitialDocument
	if err := resp.JSON(&doc); err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeDecode, opFetchInitial)
		}
		return nil, c.newError(ErrorTypeDecode, "decoding initial document failed", err, requestID, opFetchInitial, c.initialURL, resp.StatusCode, c.clock.Since(start))
	}

	// The initial slot stores the body exactly as received; no derived
	// fields are added.
	if err := c.store.SetItem(ctx, c.initialKey(), resp.Body); err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeStorage, opFetchInitial)
		}
		return nil, c.newError(ErrorTypeStorage, "persisting initial document failed", err, requestID, opFetchInitial, c.initialURL, resp.StatusCode, c.clock.Since(start))
	}
	if c.debug != nil && c.debug.Enabled && c.debug.LogStore && c.logger != nil {
		c.logger.Debug("Initial document stored", "requestID", requestID, "key", c.initialKey())
	}

	return &doc, nil
}

func (c *Coordinator) fetchExternal(ctx context.Context, endpoint string) (*ExternalDocument, error) {
	start := c.clock.Now()
	requestID := c.newRequestID()

	if c.debug != nil && c.debug.Enabled && c.debug.LogFetches && c.logger != nil {
		c.logger.Debug("Starting external fetch", "requestID", requestID, "url", endpoint)
	}
	if c.metrics != nil {
		c.metrics.RecordFetchStart(opFetchExternal)
		defer c.metrics.RecordFetchEnd(opFetchExternal)
	}

	resp, err := c.fetcher.Get(ctx, endpoint, &FetchOptions{
		SkipDiscoveryCheck: true,
	})
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeTransport, opFetchExternal)
		}
		return nil, c.newError(ErrorTypeTransport, "external discovery request failed", err, requestID, opFetchExternal, endpoint, 0, c.clock.Since(start))
	}

	if c.metrics != nil {
		c.metrics.RecordFetch(opFetchExternal, resp.StatusCode, c.clock.Since(start))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeServer, opFetchExternal)
		}
		return nil, c.newError(ErrorTypeServer, "external discovery endpoint returned an error status", nil, requestID, opFetchExternal, endpoint, resp.StatusCode, c.clock.Since(start))
	}

	var doc ExternalDocument
	if err := resp.JSON(&doc); err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeDecode, opFetchExternal)
		}
		return nil, c.newError(ErrorTypeDecode, "decoding external document failed", err, requestID, opFetchExternal, endpoint, resp.StatusCode, c.clock.Since(start))
	}

	if tag := resp.Header.Get(DiscoveryTagHeader); tag != "" {
		doc.Tag = tag
	}

	if err := c.storeExternal(ctx, &doc); err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeStorage, opFetchExternal)
		}
		return nil, c.newError(ErrorTypeStorage, "persisting external document failed", err, requestID, opFetchExternal, endpoint, resp.StatusCode, c.clock.Since(start))
	}
	if c.debug != nil && c.debug.Enabled && c.debug.LogStore && c.logger != nil {
		c.logger.Debug("External document stored", "requestID", requestID, "key", c.externalKey(), "tag", doc.Tag, "expireTime", doc.ExpireTime)
	}

	c.emitExternalDataUpdated(&doc)
	return &doc, nil
}

func (c *Coordinator) refresh(ctx context.Context) (*ExternalDocument, error) {
	requestID := c.newRequestID()
	if c.debug != nil && c.debug.Enabled && c.debug.LogFetches && c.logger != nil {
		c.logger.Debug("Starting refresh", "requestID", requestID, "settleDelay", c.settleDelay)
	}

	if err := c.settle(ctx); err != nil {
		return nil, err
	}

	doc, err := c.ExternalData(ctx)
	if err != nil {
		if errors.Is(err, ErrNoExternalData) {
			if c.metrics != nil {
				c.metrics.RecordError(ErrorTypePrecondition, opRefresh)
			}
			return nil, c.newError(ErrorTypePrecondition, "no external document to refresh from", err, requestID, opRefresh, "", 0, 0)
		}
		return nil, err
	}

	uri := doc.DiscoveryURI()
	if uri == "" {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypePrecondition, opRefresh)
		}
		return nil, c.newError(ErrorTypePrecondition, "cached external document has no discovery uri", nil, requestID, opRefresh, "", 0, 0)
	}

	return c.FetchExternalData(ctx, uri)
}

// storeExternal stamps the expiry from expiresIn at write time and persists
// the annotated document, fully replacing the external slot.
func (c *Coordinator) storeExternal(ctx context.Context, doc *ExternalDocument) error {
	doc.stampExpiry(c.clock.Now())
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return c.store.SetItem(ctx, c.externalKey(), data)
}

// settle waits the configured delay before a refresh touches the store or
// network, honoring ctx.
func (c *Coordinator) settle(ctx context.Context) error {
	if c.settleDelay <= 0 {
		return nil
	}
	t := c.clock.Timer(c.settleDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) emitInitialized(doc *InitialDocument) {
	if c.metrics != nil {
		c.metrics.RecordEvent(eventInitialized)
	}
	if c.debug != nil && c.debug.Enabled && c.debug.LogEvents && c.logger != nil {
		c.logger.Debug("Emitting event", "event", eventInitialized, "listeners", c.initializedEvents.count())
	}
	c.initializedEvents.emit(doc)
}

func (c *Coordinator) emitExternalDataUpdated(doc *ExternalDocument) {
	if c.metrics != nil {
		c.metrics.RecordEvent(eventExternalDataUpdated)
	}
	if c.debug != nil && c.debug.Enabled && c.debug.LogEvents && c.logger != nil {
		c.logger.Debug("Emitting event", "event", eventExternalDataUpdated, "listeners", c.externalDataEvents.count())
	}
	c.externalDataEvents.emit(doc)
}

func (c *Coordinator) recordJoin(joined bool, operation string) {
	if !joined {
		return
	}
	if c.metrics != nil {
		c.metrics.RecordFlightJoin(operation)
	}
	if c.debug != nil && c.debug.Enabled && c.debug.LogFlights && c.logger != nil {
		c.logger.Debug("Joined in-flight operation", "operation", operation)
	}
}

func (c *Coordinator) initialKey() string {
	return c.keyPrefix + "-" + slotInitial
}

func (c *Coordinator) externalKey() string {
	return c.keyPrefix + "-" + slotExternal
}

func (c *Coordinator) newRequestID() string {
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		return c.debug.RequestIDGen()
	}
	return ""
}

func (c *Coordinator) newError(errorType, message string, cause error, requestID, operation, url string, statusCode int, duration time.Duration) *ClientError {
	return &ClientError{
		Type:       errorType,
		Message:    message,
		Cause:      cause,
		RequestID:  requestID,
		Operation:  operation,
		URL:        url,
		StatusCode: statusCode,
		Timestamp:  c.clock.Now(),
		Duration:   duration,
	}
}

// IsValid reports whether configuration validation passed at construction.
func (c *Coordinator) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Coordinator) ValidationError() error {
	return c.validationError
}

// ValidateConfigurationStrict panics if configuration is invalid.
func (c *Coordinator) ValidateConfigurationStrict() {
	if err := c.ValidateConfiguration(); err != nil {
		panic(fmt.Sprintf("invalid coordinator configuration: %v", err))
	}
}

// MustValidateConfiguration re-runs validation returning an error (no panic).
func (c *Coordinator) MustValidateConfiguration() error {
	return c.ValidateConfiguration()
}
