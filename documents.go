package kompas

import "time"

// DiscoveryTagHeader is the response header carrying the server-assigned
// discovery tag on external document fetches.
const DiscoveryTagHeader = "Discovery-Tag"

// EndpointSet is one named group of service URIs inside a discovery document.
// BaseURI is the currently active endpoint; ExternalURI, when present, is the
// URI the next discovery round should be fetched from.
type EndpointSet struct {
	BaseURI     string `json:"baseUri,omitempty"`
	BaseWebURI  string `json:"baseWebUri,omitempty"`
	ExternalURI string `json:"externalUri,omitempty"`
}

// InitialDocument is the long-lived bootstrap configuration. It has no expiry;
// validity is presence. The retry fields are advisory data for the caller and
// are never acted on by this package.
type InitialDocument struct {
	Version       string  `json:"version"`
	RetryCount    int     `json:"retryCount,omitempty"`
	RetryInterval float64 `json:"retryInterval,omitempty"`

	Discovery EndpointSet `json:"discovery"`
	Auth      EndpointSet `json:"auth"`
	API       EndpointSet `json:"api"`
	Video     EndpointSet `json:"video,omitempty"`
	Meetings  EndpointSet `json:"meetings,omitempty"`

	// Extensions holds optional product endpoint groups beyond the fixed set.
	Extensions map[string]EndpointSet `json:"extensions,omitempty"`
}

// ExternalDocument is the short-lived, server-steerable configuration. Tag and
// ExpireTime are not part of the wire payload: Tag is lifted from the
// Discovery-Tag response header, and ExpireTime is computed locally from
// ExpiresIn at persist time. ExpireTime from the network is never trusted.
type ExternalDocument struct {
	Version string `json:"version"`

	// Tag is the opaque server-issued marker for the active configuration
	// generation.
	Tag string `json:"tag,omitempty"`

	// ExpiresIn is the document validity window in seconds, as received.
	ExpiresIn int64 `json:"expiresIn,omitempty"`

	// ExpireTime is the absolute expiry in epoch milliseconds, derived as
	// receive-time + ExpiresIn. Zero means no timed expiry.
	ExpireTime int64 `json:"expireTime,omitempty"`

	RetryCount      int     `json:"retryCount,omitempty"`
	RetryInterval   float64 `json:"retryInterval,omitempty"`
	RetryCycleDelay float64 `json:"retryCycleDelay,omitempty"`

	Discovery EndpointSet `json:"discovery"`
	Auth      EndpointSet `json:"auth"`
	API       EndpointSet `json:"api"`
	Video     EndpointSet `json:"video,omitempty"`
	Meetings  EndpointSet `json:"meetings,omitempty"`

	Extensions map[string]EndpointSet `json:"extensions,omitempty"`
}

// DiscoveryURI returns the URI the next discovery round should use, taken
// from the document's discovery endpoint group.
func (d *ExternalDocument) DiscoveryURI() string {
	return d.Discovery.ExternalURI
}

// RetryAdvice carries a document's advisory retry parameters as concrete
// durations. This package never retries; callers that honor the advice drive
// their own loops with it.
type RetryAdvice struct {
	// Count is the advised number of attempts per cycle.
	Count int
	// Interval is the advised wait between attempts within a cycle.
	Interval time.Duration
	// CycleDelay is the advised wait between cycles once Count attempts are
	// spent. Zero means the document carries no cycle advice.
	CycleDelay time.Duration
}

// DelayFor returns the advised wait before the given attempt (1-based).
// Attempts past Count use CycleDelay when present. Out-of-range inputs
// clamp to zero.
func (a RetryAdvice) DelayFor(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := a.Interval
	if attempt > a.Count && a.CycleDelay > 0 {
		d = a.CycleDelay
	}
	if d < 0 {
		return 0
	}
	return d
}

// AdvisoryRetry returns the retry advice carried by the document.
func (d *InitialDocument) AdvisoryRetry() RetryAdvice {
	return RetryAdvice{
		Count:    d.RetryCount,
		Interval: secondsToDuration(d.RetryInterval),
	}
}

// AdvisoryRetry returns the retry advice carried by the document.
func (d *ExternalDocument) AdvisoryRetry() RetryAdvice {
	return RetryAdvice{
		Count:      d.RetryCount,
		Interval:   secondsToDuration(d.RetryInterval),
		CycleDelay: secondsToDuration(d.RetryCycleDelay),
	}
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// stampExpiry recomputes ExpireTime from ExpiresIn relative to now. A missing
// or zero ExpiresIn clears ExpireTime, leaving the document without a timed
// expiry.
func (d *ExternalDocument) stampExpiry(now time.Time) {
	if d.ExpiresIn > 0 {
		d.ExpireTime = now.UnixMilli() + d.ExpiresIn*1000
	} else {
		d.ExpireTime = 0
	}
}

// Expired reports whether the document is due for refresh at now: within the
// handicap window of its expiry, or past it. True always means "refresh now".
// A document without a timed expiry never reports expired.
func (d *ExternalDocument) Expired(now time.Time, handicap time.Duration) bool {
	if d.ExpireTime == 0 {
		return false
	}
	return now.UnixMilli() >= d.ExpireTime-handicap.Milliseconds()
}
