package kompas

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStampExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	doc := &ExternalDocument{ExpiresIn: 3600}
	doc.stampExpiry(now)
	if want := now.UnixMilli() + 3600*1000; doc.ExpireTime != want {
		t.Errorf("ExpireTime = %d, want %d", doc.ExpireTime, want)
	}

	// A network-supplied absolute expiry is discarded when expiresIn is
	// absent.
	doc = &ExternalDocument{ExpireTime: 123456}
	doc.stampExpiry(now)
	if doc.ExpireTime != 0 {
		t.Errorf("ExpireTime = %d, want 0 without expiresIn", doc.ExpireTime)
	}
}

func TestExpired(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	handicap := 60 * time.Second

	doc := &ExternalDocument{ExpiresIn: 3600}
	doc.stampExpiry(base)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"immediately after stamp", base, false},
		{"before the handicap window", base.Add(3600*time.Second - handicap - time.Millisecond), false},
		{"at the handicap boundary", base.Add(3600*time.Second - handicap), true},
		{"past literal expiry", base.Add(2 * time.Hour), true},
	}
	for _, tt := range tests {
		if got := doc.Expired(tt.now, handicap); got != tt.want {
			t.Errorf("Expired(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExpiredWithoutTimedExpiry(t *testing.T) {
	doc := &ExternalDocument{}
	if doc.Expired(time.Now().Add(100*365*24*time.Hour), time.Minute) {
		t.Error("Expired() = true for a document without ExpireTime")
	}
}

func TestDiscoveryURI(t *testing.T) {
	doc := &ExternalDocument{
		Discovery: EndpointSet{
			BaseURI:     "https://discovery.example.com",
			ExternalURI: "https://disc2.example.com/v1/external",
		},
	}
	if got := doc.DiscoveryURI(); got != "https://disc2.example.com/v1/external" {
		t.Errorf("DiscoveryURI() = %q, want the next-round URI", got)
	}

	if got := (&ExternalDocument{}).DiscoveryURI(); got != "" {
		t.Errorf("DiscoveryURI() = %q, want empty for a bare document", got)
	}
}

func TestExternalDocumentWireShape(t *testing.T) {
	body := []byte(`{
		"version": "1.0",
		"expiresIn": 900,
		"retryCount": 2,
		"retryInterval": 1.5,
		"retryCycleDelay": 86400,
		"discovery": {"baseUri": "https://d.example.com", "externalUri": "https://d2.example.com"},
		"auth": {"baseUri": "https://a.example.com", "baseWebUri": "https://login.example.com"},
		"api": {"baseUri": "https://api.example.com"},
		"video": {"baseUri": "https://v.example.com"},
		"extensions": {"edge": {"baseUri": "https://edge.example.com"}}
	}`)

	var doc ExternalDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("Unmarshal() returned error: %v", err)
	}

	if doc.ExpiresIn != 900 {
		t.Errorf("ExpiresIn = %d, want 900", doc.ExpiresIn)
	}
	if doc.RetryCycleDelay != 86400 {
		t.Errorf("RetryCycleDelay = %v, want 86400", doc.RetryCycleDelay)
	}
	if doc.Auth.BaseWebURI != "https://login.example.com" {
		t.Errorf("Auth.BaseWebURI = %q, want login URI", doc.Auth.BaseWebURI)
	}
	if doc.Video.BaseURI != "https://v.example.com" {
		t.Errorf("Video.BaseURI = %q, want video URI", doc.Video.BaseURI)
	}
	if got := doc.Extensions["edge"].BaseURI; got != "https://edge.example.com" {
		t.Errorf("Extensions[edge].BaseURI = %q, want edge URI", got)
	}
	if doc.Tag != "" {
		t.Errorf("Tag = %q, want empty; the tag arrives in a header, not the payload", doc.Tag)
	}
}

func TestAdvisoryRetry(t *testing.T) {
	initial := &InitialDocument{RetryCount: 3, RetryInterval: 1.5}
	advice := initial.AdvisoryRetry()

	if advice.Count != 3 {
		t.Errorf("Count = %d, want 3", advice.Count)
	}
	if advice.Interval != 1500*time.Millisecond {
		t.Errorf("Interval = %v, want 1.5s", advice.Interval)
	}
	if advice.CycleDelay != 0 {
		t.Errorf("CycleDelay = %v, want 0 for initial documents", advice.CycleDelay)
	}

	external := &ExternalDocument{RetryCount: 2, RetryInterval: 0.5, RetryCycleDelay: 86400}
	advice = external.AdvisoryRetry()

	if advice.Interval != 500*time.Millisecond {
		t.Errorf("Interval = %v, want 500ms", advice.Interval)
	}
	if advice.CycleDelay != 24*time.Hour {
		t.Errorf("CycleDelay = %v, want 24h", advice.CycleDelay)
	}
}

func TestRetryAdviceDelayFor(t *testing.T) {
	advice := RetryAdvice{Count: 2, Interval: time.Second, CycleDelay: time.Minute}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{-1, 0},
		{1, time.Second},
		{2, time.Second},
		{3, time.Minute},
		{10, time.Minute},
	}
	for _, tt := range tests {
		if got := advice.DelayFor(tt.attempt); got != tt.want {
			t.Errorf("DelayFor(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	// Without cycle advice, attempts past Count keep the interval.
	noCycle := RetryAdvice{Count: 1, Interval: 2 * time.Second}
	if got := noCycle.DelayFor(5); got != 2*time.Second {
		t.Errorf("DelayFor(5) = %v, want 2s", got)
	}

	// Negative durations clamp to zero.
	negative := RetryAdvice{Count: 1, Interval: -time.Second}
	if got := negative.DelayFor(1); got != 0 {
		t.Errorf("DelayFor(1) = %v, want 0", got)
	}
}
