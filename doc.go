// Package kompas provides client-side service discovery for API client SDKs:
//
//   - Two-tier configuration: a long-lived initial document and a short-lived
//     external document carrying live endpoint URIs
//   - Single-flight deduplication (concurrent callers of one operation share
//     one network fetch and one outcome)
//   - Expiry with a refresh handicap, so documents report stale before they
//     actually lapse
//   - Server-steered refresh chaining via the discovery tag and externalUri
//   - Pluggable document store and HTTP transport
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area – functional options configure everything
//   - Safe concurrent use of a single *Coordinator instance
//   - No retry policy of its own: retry fields in the documents are advisory
//     data for the caller
//
// Typical usage:
//
//	coord := kompas.New(
//	    kompas.WithClientID("my-app"),
//	    kompas.WithInitialEndpoint("https://discovery.example.com/v1/initial"),
//	    kompas.WithKeyPrefix("my-app"),
//	)
//	remove := coord.OnExternalDataUpdated(func(doc *kompas.ExternalDocument) {
//	    // reroute traffic to doc endpoints
//	})
//	defer remove()
//
//	expired, _ := coord.ExternalDataExpired(ctx)
//	if expired {
//	    if _, err := coord.RefreshExternalData(ctx); err != nil {
//	        // decide whether to retry using the document's advisory fields
//	    }
//	}
//
// Construction starts bootstrap in the background (disable with
// WithoutAutoInit); call Init to wait for readiness explicitly. The library
// avoids opinionated logging: provide a Logger (e.g. via WithSimpleLogger) +
// enable debug flags selectively (WithDebug / WithDebugConfig) for insight
// without noise.
package kompas
