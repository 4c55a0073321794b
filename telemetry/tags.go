// Package telemetry provides request tagging for structured logging and
// OpenTelemetry metrics for the HTTP API and the GitHub client.
package telemetry

import (
	"context"
	"net/http"
)

type contextKey string

const (
	// requestTagsKey is the context key for request tags holder.
	requestTagsKey contextKey = "request_tags"
)

// CacheResult represents the outcome of a content cache lookup.
type CacheResult string

const (
	CacheHit    CacheResult = "hit"
	CacheMiss   CacheResult = "miss"
	CacheBypass CacheResult = "bypass"
	CacheNA     CacheResult = "na"
)

// RequestTags holds mutable request metadata that handlers can set for logging.
type RequestTags struct {
	Domain      string
	CacheResult CacheResult
	Endpoint    string
}

// InjectTags creates a new request with an empty RequestTags in context.
// Call this in middleware before handlers run.
func InjectTags(r *http.Request) *http.Request {
	tags := &RequestTags{CacheResult: CacheBypass}
	return r.WithContext(context.WithValue(r.Context(), requestTagsKey, tags))
}

// GetTags retrieves the request tags from context.
// Returns nil if not in a request context with logging middleware.
func GetTags(r *http.Request) *RequestTags {
	return TagsFromContext(r.Context())
}

// TagsFromContext retrieves the request tags from a context. Content domains
// use it to report cache hits without access to the request.
func TagsFromContext(ctx context.Context) *RequestTags {
	if tags, ok := ctx.Value(requestTagsKey).(*RequestTags); ok {
		return tags
	}
	return nil
}

// SetCacheResult sets the cache result for logging.
func SetCacheResult(r *http.Request, result CacheResult) {
	if tags := GetTags(r); tags != nil {
		tags.CacheResult = result
	}
}

// SetDomain sets the content domain tag for metrics and logging.
func SetDomain(r *http.Request, domain string) {
	if tags := GetTags(r); tags != nil {
		tags.Domain = domain
	}
}

// SetEndpoint sets the endpoint type for logging.
func SetEndpoint(r *http.Request, endpoint string) {
	if tags := GetTags(r); tags != nil {
		tags.Endpoint = endpoint
	}
}

// MarkCache records a cache lookup against the request in ctx, if any, and in
// the cache lookup metric. A miss anywhere in the request wins over hits.
func MarkCache(ctx context.Context, domain string, result CacheResult) {
	RecordCacheLookup(ctx, domain, result)
	tags := TagsFromContext(ctx)
	if tags == nil {
		return
	}
	if tags.CacheResult == CacheMiss && result == CacheHit {
		return
	}
	tags.CacheResult = result
}
