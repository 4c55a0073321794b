package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTaggedRequest() *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/blogs", nil)
	return InjectTags(r)
}

func TestInjectTags_DefaultsCacheResultToBypass(t *testing.T) {
	tags := GetTags(newTaggedRequest())
	require.NotNil(t, tags)
	require.Equal(t, CacheBypass, tags.CacheResult)
	require.Empty(t, tags.Domain)
}

func TestGetTags_NilWithoutInject(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/blogs", nil)
	require.Nil(t, GetTags(r))
	require.Nil(t, TagsFromContext(context.Background()))
}

func TestSetDomain_NoopWithoutInject(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/blogs", nil)
	SetDomain(r, "blogs") // should not panic
	SetEndpoint(r, "list")
	SetCacheResult(r, CacheHit)
}

func TestTagsMutationVisibleThroughPointer(t *testing.T) {
	r := newTaggedRequest()
	tags := GetTags(r)

	SetDomain(r, "notes")
	SetCacheResult(r, CacheHit)
	SetEndpoint(r, "search")

	require.Equal(t, "notes", tags.Domain)
	require.Equal(t, CacheHit, tags.CacheResult)
	require.Equal(t, "search", tags.Endpoint)
	require.Same(t, tags, TagsFromContext(r.Context()))
}
