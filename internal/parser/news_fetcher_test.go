package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewsFetcherScrapesCompanyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
<h1>Acme launches its next-generation cloud platform for enterprises</h1>
<h2>nav</h2>
<article>Acme reports record quarterly growth driven by AI infrastructure demand</article>
<div class="news">Acme opens new engineering hub focused on distributed systems talent</div>
</body></html>`))
	}))
	defer server.Close()

	fetcher := NewNewsFetcher(5*time.Second, 3)
	items, err := fetcher.Fetch(context.Background(), "Acme", server.URL)

	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Contains(t, items[0].Title, "next-generation cloud platform")
	assert.Equal(t, server.URL, items[0].Source, "公司页面抓取的条目应记录来源URL")
	// 过短的导航文字应被过滤
	for _, item := range items {
		assert.Greater(t, len(item.Title), minHeadlineLength)
	}
}

func TestNewsFetcherParsesRSS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<rss><channel>
<item><title>Acme acquires vector database startup</title></item>
<item><title>Acme releases open source Go SDK</title></item>
</channel></rss>`))
	}))
	defer server.Close()

	fetcher := NewNewsFetcher(5*time.Second, 3)
	items, err := fetcher.fetchFromGoogleNewsURL(context.Background(), server.URL)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Acme acquires vector database startup", items[0].Title)
	assert.Equal(t, "google-news", items[0].Source)
}

func TestNewsFetcherErrorOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fetcher := NewNewsFetcher(5*time.Second, 3)
	_, err := fetcher.Fetch(context.Background(), "Acme", server.URL)

	assert.Error(t, err)
}

func TestNewsFetcherRequiresNameOrURL(t *testing.T) {
	fetcher := NewNewsFetcher(5*time.Second, 3)
	_, err := fetcher.Fetch(context.Background(), "  ", "")
	assert.Error(t, err)
}
