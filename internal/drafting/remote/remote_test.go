package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/drafting"
)

func TestAnalyzeSnakeCaseService(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body analyzeBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "uz", body.Language)
		assert.Equal(t, "kran oqyapti", body.Description)
		_, _ = w.Write([]byte(`{"suggested_title":"Kranni tuzatish","suggested_category":"Santexnika","refined_description":"Oshxonadagi kran oqmoqda.","estimated_budget_min":100000,"estimated_budget_max":250000}`))
	}))
	defer srv.Close()

	client, err := New(srv.URL, "secret", time.Second)
	require.NoError(t, err)

	draft, err := drafting.New(client).DraftFromDescription(context.Background(), "  kran oqyapti ", domain.LocaleUZ)
	require.NoError(t, err)
	assert.Equal(t, "Santexnika", draft.SuggestedCategory)
	assert.Equal(t, 100000.0, draft.EstimatedBudgetMin)
	assert.EqualValues(t, 1, calls.Load())
}

func TestAnalyzeNon2xxIsUpstream(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := New(srv.URL, "", time.Second)
	require.NoError(t, err)

	_, err = drafting.New(client).DraftFromDescription(context.Background(), "paint a wall", domain.LocaleRU)
	require.ErrorIs(t, err, drafting.ErrUpstream)
	assert.EqualValues(t, 1, calls.Load(), "single attempt")
}

func TestAnalyzeCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := New(srv.URL, "", 5*time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = drafting.New(client).DraftFromDescription(ctx, "paint a wall", domain.LocaleRU)
	require.ErrorIs(t, err, drafting.ErrUpstream)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDescribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/describe", r.URL.Path)
		var body describeBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Сантехника", body.CategoryID)
		_, _ = w.Write([]byte(`{"description":"Замена смесителя."}`))
	}))
	defer srv.Close()

	client, err := New(srv.URL, "", time.Second)
	require.NoError(t, err)

	text, err := drafting.New(client).DescribeTask(context.Background(), "Кран", "Сантехника", domain.LocaleRU)
	require.NoError(t, err)
	assert.Equal(t, "Замена смесителя.", text)
}

func TestNewWithoutEndpoint(t *testing.T) {
	_, err := New("", "", 0)
	require.ErrorIs(t, err, drafting.ErrConfiguration)
}

func TestConcurrentFirstRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"description":"Описание"}`))
	}))
	defer srv.Close()

	client, err := New(srv.URL, "", time.Second)
	require.NoError(t, err)
	require.NotNil(t, client.HTTPClient)
	bare := &Client{BaseURL: srv.URL, Timeout: time.Second}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		for _, c := range []*Client{client, bare} {
			wg.Add(1)
			go func(c *Client) {
				defer wg.Done()
				_, err := c.Describe(context.Background(), drafting.DescribeRequest{Title: "Кран", Category: "Сантехника", Locale: domain.LocaleRU})
				assert.NoError(t, err)
			}(c)
		}
	}
	wg.Wait()
	assert.Nil(t, bare.HTTPClient, "requests never write to the client")
}
