package redditapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toxicrawl/toxicrawl/pkg/httpx"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return NewClient(log, &Config{BaseURL: srv.URL, Timeout: 5 * time.Second, Limit: 100}).
		WithRetryPolicy(httpx.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 1.5})
}

func TestClient_NewPosts(t *testing.T) {
	t.Run("first page", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/r/technology/new.json", r.URL.Path)
			assert.Equal(t, "100", r.URL.Query().Get("limit"))
			assert.Empty(t, r.URL.Query().Get("after"))

			_, _ = w.Write([]byte(`{"kind":"Listing","data":{"after":"t3_abc","children":[
				{"kind":"t3","data":{"id":"p1","name":"t3_p1","subreddit":"technology","title":"First","score":10,"num_comments":2,"created_utc":1761000000}},
				{"kind":"t3","data":{"id":"p2","name":"t3_p2","subreddit":"technology","title":"Second","selftext":"body","created_utc":1761000100}}
			]}}`))
		}))

		page, err := client.NewPosts(context.Background(), "technology", "")

		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "t3_abc", page.After)
		assert.Equal(t, "p1", page.Items[0].ID)
		assert.Equal(t, "body", page.Items[1].Selftext)
	})

	t.Run("forwards the cursor", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "t3_abc", r.URL.Query().Get("after"))
			_, _ = w.Write([]byte(`{"kind":"Listing","data":{"after":null,"children":[]}}`))
		}))

		page, err := client.NewPosts(context.Background(), "technology", "t3_abc")

		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Empty(t, page.After, "exhausted listing yields no cursor")
	})
}

func TestClient_Comments(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/technology/comments.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"kind":"Listing","data":{"after":"t1_xyz","children":[
			{"kind":"t1","data":{"id":"c1","name":"t1_c1","subreddit":"technology","link_id":"t3_p1","parent_id":"t3_p1","body":"a comment","score":5,"created_utc":1761000200}}
		]}}`))
	}))

	page, err := client.Comments(context.Background(), "technology", "")

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "c1", page.Items[0].ID)
	assert.Equal(t, "a comment", page.Items[0].Body)
	assert.Equal(t, "t1_xyz", page.After)
}

func TestClient_MalformedChildIsSkipped(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"kind":"Listing","data":{"after":"","children":[
			{"kind":"t3","data":{"id":"ok","created_utc":1}},
			{"kind":"t3","data":"not an object"}
		]}}`))
	}))

	page, err := client.NewPosts(context.Background(), "technology", "")

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "ok", page.Items[0].ID)
}

func TestClient_RateLimitRetriesThenFails(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.NewPosts(context.Background(), "technology", "")

	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrRateLimited)
	assert.Equal(t, 2, calls)
}
