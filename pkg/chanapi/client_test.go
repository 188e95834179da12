package chanapi

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

	return NewClient(log, &Config{BaseURL: srv.URL, Timeout: 5 * time.Second}).
		WithRetryPolicy(httpx.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 1.5})
}

func TestClient_Boards(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/boards.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"boards":[{"board":"g","title":"Technology","ws_board":1,"pages":10}]}`))
	}))

	boards, err := client.Boards(context.Background())

	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "g", boards[0].Board)
	assert.Equal(t, "Technology", boards[0].Title)
	assert.Equal(t, 1, boards[0].WsBoard)
}

func TestClient_Catalog(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/g/catalog.json", r.URL.Path)
		_, _ = w.Write([]byte(`[{"page":1,"threads":[{"no":100,"last_modified":1700000000,"replies":3,"com":"hello"}]}]`))
	}))

	pages, err := client.Catalog(context.Background(), "g")

	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Len(t, pages[0].Threads, 1)
	assert.Equal(t, int64(100), pages[0].Threads[0].No)
	assert.Equal(t, int64(1700000000), pages[0].Threads[0].LastModified)
}

func TestClient_Thread(t *testing.T) {
	t.Run("returns posts", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/g/thread/100.json", r.URL.Path)
			_, _ = w.Write([]byte(`{"posts":[{"no":100,"resto":0,"com":"op"},{"no":101,"resto":100,"com":"reply"}]}`))
		}))

		posts, err := client.Thread(context.Background(), "g", 100)

		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, int64(101), posts[1].No)
		assert.Equal(t, int64(100), posts[1].Resto)
	})

	t.Run("pruned thread maps to ErrNotFound without retry", func(t *testing.T) {
		calls := 0
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.WriteHeader(http.StatusNotFound)
		}))

		_, err := client.Thread(context.Background(), "g", 999)

		require.Error(t, err)
		assert.ErrorIs(t, err, httpx.ErrNotFound)
		assert.Equal(t, 1, calls)
	})
}

func TestClient_RetriesServerErrors(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"boards":[]}`))
	}))

	_, err := client.Boards(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestClient_MalformedJSONIsPermanent(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"boards":`))
	}))

	_, err := client.Boards(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
