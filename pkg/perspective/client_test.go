package perspective

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toxicrawl/toxicrawl/pkg/httpx"
)

func newTestClient(t *testing.T, handler http.Handler, keys ...string) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	if len(keys) == 0 {
		keys = []string{"key-one"}
	}

	client, err := NewClient(log, &Config{Endpoint: srv.URL, APIKeys: keys, Timeout: 5 * time.Second})
	require.NoError(t, err)

	return client.WithRetryPolicy(httpx.RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, Multiplier: 1.5})
}

func TestNewClient_RequiresKeys(t *testing.T) {
	log := logrus.New()

	_, err := NewClient(log, &Config{})

	assert.ErrorIs(t, err, ErrNoAPIKeys)
}

func TestClient_Score(t *testing.T) {
	var seenBody analyzeRequest

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-one", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seenBody))

		_, _ = w.Write([]byte(`{"attributeScores":{
			"TOXICITY":{"summaryScore":{"value":0.82}},
			"SEVERE_TOXICITY":{"summaryScore":{"value":0.41}},
			"IDENTITY_ATTACK":{"summaryScore":{"value":0.12}},
			"INSULT":{"summaryScore":{"value":0.77}},
			"THREAT":{"summaryScore":{"value":0.05}}
		}}`))
	}))

	scores, err := client.Score(context.Background(), "you are terrible", "en")

	require.NoError(t, err)
	require.NotNil(t, scores.Toxicity)
	assert.InDelta(t, 0.82, *scores.Toxicity, 1e-9)
	require.NotNil(t, scores.Threat)
	assert.InDelta(t, 0.05, *scores.Threat, 1e-9)

	assert.Equal(t, "you are terrible", seenBody.Comment.Text)
	assert.Equal(t, []string{"en"}, seenBody.Languages)
	assert.True(t, seenBody.DoNotStore)
	assert.Len(t, seenBody.RequestedAttributes, len(Attributes))
}

// Unsupported attribute/language pairs come back absent and must stay nil,
// never zero.
func TestClient_Score_UnsupportedAttributeStaysNil(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"attributeScores":{"TOXICITY":{"summaryScore":{"value":0.3}}}}`))
	}))

	scores, err := client.Score(context.Background(), "bonjour", "fr")

	require.NoError(t, err)
	require.NotNil(t, scores.Toxicity)
	assert.Nil(t, scores.SevereToxicity)
	assert.Nil(t, scores.IdentityAttack)
	assert.Nil(t, scores.Insult)
	assert.Nil(t, scores.Threat)
}

// Two 429s then success: the third attempt must arrive bearing the rotated
// credential.
func TestClient_Score_RotatesKeysOn429(t *testing.T) {
	var keysSeen []string

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keysSeen = append(keysSeen, r.URL.Query().Get("key"))

		if len(keysSeen) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		_, _ = w.Write([]byte(`{"attributeScores":{"TOXICITY":{"summaryScore":{"value":0.9}}}}`))
	}), "key-one", "key-two")

	scores, err := client.Score(context.Background(), "text", "en")

	require.NoError(t, err)
	require.NotNil(t, scores.Toxicity)
	assert.Equal(t, []string{"key-one", "key-two", "key-one"}, keysSeen)
}

func TestClient_Score_404IsPermanent(t *testing.T) {
	calls := 0

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Score(context.Background(), "text", "en")

	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestClient_Score_ExhaustsAttemptCeiling(t *testing.T) {
	calls := 0

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}), "key-one", "key-two")

	_, err := client.Score(context.Background(), "text", "en")

	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrRateLimited)
	assert.Equal(t, 4, calls)
}
