package tasks

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toxicrawl/toxicrawl/internal/testutil"
)

func newTestQueueManager(t *testing.T) (*QueueManager, *asynq.Inspector) {
	t.Helper()

	mr := testutil.NewMiniredis(t)
	redisOpt := &asynq.RedisClientOpt{Addr: mr.Addr()}

	qm := NewQueueManager(redisOpt)
	t.Cleanup(func() {
		if err := qm.Close(); err != nil {
			t.Logf("failed to close queue manager: %v", err)
		}
	})

	inspector := asynq.NewInspector(redisOpt)
	t.Cleanup(func() {
		if err := inspector.Close(); err != nil {
			t.Logf("failed to close inspector: %v", err)
		}
	})

	return qm, inspector
}

func TestQueueManager_ScheduleImmediate(t *testing.T) {
	qm, inspector := newTestQueueManager(t)

	err := qm.ScheduleCatalogCrawl(CatalogCrawlPayload{
		Board:      "g",
		Watermarks: map[int64]int64{100: 1700000000},
	}, 0)
	require.NoError(t, err)

	pending, err := inspector.ListPendingTasks("catalog-g")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, TypeCatalogCrawl, pending[0].Type)
	assert.Equal(t, defaultMaxRetry, pending[0].MaxRetry)

	var got CatalogCrawlPayload

	require.NoError(t, json.Unmarshal(pending[0].Payload, &got))
	assert.Equal(t, "g", got.Board)
	assert.Equal(t, int64(1700000000), got.Watermarks[100])
}

func TestQueueManager_ScheduleDelayed(t *testing.T) {
	qm, inspector := newTestQueueManager(t)

	err := qm.ScheduleSubredditPosts(SubredditPostsPayload{Subreddit: "golang"}, time.Minute)
	require.NoError(t, err)

	scheduled, err := inspector.ListScheduledTasks("posts-golang")
	require.NoError(t, err)
	require.Len(t, scheduled, 1, "delayed jobs land in the scheduled set, not pending")
	assert.Equal(t, TypeSubredditPosts, scheduled[0].Type)

	pending, err := inspector.ListPendingTasks("posts-golang")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestQueueManager_RejectsInvalidPayload(t *testing.T) {
	qm, inspector := newTestQueueManager(t)

	err := qm.ScheduleThreadCrawl(ThreadCrawlPayload{Board: "g"}, 0)
	require.ErrorIs(t, err, ErrInvalidPayload)

	queues, err := inspector.Queues()
	require.NoError(t, err)
	assert.Empty(t, queues, "invalid payloads never reach the broker")
}

func TestQueueManager_ToxicityRoutesByCollection(t *testing.T) {
	qm, inspector := newTestQueueManager(t)

	err := qm.ScheduleToxicity(ToxicityPayload{
		CollectionID: "g",
		Items:        []ToxicityItem{{ItemID: "123", Text: "hello"}},
	}, 0)
	require.NoError(t, err)

	pending, err := inspector.ListPendingTasks("toxicity-g")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, TypeToxicity, pending[0].Type)
}

func TestQueueManager_GetQueueStats(t *testing.T) {
	qm, _ := newTestQueueManager(t)

	info, err := qm.GetQueueStats("catalog-missing")
	require.NoError(t, err)
	assert.Equal(t, "catalog-missing", info.Queue)
	assert.Zero(t, info.Pending)

	require.NoError(t, qm.ScheduleBoardList(BoardListPayload{}, 0))

	info, err = qm.GetQueueStats(QueueBoardList)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pending)
}
