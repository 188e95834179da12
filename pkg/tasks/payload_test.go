package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload interface{ Validate() error }
		wantErr bool
	}{
		{
			name:    "board list is always valid",
			payload: BoardListPayload{},
		},
		{
			name:    "catalog crawl valid",
			payload: CatalogCrawlPayload{Board: "g"},
		},
		{
			name:    "catalog crawl missing board",
			payload: CatalogCrawlPayload{},
			wantErr: true,
		},
		{
			name:    "thread crawl valid",
			payload: ThreadCrawlPayload{Board: "g", ThreadID: 12345},
		},
		{
			name:    "thread crawl missing board",
			payload: ThreadCrawlPayload{ThreadID: 12345},
			wantErr: true,
		},
		{
			name:    "thread crawl non-positive thread id",
			payload: ThreadCrawlPayload{Board: "g", ThreadID: 0},
			wantErr: true,
		},
		{
			name:    "subreddit posts valid",
			payload: SubredditPostsPayload{Subreddit: "golang"},
		},
		{
			name:    "subreddit posts missing subreddit",
			payload: SubredditPostsPayload{},
			wantErr: true,
		},
		{
			name:    "subreddit comments missing subreddit",
			payload: SubredditCommentsPayload{},
			wantErr: true,
		},
		{
			name: "toxicity valid",
			payload: ToxicityPayload{
				CollectionID: "g",
				Items:        []ToxicityItem{{ItemID: "1", Text: "hello"}},
			},
		},
		{
			name:    "toxicity missing collection",
			payload: ToxicityPayload{Items: []ToxicityItem{{ItemID: "1"}}},
			wantErr: true,
		},
		{
			name:    "toxicity empty items",
			payload: ToxicityPayload{CollectionID: "g"},
			wantErr: true,
		},
		{
			name: "toxicity item missing id",
			payload: ToxicityPayload{
				CollectionID: "g",
				Items:        []ToxicityItem{{Text: "hello"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPayload)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQueueNames(t *testing.T) {
	assert.Equal(t, "catalog-g", QueueCatalog("g"))
	assert.Equal(t, "threads-pol", QueueThreads("pol"))
	assert.Equal(t, "posts-golang", QueueSubredditPosts("golang"))
	assert.Equal(t, "comments-golang", QueueSubredditComments("golang"))
	assert.Equal(t, "toxicity-g", QueueToxicity("g"))
}
