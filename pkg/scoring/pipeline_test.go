package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toxicrawl/toxicrawl/pkg/httpx"
	"github.com/toxicrawl/toxicrawl/pkg/perspective"
	"github.com/toxicrawl/toxicrawl/pkg/storage"
)

func ptr(v float64) *float64 { return &v }

type fakeScorer struct {
	calls  []string
	scores perspective.Scores
	errFor map[string]error
}

func (s *fakeScorer) Score(_ context.Context, text, _ string) (perspective.Scores, error) {
	s.calls = append(s.calls, text)

	if err, ok := s.errFor[text]; ok {
		return perspective.Scores{}, err
	}

	return s.scores, nil
}

type fakeWriter struct {
	flushes [][]storage.ToxicityScore
	err     error
}

func (w *fakeWriter) UpsertScores(_ context.Context, rows []storage.ToxicityScore) error {
	if w.err != nil {
		return w.err
	}

	batch := make([]storage.ToxicityScore, len(rows))
	copy(batch, rows)
	w.flushes = append(w.flushes, batch)

	return nil
}

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func TestPipeline_ScoreBatch(t *testing.T) {
	t.Run("normalizes before scoring", func(t *testing.T) {
		scorer := &fakeScorer{scores: perspective.Scores{Toxicity: ptr(0.1)}}
		writer := &fakeWriter{}
		p := NewPipeline(testLog(), scorer, writer)

		stats, err := p.ScoreBatch(context.Background(), []Item{
			{CollectionID: "g", ItemID: "1", Text: "<p>you are great</p>"},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Scored)
		require.Len(t, scorer.calls, 1)
		assert.Equal(t, "you are great", scorer.calls[0])
	})

	t.Run("skips items that normalize to empty", func(t *testing.T) {
		scorer := &fakeScorer{scores: perspective.Scores{Toxicity: ptr(0.1)}}
		writer := &fakeWriter{}
		p := NewPipeline(testLog(), scorer, writer)

		stats, err := p.ScoreBatch(context.Background(), []Item{
			{CollectionID: "g", ItemID: "1", Text: ">>12345"},
			{CollectionID: "g", ItemID: "2", Text: "   "},
			{CollectionID: "g", ItemID: "3", Text: "real content"},
		})

		require.NoError(t, err)
		assert.Equal(t, 2, stats.Skipped)
		assert.Equal(t, 1, stats.Scored)
		assert.Len(t, scorer.calls, 1, "skipped items never reach the scoring call")
		require.Len(t, writer.flushes, 1)
		require.Len(t, writer.flushes[0], 1)
		assert.Equal(t, "3", writer.flushes[0][0].ItemID)
	})

	t.Run("failed items are dropped, batch continues", func(t *testing.T) {
		scorer := &fakeScorer{
			scores: perspective.Scores{Toxicity: ptr(0.5)},
			errFor: map[string]error{"bad": httpx.ErrRateLimited},
		}
		writer := &fakeWriter{}
		p := NewPipeline(testLog(), scorer, writer)

		stats, err := p.ScoreBatch(context.Background(), []Item{
			{CollectionID: "g", ItemID: "1", Text: "bad"},
			{CollectionID: "g", ItemID: "2", Text: "fine"},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, 1, stats.Scored)
		require.Len(t, writer.flushes, 1)
		assert.Equal(t, "2", writer.flushes[0][0].ItemID)
	})

	t.Run("flushes every N scored items", func(t *testing.T) {
		scorer := &fakeScorer{scores: perspective.Scores{Toxicity: ptr(0.2)}}
		writer := &fakeWriter{}
		p := NewPipeline(testLog(), scorer, writer).WithFlushSize(2)

		items := make([]Item, 5)
		for i := range items {
			items[i] = Item{CollectionID: "g", ItemID: ItemID(int64(i + 1)), Text: "text"}
		}

		stats, err := p.ScoreBatch(context.Background(), items)

		require.NoError(t, err)
		assert.Equal(t, 5, stats.Scored)
		require.Len(t, writer.flushes, 3)
		assert.Len(t, writer.flushes[0], 2)
		assert.Len(t, writer.flushes[1], 2)
		assert.Len(t, writer.flushes[2], 1, "remainder flushed when the batch is exhausted")
	})

	t.Run("null scores stay null through persistence", func(t *testing.T) {
		scorer := &fakeScorer{scores: perspective.Scores{Toxicity: ptr(0.3)}} // others unsupported
		writer := &fakeWriter{}
		p := NewPipeline(testLog(), scorer, writer)

		_, err := p.ScoreBatch(context.Background(), []Item{
			{CollectionID: "g", ItemID: "1", Text: "text", Language: "fr"},
		})

		require.NoError(t, err)
		require.Len(t, writer.flushes, 1)
		row := writer.flushes[0][0]
		require.NotNil(t, row.Toxicity)
		assert.InDelta(t, 0.3, *row.Toxicity, 1e-9)
		assert.Nil(t, row.SevereToxicity)
		assert.Nil(t, row.Threat)
		assert.Equal(t, "fr", row.Language)
	})

	t.Run("storage failure aborts the batch", func(t *testing.T) {
		scorer := &fakeScorer{scores: perspective.Scores{Toxicity: ptr(0.2)}}
		writer := &fakeWriter{err: errors.New("connection reset")}
		p := NewPipeline(testLog(), scorer, writer).WithFlushSize(1)

		_, err := p.ScoreBatch(context.Background(), []Item{
			{CollectionID: "g", ItemID: "1", Text: "text"},
			{CollectionID: "g", ItemID: "2", Text: "text"},
		})

		require.Error(t, err)
	})

	t.Run("defaults the language tag", func(t *testing.T) {
		scorer := &fakeScorer{scores: perspective.Scores{Toxicity: ptr(0.2)}}
		writer := &fakeWriter{}
		p := NewPipeline(testLog(), scorer, writer)

		_, err := p.ScoreBatch(context.Background(), []Item{
			{CollectionID: "g", ItemID: "1", Text: "text"},
		})

		require.NoError(t, err)
		assert.Equal(t, perspective.DefaultLanguage, writer.flushes[0][0].Language)
	})
}
