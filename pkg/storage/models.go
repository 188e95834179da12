package storage

import "time"

// Board is one discovered board row.
type Board struct {
	BoardCode       string `db:"board_code"`
	BoardTitle      string `db:"board_title"`
	MetaDescription string `db:"meta_description"`
	WsBoard         int    `db:"ws_board"`
}

// Thread is one catalog monitoring row. Replies, images and last_modified are
// counters updated last-write-wins on every catalog cycle.
type Thread struct {
	BoardCode    string `db:"board_code"`
	ThreadID     int64  `db:"thread_id"`
	Title        string `db:"title"`
	Excerpt      string `db:"excerpt"`
	CreatedTime  int64  `db:"created_time"`
	LastModified int64  `db:"last_modified"`
	Replies      int    `db:"replies"`
	Images       int    `db:"images"`
}

// Post is one imageboard post row, immutable after insert.
type Post struct {
	BoardCode string `db:"board_code"`
	PostNo    int64  `db:"post_no"`
	ThreadID  int64  `db:"thread_id"`
	ReplyTo   int64  `db:"reply_to"`
	Author    string `db:"author"`
	Subject   string `db:"subject"`
	BodyHTML  string `db:"body_html"`
	PostedAt  int64  `db:"posted_at"`
	Country   string `db:"country"`
}

// SubredditPost is one link-aggregator submission row.
type SubredditPost struct {
	Subreddit   string `db:"subreddit"`
	PostID      string `db:"post_id"`
	Fullname    string `db:"fullname"`
	Title       string `db:"title"`
	Selftext    string `db:"selftext"`
	Author      string `db:"author"`
	Score       int    `db:"score"`
	NumComments int    `db:"num_comments"`
	CreatedUTC  int64  `db:"created_utc"`
	Permalink   string `db:"permalink"`
}

// SubredditComment is one comment-stream row.
type SubredditComment struct {
	Subreddit  string `db:"subreddit"`
	CommentID  string `db:"comment_id"`
	LinkID     string `db:"link_id"`
	ParentID   string `db:"parent_id"`
	Author     string `db:"author"`
	Body       string `db:"body"`
	Score      int    `db:"score"`
	CreatedUTC int64  `db:"created_utc"`
}

// ToxicityScore is one scored item. Nil pointers persist as NULL: the
// attribute was not computed for this language, which is distinct from a
// computed zero.
type ToxicityScore struct {
	CollectionID   string   `db:"collection_id"`
	ItemID         string   `db:"item_id"`
	Language       string   `db:"language"`
	Toxicity       *float64 `db:"toxicity"`
	SevereToxicity *float64 `db:"severe_toxicity"`
	IdentityAttack *float64 `db:"identity_attack"`
	Insult         *float64 `db:"insult"`
	Threat         *float64 `db:"threat"`
	ScoredAt       time.Time `db:"scored_at"`
}

// UnscoredPost is one post lacking a toxicity row, selected for backfill.
type UnscoredPost struct {
	BoardCode string `db:"board_code"`
	PostNo    int64  `db:"post_no"`
	ReplyTo   int64  `db:"reply_to"`
	BodyHTML  string `db:"body_html"`
}
