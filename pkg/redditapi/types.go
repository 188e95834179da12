package redditapi

import "encoding/json"

// listing is the generic envelope of every listing endpoint.
type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// PostData is one submission (t3) from a subreddit listing.
type PostData struct {
	ID          string  `json:"id"`
	Fullname    string  `json:"name"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Permalink   string  `json:"permalink"`
}

// CommentData is one comment (t1) from a subreddit comment stream.
type CommentData struct {
	ID         string  `json:"id"`
	Fullname   string  `json:"name"`
	Subreddit  string  `json:"subreddit"`
	LinkID     string  `json:"link_id"`
	ParentID   string  `json:"parent_id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
}
