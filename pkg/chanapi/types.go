package chanapi

// Board describes one board from /boards.json.
type Board struct {
	Board           string `json:"board"`
	Title           string `json:"title"`
	MetaDescription string `json:"meta_description"`
	WsBoard         int    `json:"ws_board"`
	Pages           int    `json:"pages"`
}

// boardsResponse is the envelope of /boards.json.
type boardsResponse struct {
	Boards []Board `json:"boards"`
}

// CatalogThread is one thread summary from /{board}/catalog.json.
type CatalogThread struct {
	No           int64  `json:"no"`
	LastModified int64  `json:"last_modified"`
	Subject      string `json:"sub"`
	Comment      string `json:"com"`
	Time         int64  `json:"time"`
	Replies      int    `json:"replies"`
	Images       int    `json:"images"`
	SemanticURL  string `json:"semantic_url"`
}

// CatalogPage is one page of the catalog listing.
type CatalogPage struct {
	Page    int             `json:"page"`
	Threads []CatalogThread `json:"threads"`
}

// Post is one post from /{board}/thread/{id}.json.
type Post struct {
	No          int64  `json:"no"`
	Resto       int64  `json:"resto"`
	Name        string `json:"name"`
	Subject     string `json:"sub"`
	Comment     string `json:"com"`
	Time        int64  `json:"time"`
	Country     string `json:"country"`
	CountryName string `json:"country_name"`
	Replies     int    `json:"replies"`
	Images      int    `json:"images"`
	Archived    int    `json:"archived"`
	ArchivedOn  int64  `json:"archived_on"`
}

// threadResponse is the envelope of /{board}/thread/{id}.json.
type threadResponse struct {
	Posts []Post `json:"posts"`
}
