package catalog

// ListItem represents one entry in a catalog list.
type ListItem struct {
	ID        int    `json:"id"`
	Rank      int    `json:"rank"`
	Title     string `json:"title"`
	Year      int    `json:"release_year"`
	MediaType string `json:"mediatype"`
	IMDBID    string `json:"imdb_id,omitempty"`
	TVDBID    int    `json:"tvdbid,omitempty"`
}
