package tracker

// IDs holds the cross-service identifiers the tracker attaches to an item.
type IDs struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// Movie represents a movie entry on the tracker
type Movie struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// Show represents a show entry on the tracker
type Show struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// WatchlistItem represents one entry in the user's watchlist. Exactly one of
// Movie or Show is set, per the Type discriminator.
type WatchlistItem struct {
	Rank     int    `json:"rank"`
	ListedAt string `json:"listed_at"`
	Type     string `json:"type"`
	Movie    *Movie `json:"movie,omitempty"`
	Show     *Show  `json:"show,omitempty"`
}

// TMDBID returns the TMDB identifier of the underlying media item, or 0 when
// the item carries none.
func (w WatchlistItem) TMDBID() int {
	switch {
	case w.Movie != nil:
		return w.Movie.IDs.TMDB
	case w.Show != nil:
		return w.Show.IDs.TMDB
	}
	return 0
}
