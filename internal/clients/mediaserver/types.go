package mediaserver

type requestPayload struct {
	MediaType string `json:"mediaType"`
	MediaID   int    `json:"mediaId"`
}

// MediaRequest represents a submitted media request.
type MediaRequest struct {
	ID        int    `json:"id"`
	Status    int    `json:"status"`
	CreatedAt string `json:"createdAt"`
	Media     struct {
		TMDBID    int    `json:"tmdbId"`
		MediaType string `json:"mediaType"`
	} `json:"media"`
}

// ServerStatus represents the media server's status endpoint response.
type ServerStatus struct {
	Version         string `json:"version"`
	CommitTag       string `json:"commitTag"`
	UpdateAvailable bool   `json:"updateAvailable"`
}
