package models

// Image represents an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Profile is the current user's Spotify profile.
type Profile struct {
	ID           string            `json:"id"`
	DisplayName  string            `json:"display_name"`
	Email        string            `json:"email"`
	Country      string            `json:"country"`
	Product      string            `json:"product"`
	Images       []Image           `json:"images"`
	ExternalURLs map[string]string `json:"external_urls"`
}

// Name returns the display name, falling back to the Spotify user ID.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// Show is a podcast show.
type Show struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Publisher     string            `json:"publisher"`
	Description   string            `json:"description"`
	MediaType     string            `json:"media_type"`
	Explicit      bool              `json:"explicit"`
	TotalEpisodes int               `json:"total_episodes"`
	Images        []Image           `json:"images"`
	ExternalURLs  map[string]string `json:"external_urls"`
}

// SavedShow is a show in the user's library.
type SavedShow struct {
	AddedAt string `json:"added_at"`
	Show    Show   `json:"show"`
}

// ResumePoint is the user's playback position within an episode.
type ResumePoint struct {
	FullyPlayed      bool  `json:"fully_played"`
	ResumePositionMS int64 `json:"resume_position_ms"`
}

// Episode is a podcast episode with the user's playback position.
type Episode struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	ReleaseDate  string            `json:"release_date"`
	DurationMS   int64             `json:"duration_ms"`
	Explicit     bool              `json:"explicit"`
	IsPlayable   bool              `json:"is_playable"`
	ResumePoint  ResumePoint       `json:"resume_point"`
	Images       []Image           `json:"images"`
	ExternalURLs map[string]string `json:"external_urls"`
}

// EnrichedEpisode is an [Episode] with progress fields derived for display.
type EnrichedEpisode struct {
	Episode
	ResumeMinutes   int `json:"resume_point_min"`
	DurationMinutes int `json:"duration_min"`
	PctCompleted    int `json:"pct_completed"`
}

// ImageURL returns the URL of the first image, or "" when there is none.
func ImageURL(images []Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
