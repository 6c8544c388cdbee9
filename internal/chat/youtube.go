package chat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var youtubeIDPattern = regexp.MustCompile(`(?:youtu\.be/|youtube\.com/(?:watch\?(?:.*&)?v=|embed/|v/|shorts/)?)([a-zA-Z0-9_-]{11})`)

const placeholderThumbnail = "https://placehold.co/120x90?text=Error"

// YouTubePreview is what the user confirms before a video is attached
type YouTubePreview struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	Valid     bool   `json:"valid"`
}

// ParseYouTubeURL extracts the 11 character video id from a YouTube link
func ParseYouTubeURL(raw string) (string, bool) {
	m := youtubeIDPattern.FindStringSubmatch(raw)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// NewYouTubePreview builds a preview for raw. Links without a recognizable
// video id get a synthetic url_ identifier instead of failing.
func NewYouTubePreview(raw string) YouTubePreview {
	raw = strings.TrimSpace(raw)
	id, ok := ParseYouTubeURL(raw)
	if !ok {
		return YouTubePreview{
			ID:        "url_" + uuid.NewString(),
			URL:       raw,
			Title:     raw,
			Thumbnail: placeholderThumbnail,
		}
	}
	return YouTubePreview{
		ID:        id,
		URL:       raw,
		Title:     fmt.Sprintf("YouTube Video (%s...)", id[:5]),
		Thumbnail: fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", id),
		Valid:     true,
	}
}
