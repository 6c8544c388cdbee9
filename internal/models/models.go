package models

import (
	"encoding/json"
	"fmt"
)

// ID is an opaque identifier. The backend serializes GraphQL IDs as strings,
// while locally created records historically used numbers, so both decode.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

// Keyword is a tracked search term with traffic metrics
type Keyword struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Traffic     int      `json:"traffic"`
	Trend       []int    `json:"trend"`        // last 7 data points
	PrevTraffic int      `json:"prev_traffic"`
	Suggestions []string `json:"suggestions"`
}

// PlatformScore is a per-platform popularity score for a keyword
type PlatformScore struct {
	Platform string `json:"platform"`
	Score    int    `json:"score"` // observed in [10,100]
}

// Post is a related article or discussion for a keyword
type Post struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Source string `json:"source"`
	Image  string `json:"image,omitempty"`
}

// AggregatedData is everything the dashboard shows for one session
type AggregatedData struct {
	Keywords       []Keyword                  `json:"keywords"`
	Suggested      map[string][]string        `json:"suggested"`
	PlatformTrends map[string][]PlatformScore `json:"platformTrends"`
	RelatedPosts   map[string][]Post          `json:"relatedPosts"`
}

// NewAggregatedData returns empty aggregated data with all maps allocated
func NewAggregatedData() AggregatedData {
	return AggregatedData{
		Keywords:       []Keyword{},
		Suggested:      make(map[string][]string),
		PlatformTrends: make(map[string][]PlatformScore),
		RelatedPosts:   make(map[string][]Post),
	}
}

// SuggestionsFor returns the suggestions for a keyword name, never nil
func (d AggregatedData) SuggestionsFor(name string) []string {
	if s, ok := d.Suggested[name]; ok && s != nil {
		return s
	}
	return []string{}
}

// TrendsFor returns the platform scores for a keyword name, never nil
func (d AggregatedData) TrendsFor(name string) []PlatformScore {
	if t, ok := d.PlatformTrends[name]; ok && t != nil {
		return t
	}
	return []PlatformScore{}
}

// PostsFor returns the related posts for a keyword name, never nil
func (d AggregatedData) PostsFor(name string) []Post {
	if p, ok := d.RelatedPosts[name]; ok && p != nil {
		return p
	}
	return []Post{}
}

// FindKeyword returns the index of the keyword with the given id, or -1
func (d AggregatedData) FindKeyword(id ID) int {
	for i, k := range d.Keywords {
		if k.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy
func (d AggregatedData) Clone() AggregatedData {
	out := NewAggregatedData()
	for _, k := range d.Keywords {
		out.Keywords = append(out.Keywords, k.Clone())
	}
	for name, s := range d.Suggested {
		out.Suggested[name] = append([]string(nil), s...)
	}
	for name, t := range d.PlatformTrends {
		out.PlatformTrends[name] = append([]PlatformScore(nil), t...)
	}
	for name, p := range d.RelatedPosts {
		out.RelatedPosts[name] = append([]Post(nil), p...)
	}
	return out
}

// Clone returns a deep copy
func (k Keyword) Clone() Keyword {
	k.Trend = append([]int(nil), k.Trend...)
	k.Suggestions = append([]string(nil), k.Suggestions...)
	return k
}

// SessionType records what kind of input produced a session
type SessionType string

const (
	SessionChat       SessionType = "chat"
	SessionTranscript SessionType = "transcript"
	SessionFile       SessionType = "file"
	SessionYouTube    SessionType = "youtube"
	SessionInitial    SessionType = "initial"
)

// Session is a saved unit of dashboard state
type Session struct {
	ID                  string                `json:"id"`
	Name                string                `json:"name"`
	Type                SessionType           `json:"type"`
	Timestamp           int64                 `json:"timestamp"` // epoch milliseconds
	LastUserMessage     string                `json:"lastUserMessage"`
	AllData             AggregatedData        `json:"allData"`
	SelectedKeyword     *Keyword              `json:"selectedKeyword"`
	ActivityTrends      []ActivityTrend       `json:"userActivityTrendsData,omitempty"`
	GenerationBreakdown []GenerationBreakdown `json:"generationTypeBreakdownData,omitempty"`
	RecentGenerations   []RecentGeneration    `json:"recentGenerations,omitempty"`
}

// Clone returns a deep copy
func (s Session) Clone() Session {
	s.AllData = s.AllData.Clone()
	if s.SelectedKeyword != nil {
		k := s.SelectedKeyword.Clone()
		s.SelectedKeyword = &k
	}
	s.ActivityTrends = append([]ActivityTrend(nil), s.ActivityTrends...)
	s.GenerationBreakdown = append([]GenerationBreakdown(nil), s.GenerationBreakdown...)
	s.RecentGenerations = append([]RecentGeneration(nil), s.RecentGenerations...)
	return s
}

// Sender identifies who wrote a chat message
type Sender string

const (
	SenderUser Sender = "User"
	SenderAI   Sender = "AI"
)

// ChatMessage is one entry in the transient chat log
type ChatMessage struct {
	ID             string       `json:"id"`
	Text           string       `json:"text"`
	Sender         Sender       `json:"sender"`
	IsThinking     bool         `json:"isThinking,omitempty"`
	ProcessingStep string       `json:"processingStep,omitempty"`
	Progress       float64      `json:"progress,omitempty"`
	InitialData    *InitialData `json:"initialData,omitempty"`
	JobID          string       `json:"jobId,omitempty"`
}

// ActivityTrend is one point of the user activity chart
type ActivityTrend struct {
	Name         string `json:"name"`
	Interactions int    `json:"interactions"`
	Chats        int    `json:"chats"`
	Uploads      int    `json:"uploads"`
}

// GenerationBreakdown is one slice of the generation type chart
type GenerationBreakdown struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// RecentGeneration is an entry in the recent activity list
type RecentGeneration struct {
	ID        ID          `json:"id"`
	Name      string      `json:"name"`
	Type      SessionType `json:"type"`
	Timestamp int64       `json:"timestamp"`
}
