package models

// KeywordData is a keyword as the backend returns it
type KeywordData struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Traffic     int      `json:"traffic"`
	PrevTraffic int      `json:"prevTraffic"`
	Trend       []int    `json:"trend"`
	Suggestions []string `json:"suggestions"`
}

// ToKeyword converts the backend shape into a dashboard keyword
func (k KeywordData) ToKeyword() Keyword {
	suggestions := k.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return Keyword{
		ID:          k.ID,
		Name:        k.Name,
		Traffic:     k.Traffic,
		Trend:       k.Trend,
		PrevTraffic: k.PrevTraffic,
		Suggestions: suggestions,
	}
}

// InitialData is the fast-path result returned with a job id
type InitialData struct {
	KeywordsData       []KeywordData     `json:"keywordsData"`
	PlatformTrendsMap  [][]PlatformScore `json:"platformTrendsMap"` // index-aligned with KeywordsData
	PrimaryKeywordName string            `json:"primaryKeywordName"`
}

// ChatResponse is the sendChatMessage payload
type ChatResponse struct {
	JobID       string       `json:"jobId"`
	InitialData *InitialData `json:"initialData"`
}

// JobStatus is the state of a backend job
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobNotFound  JobStatus = "NOT_FOUND"
)

// KeywordPosts pairs a keyword name with its related posts
type KeywordPosts struct {
	KeywordName string `json:"keywordName"`
	Posts       []Post `json:"posts"`
}

// KeywordTrends pairs a keyword name with its platform scores
type KeywordTrends struct {
	KeywordName string          `json:"keywordName"`
	Trends      []PlatformScore `json:"trends"`
}

// KeywordSuggestions pairs a keyword name with suggested alternatives
type KeywordSuggestions struct {
	Keyword     string   `json:"keyword"`
	Suggestions []string `json:"suggestions"`
}

// DetailedJobResult is the getDetailedDashboardJobResult payload
type DetailedJobResult struct {
	JobID           string         `json:"jobId"`
	Status          JobStatus      `json:"status"`
	RelatedPostsMap []KeywordPosts `json:"relatedPostsMap"`
}

// RelatedPostsByKeyword flattens the result into a map keyed by keyword name.
// Entries without a keyword name are dropped.
func (r DetailedJobResult) RelatedPostsByKeyword() map[string][]Post {
	out := make(map[string][]Post, len(r.RelatedPostsMap))
	for _, item := range r.RelatedPostsMap {
		if item.KeywordName == "" {
			continue
		}
		posts := item.Posts
		if posts == nil {
			posts = []Post{}
		}
		out[item.KeywordName] = posts
	}
	return out
}

// AllDashboardData is the getAllDashboardData payload
type AllDashboardData struct {
	Keywords              []KeywordData        `json:"keywords"`
	Suggested             []KeywordSuggestions `json:"suggested"`
	PlatformTrendsInitial []KeywordTrends      `json:"platformTrendsInitial"`
	RelatedPostsInitial   []KeywordPosts       `json:"relatedPostsInitial"`
}

// DashboardSnapshot bundles the initial dashboard query with its sibling queries
type DashboardSnapshot struct {
	Data                AllDashboardData
	ActivityTrends      []ActivityTrend
	GenerationBreakdown []GenerationBreakdown
}
