package chat

import (
	"fmt"
	"time"

	"github.com/contentlab/seo-assistant/internal/models"
)

const sessionNameLimit = 50

// Activity is the label and kind recorded for a submission
type Activity struct {
	Name string
	Type models.SessionType
}

// SessionName shortens a user message to a session title
func SessionName(message string) string {
	r := []rune(message)
	if len(r) > sessionNameLimit {
		r = r[:sessionNameLimit]
	}
	return string(r) + "..."
}

// SessionID is the job id when the backend returned one, otherwise a
// timestamp based id
func SessionID(jobID string, now time.Time) string {
	if jobID != "" {
		return jobID
	}
	return fmt.Sprintf("session-%d", now.UnixMilli())
}

// DeriveSession turns an initial backend response into a dashboard session.
// Related posts are left empty until the detailed job completes.
func DeriveSession(initial *models.InitialData, jobID, message string, activity Activity, now time.Time) models.Session {
	data := models.NewAggregatedData()
	primary := -1

	if initial != nil {
		for i, kd := range initial.KeywordsData {
			kw := kd.ToKeyword()
			data.Keywords = append(data.Keywords, kw)
			if kw.Name == "" {
				continue
			}

			data.Suggested[kw.Name] = append([]string{}, kw.Suggestions...)
			if i < len(initial.PlatformTrendsMap) && initial.PlatformTrendsMap[i] != nil {
				data.PlatformTrends[kw.Name] = append([]models.PlatformScore(nil), initial.PlatformTrendsMap[i]...)
			} else {
				data.PlatformTrends[kw.Name] = []models.PlatformScore{}
			}

			if primary < 0 && initial.PrimaryKeywordName != "" && kw.Name == initial.PrimaryKeywordName {
				primary = i
			}
		}
	}
	if primary < 0 && len(data.Keywords) > 0 {
		primary = 0
	}

	id := SessionID(jobID, now)
	session := models.Session{
		ID:              id,
		Name:            SessionName(message),
		Type:            activity.Type,
		Timestamp:       now.UnixMilli(),
		LastUserMessage: message,
		AllData:         data,
		RecentGenerations: []models.RecentGeneration{{
			ID:        models.ID(id),
			Name:      activity.Name,
			Type:      activity.Type,
			Timestamp: now.UnixMilli(),
		}},
	}
	if primary >= 0 {
		kw := data.Keywords[primary].Clone()
		session.SelectedKeyword = &kw
	}
	return session
}
