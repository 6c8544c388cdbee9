package dashboard

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/contentlab/seo-assistant/internal/models"
	"github.com/google/uuid"
)

var (
	ErrEmptyKeyword     = errors.New("keyword name is empty")
	ErrDuplicateKeyword = errors.New("keyword already exists")
	ErrKeywordNotFound  = errors.New("keyword not found")
	ErrInvalidPosition  = errors.New("keyword position out of range")
)

const trendLength = 7

// NewKeyword creates a user-added keyword with synthetic metrics
func NewKeyword(name string, rng *rand.Rand) models.Keyword {
	trend := make([]int, trendLength)
	for i := range trend {
		trend[i] = rng.Intn(60) + 20
	}
	return models.Keyword{
		ID:          models.ID(uuid.NewString()),
		Name:        name,
		Traffic:     rng.Intn(5000) + 1000,
		Trend:       trend,
		PrevTraffic: rng.Intn(4000) + 500,
		Suggestions: []string{name + " ideas", name + " best practices"},
	}
}

// AddKeyword prepends a keyword built by build. Names are trimmed and
// compared case-insensitively against the existing list.
func AddKeyword(s *models.Session, name string, build func(name string) models.Keyword) (models.Keyword, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Keyword{}, ErrEmptyKeyword
	}
	for _, k := range s.AllData.Keywords {
		if strings.EqualFold(k.Name, name) {
			return models.Keyword{}, fmt.Errorf("%w: %s", ErrDuplicateKeyword, name)
		}
	}

	kw := build(name)
	s.AllData.Keywords = append([]models.Keyword{kw}, s.AllData.Keywords...)
	return kw, nil
}

// RenameKeyword changes a keyword's name. Unlike AddKeyword it does not
// reject names that collide with another keyword. A selected keyword
// follows the rename.
func RenameKeyword(s *models.Session, id models.ID, name string) (models.Keyword, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Keyword{}, ErrEmptyKeyword
	}
	i := s.AllData.FindKeyword(id)
	if i < 0 {
		return models.Keyword{}, fmt.Errorf("%w: %s", ErrKeywordNotFound, id)
	}

	s.AllData.Keywords[i].Name = name
	if s.SelectedKeyword != nil && s.SelectedKeyword.ID == id {
		s.SelectedKeyword.Name = name
	}
	return s.AllData.Keywords[i].Clone(), nil
}

// DeleteKeyword removes a keyword. Deleting the selected keyword selects the
// first remaining one, or nothing when the list is empty.
func DeleteKeyword(s *models.Session, id models.ID) error {
	i := s.AllData.FindKeyword(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrKeywordNotFound, id)
	}

	s.AllData.Keywords = append(s.AllData.Keywords[:i], s.AllData.Keywords[i+1:]...)
	if s.SelectedKeyword != nil && s.SelectedKeyword.ID == id {
		s.SelectedKeyword = nil
		if len(s.AllData.Keywords) > 0 {
			first := s.AllData.Keywords[0].Clone()
			s.SelectedKeyword = &first
		}
	}
	return nil
}

// MoveKeyword takes the keyword at from out of the list and reinserts it at
// to. Moving onto its own position is a no-op.
func MoveKeyword(s *models.Session, from, to int) error {
	n := len(s.AllData.Keywords)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: move %d to %d with %d keywords", ErrInvalidPosition, from, to, n)
	}
	if from == to {
		return nil
	}

	kw := s.AllData.Keywords[from]
	rest := append(s.AllData.Keywords[:from:from], s.AllData.Keywords[from+1:]...)
	out := make([]models.Keyword, 0, n)
	out = append(out, rest[:to]...)
	out = append(out, kw)
	out = append(out, rest[to:]...)
	s.AllData.Keywords = out
	return nil
}

// SelectKeyword makes the keyword with id the selected one
func SelectKeyword(s *models.Session, id models.ID) (models.Keyword, error) {
	i := s.AllData.FindKeyword(id)
	if i < 0 {
		return models.Keyword{}, fmt.Errorf("%w: %s", ErrKeywordNotFound, id)
	}
	kw := s.AllData.Keywords[i].Clone()
	s.SelectedKeyword = &kw
	return kw.Clone(), nil
}
