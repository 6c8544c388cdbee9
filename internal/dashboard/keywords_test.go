package dashboard

import (
	"math/rand"
	"testing"

	"github.com/contentlab/seo-assistant/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionWith(names ...string) *models.Session {
	s := &models.Session{ID: "s1", AllData: models.NewAggregatedData()}
	for _, n := range names {
		s.AllData.Keywords = append(s.AllData.Keywords, models.Keyword{ID: models.ID(n), Name: n})
	}
	return s
}

func names(s *models.Session) []string {
	out := make([]string, 0, len(s.AllData.Keywords))
	for _, k := range s.AllData.Keywords {
		out = append(out, k.Name)
	}
	return out
}

func fixedBuilder(name string) models.Keyword {
	return models.Keyword{ID: models.ID("new-" + name), Name: name}
}

func TestNewKeyword(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		kw := NewKeyword("seo", rng)
		assert.NotEmpty(t, kw.ID)
		assert.GreaterOrEqual(t, kw.Traffic, 1000)
		assert.Less(t, kw.Traffic, 6000)
		assert.GreaterOrEqual(t, kw.PrevTraffic, 500)
		assert.Less(t, kw.PrevTraffic, 4500)
		require.Len(t, kw.Trend, 7)
		for _, v := range kw.Trend {
			assert.GreaterOrEqual(t, v, 20)
			assert.Less(t, v, 80)
		}
		assert.Equal(t, []string{"seo ideas", "seo best practices"}, kw.Suggestions)
	}
}

func TestAddKeyword(t *testing.T) {
	s := sessionWith("SEO", "blog")

	kw, err := AddKeyword(s, "  content  ", fixedBuilder)
	require.NoError(t, err)
	assert.Equal(t, "content", kw.Name)
	assert.Equal(t, []string{"content", "SEO", "blog"}, names(s))

	_, err = AddKeyword(s, "seo", fixedBuilder)
	assert.ErrorIs(t, err, ErrDuplicateKeyword)
	assert.Len(t, s.AllData.Keywords, 3)

	_, err = AddKeyword(s, "   ", fixedBuilder)
	assert.ErrorIs(t, err, ErrEmptyKeyword)
	assert.Len(t, s.AllData.Keywords, 3)
}

func TestRenameKeyword_AllowsCollisions(t *testing.T) {
	s := sessionWith("a", "b")
	_, err := SelectKeyword(s, "a")
	require.NoError(t, err)

	kw, err := RenameKeyword(s, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "b", kw.Name)
	assert.Equal(t, []string{"b", "b"}, names(s))
	assert.Equal(t, "b", s.SelectedKeyword.Name)

	_, err = RenameKeyword(s, "missing", "x")
	assert.ErrorIs(t, err, ErrKeywordNotFound)

	_, err = RenameKeyword(s, "a", " ")
	assert.ErrorIs(t, err, ErrEmptyKeyword)
}

func TestDeleteKeyword_Reselects(t *testing.T) {
	s := sessionWith("A", "B", "C")
	_, err := SelectKeyword(s, "B")
	require.NoError(t, err)

	require.NoError(t, DeleteKeyword(s, "B"))
	require.NotNil(t, s.SelectedKeyword)
	assert.Equal(t, "A", s.SelectedKeyword.Name)

	require.NoError(t, DeleteKeyword(s, "C"))
	assert.Equal(t, "A", s.SelectedKeyword.Name)

	require.NoError(t, DeleteKeyword(s, "A"))
	assert.Nil(t, s.SelectedKeyword)
	assert.Empty(t, s.AllData.Keywords)

	assert.ErrorIs(t, DeleteKeyword(s, "A"), ErrKeywordNotFound)
}

func TestMoveKeyword(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"forward", 0, 2, []string{"b", "c", "a", "d"}},
		{"backward", 3, 1, []string{"a", "d", "b", "c"}},
		{"same", 1, 1, []string{"a", "b", "c", "d"}},
		{"to end", 0, 3, []string{"b", "c", "d", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sessionWith("a", "b", "c", "d")
			require.NoError(t, MoveKeyword(s, tt.from, tt.to))
			assert.Equal(t, tt.want, names(s))
		})
	}

	s := sessionWith("a")
	assert.ErrorIs(t, MoveKeyword(s, 0, 1), ErrInvalidPosition)
	assert.ErrorIs(t, MoveKeyword(s, -1, 0), ErrInvalidPosition)
}

func TestSelectKeyword(t *testing.T) {
	s := sessionWith("a", "b")

	kw, err := SelectKeyword(s, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", kw.Name)
	assert.Equal(t, models.ID("b"), s.SelectedKeyword.ID)

	_, err = SelectKeyword(s, "zzz")
	assert.ErrorIs(t, err, ErrKeywordNotFound)
	assert.Equal(t, models.ID("b"), s.SelectedKeyword.ID)
}
