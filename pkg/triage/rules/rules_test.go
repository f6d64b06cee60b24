package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/triage/pkg/triage/types"
)

func fileRef(path string, size int64) types.FileRef {
	return types.FileRef{
		Path:    path,
		Size:    size,
		ModTime: time.Now(),
	}
}

func TestNewRule_RequiresLabel(t *testing.T) {
	_, err := NewRule("")
	assert.ErrorIs(t, err, ErrNoLabel)
}

func TestNewRule_InvalidGlob(t *testing.T) {
	_, err := NewRule("bad", WithNameGlob("[invalid"))
	assert.Error(t, err)
}

func TestNewRule_UnknownTypeGroup(t *testing.T) {
	_, err := NewRule("bad", WithTypeGroup("nonsense"))
	assert.Error(t, err)
}

func TestRule_MatchesExtension(t *testing.T) {
	r, err := NewRule("text files", WithExtensions("txt", ".MD"))
	require.NoError(t, err)

	assert.True(t, r.Matches(fileRef("/data/notes.txt", 10)))
	assert.True(t, r.Matches(fileRef("/data/README.md", 10)))
	assert.False(t, r.Matches(fileRef("/data/photo.jpg", 10)))
}

func TestRule_MatchesNameGlob(t *testing.T) {
	r, err := NewRule("backups", WithNameGlob("*.bak"))
	require.NoError(t, err)

	assert.True(t, r.Matches(fileRef("/var/db.bak", 10)))
	assert.False(t, r.Matches(fileRef("/var/db.sql", 10)))
}

func TestRule_MatchesPathGlob(t *testing.T) {
	r, err := NewRule("downloads", WithPathGlob("/home/*/Downloads/**"))
	require.NoError(t, err)

	assert.True(t, r.Matches(fileRef("/home/kim/Downloads/movie.mkv", 10)))
	assert.False(t, r.Matches(fileRef("/home/kim/Documents/movie.mkv", 10)))
}

func TestRule_MatchesMinSize(t *testing.T) {
	r, err := NewRule("big", WithMinSize(100))
	require.NoError(t, err)

	assert.True(t, r.Matches(fileRef("/a", 100)))
	assert.False(t, r.Matches(fileRef("/a", 99)))
}

func TestRule_AllCriteriaMustHold(t *testing.T) {
	r, err := NewRule("big videos", WithTypeGroup("video"), WithMinSize(1000))
	require.NoError(t, err)

	assert.True(t, r.Matches(fileRef("/m/clip.mp4", 2000)))
	assert.False(t, r.Matches(fileRef("/m/clip.mp4", 10)))
	assert.False(t, r.Matches(fileRef("/m/clip.txt", 2000)))
}

func TestRuleSet_RequiresName(t *testing.T) {
	_, err := NewRuleSet("")
	assert.ErrorIs(t, err, ErrNoName)
}

func TestRuleSet_MatchReturnsFirstLabel(t *testing.T) {
	first, err := NewRule("any text", WithExtensions(".txt"))
	require.NoError(t, err)
	second, err := NewRule("big text", WithExtensions(".txt"), WithMinSize(1))
	require.NoError(t, err)

	set, err := NewRuleSet("Docs", first, second)
	require.NoError(t, err)
	assert.Equal(t, "Docs", set.Name())
	assert.Equal(t, 2, set.Len())

	// Both rules match; the first in construction order wins.
	label, ok := set.Match(fileRef("/d/a.txt", 50))
	require.True(t, ok)
	assert.Equal(t, "any text", label)
}

func TestRuleSet_MatchOrderIsDeterministic(t *testing.T) {
	a, err := NewRule("rule a", WithNameGlob("*.log"))
	require.NoError(t, err)
	b, err := NewRule("rule b", WithPathGlob("**.log"))
	require.NoError(t, err)

	set, err := NewRuleSet("Logs", a, b)
	require.NoError(t, err)

	f := fileRef("/var/log/syslog.log", 1)
	for i := 0; i < 50; i++ {
		label, ok := set.Match(f)
		require.True(t, ok)
		assert.Equal(t, "rule a", label)
	}
}

func TestRuleSet_NoMatch(t *testing.T) {
	r, err := NewRule("images", WithTypeGroup("image"))
	require.NoError(t, err)
	set, err := NewRuleSet("Media", r)
	require.NoError(t, err)

	label, ok := set.Match(fileRef("/d/a.txt", 1))
	assert.False(t, ok)
	assert.Empty(t, label)
}
