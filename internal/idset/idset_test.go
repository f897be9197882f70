package idset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromDeduplicates(t *testing.T) {
	s := From([]string{"a", "b", "a", ""})
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has(""))
}

func TestAddReportsInsertion(t *testing.T) {
	s := From(nil)
	assert.True(t, s.Add("x"))
	assert.False(t, s.Add("x"))
	assert.False(t, s.Add(""))
}

func TestUnionAndDiff(t *testing.T) {
	before := From([]string{"u1", "u2", "u3"})
	after := From([]string{"u2", "u3", "u4"})

	assert.Equal(t, []string{"u4"}, after.Diff(before).Slice())
	assert.Equal(t, []string{"u1"}, before.Diff(after).Slice())
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, before.Union(after).Slice())
}

func TestAppendMissingKeepsOrder(t *testing.T) {
	got := AppendMissing([]string{"firstWorkout", "earlyBird"}, "earlyBird", "personalRecord", "personalRecord")
	assert.Equal(t, []string{"firstWorkout", "earlyBird", "personalRecord"}, got)
}
