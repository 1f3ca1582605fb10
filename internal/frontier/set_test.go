package frontier_test

import (
	"testing"

	"github.com/rohmanhakim/capture-crawler/internal/frontier"
	"github.com/stretchr/testify/assert"
)

func TestSet_AddContains(t *testing.T) {
	set := frontier.NewSet[string]()
	assert.False(t, set.Contains("a"))

	set.Add("a")
	assert.True(t, set.Contains("a"))
	assert.Equal(t, 1, set.Size())

	set.Add("a")
	assert.Equal(t, 1, set.Size())
}

func TestSet_AddIfAbsent(t *testing.T) {
	set := frontier.NewSet[string]()
	assert.True(t, set.AddIfAbsent("a"))
	assert.False(t, set.AddIfAbsent("a"))
	assert.True(t, set.AddIfAbsent("b"))
	assert.Equal(t, 2, set.Size())
}
