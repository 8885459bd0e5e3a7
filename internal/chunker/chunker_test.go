package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "w%d", i)
	}
	return sb.String()
}

func TestNew_Validation(t *testing.T) {
	_, err := New(0, 0)
	assert.Error(t, err)

	_, err = New(10, 10)
	assert.Error(t, err)

	_, err = New(10, -1)
	assert.Error(t, err)

	c, err := New(10, 2)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestSplit_Empty(t *testing.T) {
	c := NewDefault()
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestSplit_ShortTextSingleWindow(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)

	got := c.Split("just a few words here")
	require.Len(t, got, 1)
	assert.Equal(t, "just a few words here", got[0])
}

func TestSplit_OverlapContinuity(t *testing.T) {
	c, err := New(10, 3)
	require.NoError(t, err)

	got := c.Split(words(25))
	// stride 7: windows [0,10) [7,17) [14,24) [21,25)
	require.Len(t, got, 4)

	// Each window after the first starts with the last 3 words of the
	// previous one.
	for i := 1; i < len(got); i++ {
		prev := strings.Fields(got[i-1])
		cur := strings.Fields(got[i])
		assert.Equal(t, prev[len(prev)-3:], cur[:3], "window %d", i)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	c := NewDefault()
	text := words(500)
	assert.Equal(t, c.Split(text), c.Split(text))
}

func TestSplit_CoversAllWords(t *testing.T) {
	c, err := New(10, 3)
	require.NoError(t, err)

	got := c.Split(words(25))
	last := strings.Fields(got[len(got)-1])
	assert.Equal(t, "w24", last[len(last)-1])
}
