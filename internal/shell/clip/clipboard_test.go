package clip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	var c Clipboard = &Memory{}
	require.NoError(t, c.Write("/p?q=1#h"))
	require.NoError(t, c.Write("https://dev.example.com/p"))
	assert.Equal(t, "https://dev.example.com/p", c.(*Memory).Text())
}

func TestSystemClipboard_ImplementsClipboard(t *testing.T) {
	var _ Clipboard = SystemClipboard{}
}
