package shellutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	q, err := Quote("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", q)

	q, err = Quote("it's a test")
	require.NoError(t, err)
	assert.NotEqual(t, "it's a test", q)
	assert.NoError(t, Validate("echo "+q))

	_, err = Quote("bad\x00byte")
	assert.Error(t, err)
}

func TestJoin(t *testing.T) {
	line, err := Join("ls", "-la", "/opt/datadog agent")
	require.NoError(t, err)
	assert.Contains(t, line, "ls -la ")
	assert.NoError(t, Validate(line))
}

func TestScript(t *testing.T) {
	s, err := Script("ps aux | grep -v grep | grep %s", "datadog-agent")
	require.NoError(t, err)
	assert.Equal(t, "ps aux | grep -v grep | grep datadog-agent", s)

	_, err = Script("echo $(%s", "unterminated")
	assert.Error(t, err)
}
