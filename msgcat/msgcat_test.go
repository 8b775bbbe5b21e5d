package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCatalog = `
# corvusdb messages
1, Info, Server started
2, Error, Cannot write index file %s
3, Fatal, Out of disk space

10, Warning, Slow query detected
`

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(testCatalog))
	require.NoError(t, err)
	require.Equal(t, 4, c.Len())

	msg, ok := c.Message(2)
	require.True(t, ok)
	require.Equal(t, Error, msg.Severity)
	require.Equal(t, "Cannot write index file %s", msg.Text)

	_, ok = c.Message(99)
	require.False(t, ok)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.txt")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, c.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestDuplicateID(t *testing.T) {
	_, err := Parse(strings.NewReader("1, Info, first\n1, Info, second\n"))
	require.ErrorContains(t, err, "duplicate message id 1")
	require.ErrorContains(t, err, "line 1")
}

func TestMissingSeparators(t *testing.T) {
	_, err := Parse(strings.NewReader("42 Info no separators"))
	require.ErrorContains(t, err, "message id separator")

	// The severity separator is the second comma; a line with only one
	// comma must be rejected.
	_, err = Parse(strings.NewReader("42, Info no text separator"))
	require.ErrorContains(t, err, "severity class separator")
}

func TestInvalidFields(t *testing.T) {
	_, err := Parse(strings.NewReader("abc, Info, text"))
	require.ErrorContains(t, err, "invalid message id")

	_, err = Parse(strings.NewReader("1, Loud, text"))
	require.ErrorContains(t, err, "unknown message severity class")

	_, err = Parse(strings.NewReader("1, Info,   "))
	require.ErrorContains(t, err, "message text is empty")
}

func TestSeverityNames(t *testing.T) {
	for _, name := range []string{"Debug", "Trace", "Info", "Warning", "Error", "Fatal"} {
		s, err := ParseSeverity(name)
		require.NoError(t, err)
		require.Equal(t, name, s.String())
	}
	_, err := ParseSeverity("info")
	require.Error(t, err)
}
