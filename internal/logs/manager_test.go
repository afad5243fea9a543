package logs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func testLogs(t *testing.T) (*Manager, string) {
	dir := t.TempDir()
	writeLog(t, dir, "salesbot_2026-08-28.log",
		"2026-08-28 09:00:00 INFO {\"msg\":\"server started\"}\n"+
			"2026-08-28 09:05:00 ERROR {\"msg\":\"send failed\",\"to_email\":\"ja**@acme.com\"}\n")
	writeLog(t, dir, "salesbot_2026-08-29.log",
		"2026-08-29 10:00:00 INFO {\"msg\":\"research started\",\"company\":\"Acme\"}\n"+
			"2026-08-29 10:01:00 WARN {\"msg\":\"retrying\"}\n"+
			"2026-08-29 10:02:00 INFO {\"msg\":\"research completed\"}\n"+
			"not a log line\n")
	writeLog(t, dir, "unrelated.txt", "ignored\n")
	return NewManager(dir, "salesbot"), dir
}

func TestListAndLatest(t *testing.T) {
	m, _ := testLogs(t)

	files, err := m.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "salesbot_2026-08-28.log", files[0].Name)

	latest, err := m.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "salesbot_2026-08-29.log", latest.Name)
}

func TestTail(t *testing.T) {
	m, _ := testLogs(t)

	lines, err := m.Tail("salesbot_2026-08-29.log", 2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "research completed")
	assert.Equal(t, "not a log line", lines[1])
}

func TestSearchSubstringCaseInsensitive(t *testing.T) {
	m, _ := testLogs(t)

	lines, err := m.Search("salesbot_2026-08-29.log", SearchOptions{Query: "RESEARCH"})
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestSearchTimeWindow(t *testing.T) {
	m, _ := testLogs(t)

	since := time.Date(2026, 8, 29, 10, 1, 0, 0, time.UTC)
	until := time.Date(2026, 8, 29, 10, 2, 0, 0, time.UTC)
	lines, err := m.Search("salesbot_2026-08-29.log", SearchOptions{Since: since, Until: until})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "retrying")
}

func TestSearchWindowExcludesUnparseableLines(t *testing.T) {
	m, _ := testLogs(t)

	since := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	lines, err := m.Search("salesbot_2026-08-29.log", SearchOptions{Since: since})
	require.NoError(t, err)
	assert.Len(t, lines, 3)
	for _, l := range lines {
		assert.NotEqual(t, "not a log line", l)
	}
}

func TestSummarize(t *testing.T) {
	m, _ := testLogs(t)

	s, err := m.Summarize("salesbot_2026-08-29.log")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Lines)
	assert.Equal(t, 2, s.Level["INFO"])
	assert.Equal(t, 1, s.Level["WARN"])
	assert.Equal(t, 0, s.Level["ERROR"])
}

func TestDeleteOlderThan(t *testing.T) {
	m, dir := testLogs(t)

	removed, err := m.Delete(time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"salesbot_2026-08-28.log"}, removed)

	_, err = os.Stat(filepath.Join(dir, "salesbot_2026-08-28.log"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "salesbot_2026-08-29.log"))
	assert.NoError(t, err)
}

func TestReadLinesRejectsTraversal(t *testing.T) {
	m, _ := testLogs(t)

	_, err := m.Tail("../etc/passwd", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid file name")
}
