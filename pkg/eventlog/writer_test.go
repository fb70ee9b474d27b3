package eventlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriterCreatesTodaysFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	w, err := NewWriter(dir)
	require.NoError(t, err)
	defer w.Close()

	current := w.CurrentFile()
	assert.Equal(t, filepath.Join(dir, "events-"+time.Now().Format("2006-01-02")+".jsonl"), current)
	assert.FileExists(t, current)
}

func TestWriteAndReadEvents(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(Event{SessionID: "s1", Index: 1, Sender: "user_proxy", Kind: "prompt", Content: "Draw three balls"}))
	require.NoError(t, w.Write(Event{SessionID: "s1", Index: 2, Sender: "position_bot", Kind: "reply", State: "VERIFYING"}))
	require.NoError(t, w.Write(Event{SessionID: "s1", Index: 3, Sender: "user_proxy", Kind: "nudge", Failure: "bad json"}))

	data, err := os.ReadFile(w.CurrentFile())
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	events, err := ReadEvents(w.CurrentFile())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "Draw three balls", events[0].Content)
	assert.Equal(t, "position_bot", events[1].Sender)
	assert.Equal(t, "bad json", events[2].Failure)
	assert.False(t, events[0].Time.IsZero())
}

func TestWriterRotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(Event{Index: 1}))
	w.now = func() time.Time { return time.Now().AddDate(0, 0, 1) }
	require.NoError(t, w.Write(Event{Index: 2}))

	files, err := ListLogFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestReadEventsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events-2024-01-01.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"index\":1}\n\nnot json\n"), 0644))

	_, err := ReadEvents(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestCloseIsIdempotent(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Empty(t, w.CurrentFile())
}
