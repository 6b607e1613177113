package codec

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteFramesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	c := New(strings.NewReader(""), &buf, nil, "demo")

	require.NoError(t, c.Write(Request{JSONRPC: "2.0", ID: "1", Method: "tools/list", Params: map[string]any{}}))
	require.NoError(t, c.Write(Request{JSONRPC: "2.0", ID: "2", Method: "tools/call"}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	var r Request
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &r))
	require.Equal(t, "1", r.ID)
	require.Equal(t, "tools/list", r.Method)
}

func TestWriteAfterCloseFails(t *testing.T) {
	var buf bytes.Buffer
	c := New(strings.NewReader(""), &buf, nil, "demo")
	c.Close()
	require.ErrorIs(t, c.Write(Request{ID: "x"}), ErrClosed)
}

func TestReadLoopSurfacesIDBearingMessages(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":"a","result":{"ok":true}}` + "\n"
	c := New(strings.NewReader(input), io.Discard, nil, "demo")

	select {
	case msg := <-c.Messages:
		var id string
		require.NoError(t, json.Unmarshal(msg.ID, &id))
		require.Equal(t, "a", id)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestReadLoopDiscardsNonJSONAndIDLessLines(t *testing.T) {
	input := "not json at all\n" +
		`{"jsonrpc":"2.0","result":{"no":"id"}}` + "\n" +
		`{"jsonrpc":"2.0","id":"b","result":{}}` + "\n"
	c := New(strings.NewReader(input), io.Discard, nil, "demo")

	select {
	case msg := <-c.Messages:
		var id string
		_ = json.Unmarshal(msg.ID, &id)
		require.Equal(t, "b", id, "expected only the id-bearing message to surface")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	select {
	case msg, ok := <-c.Messages:
		require.False(t, ok, "expected channel to close after single valid message, got extra: %+v", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestReadLoopHandlesPartialAndMultipleRecordsPerArrival(t *testing.T) {
	r, w := io.Pipe()
	c := New(r, io.Discard, nil, "demo")

	go func() {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"1","result":{}}` + "\n" + `{"jsonrpc":"2.0","id":"2"`))
		_, _ = w.Write([]byte(`,"result":{}}` + "\n"))
		_ = w.Close()
	}()

	seen := map[string]bool{}
	for msg := range c.Messages {
		var id string
		_ = json.Unmarshal(msg.ID, &id)
		seen[id] = true
	}
	require.True(t, seen["1"] && seen["2"], "expected both ids surfaced, got %v", seen)
}
