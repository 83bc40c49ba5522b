package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/keydozer/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logging.New("info", "text", &buf))

	require.NoError(t, n.Notify(context.Background(), "alice", "password changed"))

	out := buf.String()
	for _, want := range []string{"module=notify", "owner=alice", `message="password changed"`} {
		assert.True(t, strings.Contains(out, want), "missing %q in %s", want, out)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Notify(context.Background(), "bob", "share received"))
	assert.Equal(t, []Message{{OwnerID: "bob", Text: "share received"}}, r.Messages())
}

func TestWebhookNotifier(t *testing.T) {
	got := make(chan Message, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m Message
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		got <- m
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, logging.Discard())
	require.NoError(t, n.Notify(context.Background(), "alice", "share accepted"))
	assert.Equal(t, Message{OwnerID: "alice", Text: "share accepted"}, <-got)

	srv.Close()
	require.Error(t, n.Notify(context.Background(), "alice", "again"))
}
