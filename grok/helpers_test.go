package grok_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oqzl/grokchat/grok"
	"github.com/oqzl/grokchat/internal/fakeapi"
)

const testAPIKey = "test-api-key"

func newFakeAPI(t *testing.T, opts ...grok.Option) (*fakeapi.Server, *grok.Client) {
	t.Helper()

	srv, err := fakeapi.New(fakeapi.Config{APIKey: testAPIKey})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	base := []grok.Option{grok.WithAPIKey(testAPIKey), grok.WithBaseURL(ts.URL)}
	return srv, grok.New(append(base, opts...)...)
}

func sentMessages(t *testing.T, payload map[string]any) []grok.Message {
	t.Helper()

	raw, ok := payload["messages"].([]any)
	require.True(t, ok, "payload has no messages array")

	out := make([]grok.Message, 0, len(raw))
	for _, item := range raw {
		msg, ok := item.(map[string]any)
		require.True(t, ok)
		role, _ := msg["role"].(string)
		content, _ := msg["content"].(string)
		out = append(out, grok.Message{Role: grok.Role(role), Content: content})
	}
	return out
}
