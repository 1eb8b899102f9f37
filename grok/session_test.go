package grok_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqzl/grokchat/grok"
	"github.com/oqzl/grokchat/internal/fakeapi"
)

func TestCreateSessionWithSystemPrompt(t *testing.T) {
	srv, client := newFakeAPI(t, grok.WithSystemPrompt("You are terse."))
	srv.Enqueue(fakeapi.Reply{Content: "Hello"})

	session, err := client.CreateSession(context.Background(), "Hi")
	require.NoError(t, err)

	assert.Equal(t, []grok.Message{
		{Role: grok.RoleSystem, Content: "You are terse."},
		{Role: grok.RoleUser, Content: "Hi"},
		{Role: grok.RoleAssistant, Content: "Hello"},
	}, session.History())
	assert.Equal(t, "Hello", session.Text())

	requests := srv.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "grok-1", requests[0]["model"])
	assert.Equal(t, []grok.Message{
		{Role: grok.RoleSystem, Content: "You are terse."},
		{Role: grok.RoleUser, Content: "Hi"},
	}, sentMessages(t, requests[0]))
}

func TestTwoTurnsWithoutSystemPrompt(t *testing.T) {
	srv, client := newFakeAPI(t)
	srv.Enqueue(fakeapi.Reply{Content: "R1"}, fakeapi.Reply{Content: "R2"})

	session, err := client.CreateSession(context.Background(), "A")
	require.NoError(t, err)
	_, err = session.Reply(context.Background(), "B")
	require.NoError(t, err)

	assert.Equal(t, []grok.Message{
		{Role: grok.RoleUser, Content: "A"},
		{Role: grok.RoleAssistant, Content: "R1"},
		{Role: grok.RoleUser, Content: "B"},
		{Role: grok.RoleAssistant, Content: "R2"},
	}, session.History())

	// the second request carries the whole transcript
	requests := srv.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, []grok.Message{
		{Role: grok.RoleUser, Content: "A"},
		{Role: grok.RoleAssistant, Content: "R1"},
		{Role: grok.RoleUser, Content: "B"},
	}, sentMessages(t, requests[1]))
}

func TestHistoryAlternatesAfterSuccessfulTurns(t *testing.T) {
	for _, system := range []string{"", "Be brief."} {
		for turns := 1; turns <= 4; turns++ {
			t.Run(fmt.Sprintf("system=%q/turns=%d", system, turns), func(t *testing.T) {
				_, client := newFakeAPI(t, grok.WithSystemPrompt(system))

				session, err := client.CreateSession(context.Background(), "turn 0")
				require.NoError(t, err)
				for i := 1; i < turns; i++ {
					_, err := session.Send(context.Background(), fmt.Sprintf("turn %d", i))
					require.NoError(t, err)
				}

				history := session.History()
				offset := 0
				if system != "" {
					offset = 1
					assert.Equal(t, grok.RoleSystem, history[0].Role)
				}
				require.Len(t, history, offset+2*turns)
				for i, msg := range history[offset:] {
					want := grok.RoleUser
					if i%2 == 1 {
						want = grok.RoleAssistant
					}
					assert.Equal(t, want, msg.Role, "message %d", i)
				}
			})
		}
	}
}

func TestResetKeepsSystemPrompt(t *testing.T) {
	_, client := newFakeAPI(t, grok.WithSystemPrompt("sys"))

	session, err := client.CreateSession(context.Background(), "one")
	require.NoError(t, err)
	_, err = session.Send(context.Background(), "two")
	require.NoError(t, err)
	_, err = session.Send(context.Background(), "three")
	require.NoError(t, err)
	require.Len(t, session.History(), 7)

	session.Reset()

	assert.Equal(t, []grok.Message{{Role: grok.RoleSystem, Content: "sys"}}, session.History())
	assert.Nil(t, session.Raw())
	assert.Equal(t, "", session.Text())
	_, ok := session.LastMessage()
	assert.False(t, ok)
}

func TestResetWithoutSystemPrompt(t *testing.T) {
	_, client := newFakeAPI(t)

	session, err := client.CreateSession(context.Background(), "one")
	require.NoError(t, err)
	session.SetModel("grok-2").SetOption("temperature", 0.1)

	session.Reset()

	assert.Empty(t, session.History())
	assert.Nil(t, session.Raw())
	assert.Equal(t, "grok-2", session.Model())
	assert.Equal(t, 0.1, session.Options()["temperature"])
}

func TestTextBeforeAnyTurn(t *testing.T) {
	_, client := newFakeAPI(t)

	session, err := client.NewSession()
	require.NoError(t, err)

	assert.Equal(t, "", session.Text())
	assert.Nil(t, session.Raw())
	assert.Empty(t, session.History())
	assert.NotEmpty(t, session.ID())
}

func TestResponseAccessors(t *testing.T) {
	srv, client := newFakeAPI(t)
	srv.Enqueue(fakeapi.Reply{Content: "This is a test response"})

	session, err := client.CreateSession(context.Background(), "Test message")
	require.NoError(t, err)

	msg, ok := session.LastMessage()
	require.True(t, ok)
	assert.Equal(t, grok.Message{Role: grok.RoleAssistant, Content: "This is a test response"}, msg)

	raw := session.Raw()
	require.NotNil(t, raw)
	assert.Equal(t, "chat.completion", raw["object"])
	assert.Equal(t, "stop", raw.FinishReason())
	usage, ok := raw.Usage()
	require.True(t, ok)
	assert.Equal(t, usage.PromptTokens+usage.CompletionTokens, usage.TotalTokens)
}

func TestFailedTurnKeepsUserMessage(t *testing.T) {
	srv, client := newFakeAPI(t)
	srv.Enqueue(
		fakeapi.Reply{Content: "first"},
		fakeapi.Reply{Status: 500, Message: "overloaded"},
	)

	session, err := client.CreateSession(context.Background(), "one")
	require.NoError(t, err)
	before := session.Raw()

	_, err = session.Send(context.Background(), "two")
	require.Error(t, err)

	var apiErr *grok.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Equal(t, "overloaded", apiErr.Message)

	history := session.History()
	require.Len(t, history, 3)
	assert.Equal(t, grok.Message{Role: grok.RoleUser, Content: "two"}, history[2])
	assert.Equal(t, before, session.Raw())
	assert.Equal(t, "first", session.Text())
}

func TestCreateSessionReturnsSessionOnFailedTurn(t *testing.T) {
	srv, client := newFakeAPI(t)
	srv.Enqueue(fakeapi.Reply{Status: 400, Message: "Invalid API key"})

	session, err := client.CreateSession(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
	require.NotNil(t, session)
	assert.Equal(t, []grok.Message{{Role: grok.RoleUser, Content: "hello"}}, session.History())
	assert.Nil(t, session.Raw())
}

func TestCreateSessionRequiresAPIKey(t *testing.T) {
	srv, client := newFakeAPI(t)
	keyless := client.With(grok.WithAPIKey(""))

	session, err := keyless.CreateSession(context.Background(), "hello")
	assert.ErrorIs(t, err, grok.ErrMissingAPIKey)
	assert.Nil(t, session)
	assert.Empty(t, srv.Requests())
}

func TestMissingContentIsNotAppended(t *testing.T) {
	srv, client := newFakeAPI(t)
	srv.Enqueue(fakeapi.Reply{Body: map[string]any{
		"choices": []any{
			map[string]any{"index": 0, "message": map[string]any{"role": "assistant"}, "finish_reason": "stop"},
		},
	}})

	session, err := client.CreateSession(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, "", session.Text())
	assert.NotNil(t, session.Raw())
	assert.Equal(t, []grok.Message{{Role: grok.RoleUser, Content: "hi"}}, session.History())
	msg, ok := session.LastMessage()
	require.True(t, ok)
	assert.Equal(t, grok.RoleAssistant, msg.Role)
}

func TestMissingChoicesFailsTurn(t *testing.T) {
	srv, client := newFakeAPI(t)
	srv.Enqueue(fakeapi.Reply{Body: map[string]any{"id": "chatcmpl-1"}})

	session, err := client.CreateSession(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, grok.ErrNoChoices)
	assert.Nil(t, session.Raw())
	assert.Len(t, session.History(), 1)
}

func TestOptionChangesApplyToNextTurnOnly(t *testing.T) {
	srv, client := newFakeAPI(t)

	session, err := client.CreateSession(context.Background(), "one")
	require.NoError(t, err)

	session.SetOption("temperature", 0.2).SetModel("grok-2")
	_, err = session.Send(context.Background(), "two")
	require.NoError(t, err)

	requests := srv.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "grok-1", requests[0]["model"])
	assert.NotContains(t, requests[0], "temperature")
	assert.Equal(t, "grok-2", requests[1]["model"])
	assert.Equal(t, 0.2, requests[1]["temperature"])
}

func TestOptionMergeIsLastWriteWins(t *testing.T) {
	_, client := newFakeAPI(t, grok.WithTemperature(0.5))

	a, err := client.NewSession()
	require.NoError(t, err)
	a.SetOptions(grok.Options{"temperature": 0.1}).SetOption("temperature", 0.9)
	assert.Equal(t, 0.9, a.Options()["temperature"])

	b, err := client.NewSession()
	require.NoError(t, err)
	b.SetOption("temperature", 0.9).SetOptions(grok.Options{"temperature": 0.1, "max_tokens": 10})
	assert.Equal(t, 0.1, b.Options()["temperature"])
	assert.Equal(t, 10, b.Options()["max_tokens"])

	// client defaults are untouched by session overrides
	assert.Equal(t, 0.5, client.Options()["temperature"])
}

func TestSessionCopiesClientDefaults(t *testing.T) {
	defaults := grok.Options{"temperature": 0.3}
	srv, client := newFakeAPI(t, grok.WithOptions(defaults), grok.WithMaxTokens(64))
	defaults["temperature"] = 1.0

	session, err := client.NewSession()
	require.NoError(t, err)

	derived := client.With(grok.WithTemperature(0.7), grok.WithModel("grok-2"))
	assert.Equal(t, 0.7, derived.Options()["temperature"])

	_, err = session.Send(context.Background(), "hi")
	require.NoError(t, err)

	req := srv.Requests()[0]
	assert.Equal(t, 0.3, req["temperature"])
	assert.Equal(t, float64(64), req["max_tokens"])
	assert.Equal(t, "grok-1", req["model"])
}

func TestSessionDecode(t *testing.T) {
	srv, client := newFakeAPI(t)
	srv.Enqueue(fakeapi.Reply{Content: "```json\n{\"name\": \"grok\", \"count\": 2}\n```"})

	session, err := client.CreateSession(context.Background(), "give me json")
	require.NoError(t, err)

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, session.Decode(&out))
	assert.Equal(t, "grok", out.Name)
	assert.Equal(t, 2, out.Count)

	session.Reset()
	assert.Error(t, session.Decode(&out))
}

func TestEstimateTokensGrowsWithTranscript(t *testing.T) {
	_, client := newFakeAPI(t)

	session, err := client.NewSession()
	require.NoError(t, err)
	assert.Equal(t, 0, session.EstimateTokens())

	_, err = session.Send(context.Background(), "How many tokens is this sentence?")
	require.NoError(t, err)
	first := session.EstimateTokens()
	assert.Greater(t, first, 0)

	_, err = session.Send(context.Background(), "And this one?")
	require.NoError(t, err)
	assert.Greater(t, session.EstimateTokens(), first)
}
