package grok

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Session is one conversation with the API. Every turn resends the whole
// transcript. A Session is not safe for concurrent use.
type Session struct {
	client   *Client
	id       string
	messages []Message
	model    string
	options  Options
	last     Response
}

func newSession(client *Client, model, systemPrompt string, options Options) *Session {
	s := &Session{
		client:  client,
		id:      uuid.NewString(),
		model:   model,
		options: options.Clone(),
	}
	if systemPrompt != "" {
		s.messages = append(s.messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return s
}

// Send appends prompt as a user message and requests a completion for the
// full transcript. On success the assistant reply is appended. On failure
// the user message stays in the transcript and the previous response is kept.
func (s *Session) Send(ctx context.Context, prompt string) (*Session, error) {
	s.messages = append(s.messages, Message{Role: RoleUser, Content: prompt})

	resp, err := s.client.ChatCompletion(ctx, s.messages, s.model, s.options)
	if err != nil {
		s.client.logger.DebugContext(ctx, "session turn failed", "session", s.id, "err", err)
		return s, fmt.Errorf("session %s: %w", s.id, err)
	}

	s.last = resp
	if content, ok := resp.content(); ok {
		s.messages = append(s.messages, Message{Role: RoleAssistant, Content: content})
	}
	return s, nil
}

// Reply is an alias of Send.
func (s *Session) Reply(ctx context.Context, prompt string) (*Session, error) {
	return s.Send(ctx, prompt)
}

// Text returns the assistant content of the last successful response, or ""
// before the first one.
func (s *Session) Text() string {
	if s.last == nil {
		return ""
	}
	return s.last.Text()
}

// Raw returns the last successful response, or nil.
func (s *Session) Raw() Response {
	return s.last
}

// LastMessage returns the assistant message of the last successful response.
func (s *Session) LastMessage() (Message, bool) {
	if s.last == nil {
		return Message{}, false
	}
	return s.last.Message()
}

// History returns a copy of the transcript.
func (s *Session) History() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Reset drops every message except a leading system message and forgets the
// last response. Model and options are kept.
func (s *Session) Reset() *Session {
	if len(s.messages) > 0 && s.messages[0].Role == RoleSystem {
		s.messages = []Message{s.messages[0]}
	} else {
		s.messages = nil
	}
	s.last = nil
	return s
}

// SetOption sets one option for subsequent turns.
func (s *Session) SetOption(key string, value any) *Session {
	s.options[key] = value
	return s
}

// SetOptions merges opts into the session options for subsequent turns.
func (s *Session) SetOptions(opts Options) *Session {
	s.options.Merge(opts)
	return s
}

// SetModel changes the model used by subsequent turns.
func (s *Session) SetModel(model string) *Session {
	s.model = model
	return s
}

// ID returns the identifier assigned when the session was created.
func (s *Session) ID() string { return s.id }

// Model returns the model the next turn will use.
func (s *Session) Model() string { return s.model }

// Options returns a copy of the options the next turn will send.
func (s *Session) Options() Options { return s.options.Clone() }

// EstimateTokens approximates the prompt size of the transcript.
func (s *Session) EstimateTokens() int {
	return ApproxTokensInMessages(s.messages)
}

// Decode parses the last response text as JSON into v. Markdown code fences
// around the document are ignored.
func (s *Session) Decode(v any) error {
	text := cleanJSONResponse(s.Text())
	if text == "" {
		return fmt.Errorf("session %s: no response to decode", s.id)
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("session %s: decode response: %w", s.id, err)
	}
	return nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
