package grok

import (
	"encoding/json"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged entry of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options holds provider parameters such as temperature or max_tokens.
// Values are passed through to the API without inspection.
type Options map[string]any

// Clone returns a shallow copy of the options. A nil receiver yields an
// empty, non-nil map.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Merge copies every key of other into o, overwriting existing keys.
func (o Options) Merge(other Options) {
	for k, v := range other {
		o[k] = v
	}
}

// Usage records token accounting information.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the decoded body of a successful chat completion. It is kept
// as a loose document so that provider-specific fields survive untouched.
type Response map[string]any

// HasChoices reports whether the response carries a non-empty choices array.
func (r Response) HasChoices() bool {
	choices, ok := r["choices"].([]any)
	return ok && len(choices) > 0
}

// Text returns choices[0].message.content, or "" when it is absent.
func (r Response) Text() string {
	content, _ := r.content()
	return content
}

// Message returns the message object of the first choice.
func (r Response) Message() (Message, bool) {
	message, ok := r.firstMessage()
	if !ok {
		return Message{}, false
	}
	role, _ := message["role"].(string)
	content, _ := message["content"].(string)
	return Message{Role: Role(role), Content: content}, true
}

// FinishReason returns choices[0].finish_reason, or "".
func (r Response) FinishReason() string {
	choice, ok := r.firstChoice()
	if !ok {
		return ""
	}
	reason, _ := choice["finish_reason"].(string)
	return reason
}

// ID returns the completion id reported by the provider.
func (r Response) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Model returns the model that produced the completion.
func (r Response) Model() string {
	model, _ := r["model"].(string)
	return model
}

// Usage returns the token accounting block when present.
func (r Response) Usage() (Usage, bool) {
	block, ok := r["usage"].(map[string]any)
	if !ok {
		return Usage{}, false
	}
	return Usage{
		PromptTokens:     intField(block, "prompt_tokens"),
		CompletionTokens: intField(block, "completion_tokens"),
		TotalTokens:      intField(block, "total_tokens"),
	}, true
}

func (r Response) content() (string, bool) {
	message, ok := r.firstMessage()
	if !ok {
		return "", false
	}
	content, ok := message["content"].(string)
	return content, ok
}

func (r Response) firstChoice() (map[string]any, bool) {
	choices, ok := r["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil, false
	}
	choice, ok := choices[0].(map[string]any)
	return choice, ok
}

func (r Response) firstMessage() (map[string]any, bool) {
	choice, ok := r.firstChoice()
	if !ok {
		return nil, false
	}
	message, ok := choice["message"].(map[string]any)
	return message, ok
}

// ModelInfo is a model descriptor as returned by the models endpoints.
type ModelInfo map[string]any

// ID returns the model identifier.
func (m ModelInfo) ID() string {
	id, _ := m["id"].(string)
	return id
}

// OwnedBy returns the owning organisation, when reported.
func (m ModelInfo) OwnedBy() string {
	owner, _ := m["owned_by"].(string)
	return owner
}

// Created returns the creation timestamp in Unix seconds, or 0.
func (m ModelInfo) Created() int64 {
	return int64(intField(m, "created"))
}

func intField(doc map[string]any, key string) int {
	switch v := doc[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	}
	return 0
}
