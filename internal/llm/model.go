// Package llm wraps the generative model and embedding endpoints behind small
// interfaces, with caching, throttling and a single corrective retry for
// schema violations.
package llm

import (
	"context"

	"github.com/invopop/jsonschema"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt is a structured request to the model. Schema, when set, is sent as
// the response format the completion must follow.
type Prompt struct {
	Messages    []Message
	SchemaName  string
	Description string
	Schema      *jsonschema.Schema
}

// WithCorrection returns a copy of p extended with the rejected answer and a
// message describing why it was rejected.
func (p Prompt) WithCorrection(rejected, violation string) Prompt {
	out := p
	out.Messages = append(append([]Message(nil), p.Messages...),
		Message{Role: RoleAssistant, Content: rejected},
		Message{Role: RoleUser, Content: "Your previous response was rejected: " + violation +
			"\nReturn the corrected JSON object only, following the same schema. Do not include markdown or commentary."},
	)
	return out
}

// Model turns a prompt into a completion.
type Model interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, p Prompt) (string, error)

func (f ModelFunc) Complete(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// Embedder turns texts into fixed-dimension vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
