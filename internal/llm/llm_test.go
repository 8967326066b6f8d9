package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umeshdangat/workout-ai/internal/apperr"
	"github.com/umeshdangat/workout-ai/internal/metrics"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1,}\n```", `{"a": 1}`},
		{"fence in prose", "Sure!\n```json\n{\"a\": 1}\n```\nDone.", `{"a": 1}`},
		{"prose around", `Here you go: {"url": "http://x"} thanks`, `{"url": "http://x"}`},
		{"comments and trailing commas", "{\n \"a\": 1, // note\n \"b\": [1,2,]\n}", `{"a": 1, "b": [1, 2]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, ExtractJSON(tt.in))
		})
	}
	assert.Equal(t, "", ExtractJSON("no json here"))
}

// scripted replies in order and records every prompt it sees.
type scripted struct {
	replies []string
	err     error
	prompts []Prompt
}

func (s *scripted) Complete(_ context.Context, p Prompt) (string, error) {
	s.prompts = append(s.prompts, p)
	if s.err != nil {
		return "", s.err
	}
	i := min(len(s.prompts), len(s.replies)) - 1
	return s.replies[i], nil
}

func acceptOK(raw string) error {
	var v struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return err
	}
	if !v.OK {
		return errors.New("ok must be true")
	}
	return nil
}

func basePrompt() Prompt {
	return Prompt{
		SchemaName: "test",
		Messages:   []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "go"}},
	}
}

func TestConformRetriesOnceWithCorrection(t *testing.T) {
	m := &scripted{replies: []string{"I cannot do that", `{"ok": true}`}}
	n, err := Conform(context.Background(), m, basePrompt(), acceptOK)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, m.prompts, 2)
	retry := m.prompts[1].Messages
	require.Len(t, retry, 4)
	assert.Equal(t, RoleAssistant, retry[2].Role)
	assert.Equal(t, "I cannot do that", retry[2].Content)
	assert.Contains(t, retry[3].Content, "did not contain a JSON object")
	assert.Len(t, m.prompts[0].Messages, 2, "original prompt was modified")
}

func TestConformGivesUpAfterTwoViolations(t *testing.T) {
	m := &scripted{replies: []string{`{"ok": false}`}}
	n, err := Conform(context.Background(), m, basePrompt(), acceptOK)
	assert.Equal(t, 2, n)
	assert.Equal(t, apperr.GenerationFailed, apperr.KindOf(err))
	assert.Contains(t, apperr.DetailOf(err), "ok must be true")
}

func TestConformDoesNotRetryModelErrors(t *testing.T) {
	upstream := apperr.New(apperr.UpstreamTimeout, "model timed out")
	m := &scripted{err: upstream}
	n, err := Conform(context.Background(), m, basePrompt(), acceptOK)
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, upstream)
}

func TestConformCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &scripted{replies: []string{`{"ok": true}`}}
	n, err := Conform(ctx, m, basePrompt(), acceptOK)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.prompts)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil, "completion"))
	assert.ErrorIs(t, classify(context.Canceled, "completion"), context.Canceled)
	assert.Equal(t, apperr.Internal, apperr.KindOf(classify(context.Canceled, "completion")))

	err := classify(fmt.Errorf("post: %w", context.DeadlineExceeded), "completion")
	assert.Equal(t, apperr.UpstreamTimeout, apperr.KindOf(err))
	assert.Equal(t, "completion timed out", apperr.DetailOf(err))

	err = classify(errors.New("connection refused"), "embedding")
	assert.Equal(t, apperr.UpstreamUnavailable, apperr.KindOf(err))
}

func TestCachedModel(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	cache, err := NewRedisCache(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	defer cache.Close()

	next := &scripted{replies: []string{`{"ok": true}`}}
	m := NewCachedModel(next, cache, "gpt-test", time.Hour, zerolog.Nop())

	out, err := m.Complete(ctx, basePrompt())
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, out)

	out, err = m.Complete(ctx, basePrompt())
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, out)
	assert.Len(t, next.prompts, 1, "second call should be served from cache")

	other := basePrompt()
	other.SchemaName = "other"
	_, err = m.Complete(ctx, other)
	require.NoError(t, err)
	assert.Len(t, next.prompts, 2)

	mr.FastForward(2 * time.Hour)
	_, err = m.Complete(ctx, basePrompt())
	require.NoError(t, err)
	assert.Len(t, next.prompts, 3, "expired entry should miss")
}

func TestCachedModelNamespacesByModel(t *testing.T) {
	a, err := promptKey("gpt-a", basePrompt())
	require.NoError(t, err)
	b, err := promptKey("gpt-b", basePrompt())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection reset")
}

func (brokenCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection reset")
}

func TestCachedModelFallsThroughOnCacheErrors(t *testing.T) {
	next := &scripted{replies: []string{"fresh"}}
	m := NewCachedModel(next, brokenCache{}, "gpt-test", time.Hour, zerolog.Nop())
	out, err := m.Complete(context.Background(), basePrompt())
	require.NoError(t, err)
	assert.Equal(t, "fresh", out)
}

func TestCachedModelDoesNotStoreErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := NewRedisCache(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer cache.Close()

	next := &scripted{err: apperr.New(apperr.UpstreamUnavailable, "down")}
	m := NewCachedModel(next, cache, "gpt-test", time.Hour, zerolog.Nop())
	_, err = m.Complete(context.Background(), basePrompt())
	assert.Error(t, err)
	assert.Empty(t, mr.Keys())
}

func TestThrottledModel(t *testing.T) {
	next := &scripted{replies: []string{"ok"}}
	m := NewThrottledModel(next, time.Hour)

	_, err := m.Complete(context.Background(), basePrompt())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Complete(ctx, basePrompt())
	assert.Equal(t, apperr.UpstreamTimeout, apperr.KindOf(err))

	canceled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = m.Complete(canceled, basePrompt())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, next.prompts, 1)
}

func TestInstrumentedModelPassesThrough(t *testing.T) {
	next := &scripted{replies: []string{"ok"}}
	m := NewInstrumentedModel(next, metrics.New())

	ctx := WithOperation(context.Background(), "generate")
	assert.Equal(t, "generate", operationOf(ctx))
	assert.Equal(t, "unknown", operationOf(context.Background()))

	out, err := m.Complete(ctx, basePrompt())
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	failing := NewInstrumentedModel(&scripted{err: errors.New("boom")}, nil)
	_, err = failing.Complete(ctx, basePrompt())
	assert.EqualError(t, err, "boom")
}

func TestModelFunc(t *testing.T) {
	var m Model = ModelFunc(func(_ context.Context, p Prompt) (string, error) {
		return p.SchemaName, nil
	})
	out, err := m.Complete(context.Background(), basePrompt())
	require.NoError(t, err)
	assert.Equal(t, "test", out)
}

type strictInner struct {
	Name  string `json:"name"`
	Notes string `json:"notes,omitempty"`
}

type strictOuter struct {
	Title string        `json:"title"`
	Tags  []string      `json:"tags,omitempty"`
	Items []strictInner `json:"items,omitempty"`
}

func reflectOuter() *jsonschema.Schema {
	r := jsonschema.Reflector{AllowAdditionalProperties: false, DoNotReference: true}
	return r.Reflect(strictOuter{})
}

func TestStrictSchemaRequiresEveryProperty(t *testing.T) {
	base := reflectOuter()
	require.Equal(t, []string{"title"}, base.Required)

	s := StrictSchema(base)
	assert.Equal(t, []string{"title", "tags", "items"}, s.Required)
	items, ok := s.Properties.Get("items")
	require.True(t, ok)
	assert.Equal(t, []string{"name", "notes"}, items.Items.Required)
	assert.Empty(t, s.Version)
	assert.Empty(t, s.ID)

	assert.Equal(t, []string{"title"}, base.Required, "input schema was modified")
	baseItems, _ := base.Properties.Get("items")
	assert.Equal(t, []string{"name"}, baseItems.Items.Required)
	assert.NotEmpty(t, base.Version)
}

func TestOpenAIModelSendsStrictSchema(t *testing.T) {
	for _, strict := range []bool{false, true} {
		t.Run(fmt.Sprintf("strict=%v", strict), func(t *testing.T) {
			var sent struct {
				ResponseFormat struct {
					JSONSchema struct {
						Strict bool `json:"strict"`
						Schema struct {
							Required []string `json:"required"`
						} `json:"schema"`
					} `json:"json_schema"`
				} `json:"response_format"`
			}
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"id": "c1", "object": "chat.completion", "created": 0, "model": "gpt-test",
					"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"title\": \"x\"}"}}],
					"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}}`)
			}))
			defer srv.Close()

			m := NewOpenAIModel(OpenAIConfig{
				APIKey: "test", BaseURL: srv.URL + "/v1/", Model: "gpt-test", StrictSchema: strict,
			}, zerolog.Nop())
			p := basePrompt()
			p.Schema = reflectOuter()
			out, err := m.Complete(context.Background(), p)
			require.NoError(t, err)
			assert.Equal(t, `{"title": "x"}`, out)

			assert.Equal(t, strict, sent.ResponseFormat.JSONSchema.Strict)
			if strict {
				assert.Equal(t, []string{"title", "tags", "items"}, sent.ResponseFormat.JSONSchema.Schema.Required)
			} else {
				assert.Equal(t, []string{"title"}, sent.ResponseFormat.JSONSchema.Schema.Required)
			}
		})
	}
}
