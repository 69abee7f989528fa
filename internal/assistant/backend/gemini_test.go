package backend

import (
	"context"
	"fmt"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/lyric-assistant-core/server/internal/assistant/model"
	"github.com/lyric-assistant-core/server/internal/assistant/tools"
	errx "github.com/lyric-assistant-core/server/internal/core/error"
)

type fakeChatModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(f.reply, nil)}), nil
}

func TestChatModelBackendRendersPrompt(t *testing.T) {
	fake := &fakeChatModel{reply: "```json\n{\"tags\": [\"pop\"]}\n```"}
	b, err := NewChatModelBackend(context.Background(), fake, tools.Default())
	require.NoError(t, err)

	raw, err := b.Call(context.Background(), &model.Envelope{
		Action:  "generate_tags",
		Session: model.SessionContext{ExistingText: "[Verse]\nla la"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tags": ["pop"]}`, string(raw))

	require.Len(t, fake.input, 2)
	assert.Equal(t, schema.System, fake.input[0].Role)
	assert.Contains(t, fake.input[0].Content, `"generate_tags"`)
	assert.Contains(t, fake.input[0].Content, `{"tags": [string]`)
	assert.Equal(t, schema.User, fake.input[1].Role)
	assert.JSONEq(t, `{"action":"generate_tags","existingLyrics":"[Verse]\nla la"}`, fake.input[1].Content)
}

func TestChatModelBackendUnknownAction(t *testing.T) {
	fake := &fakeChatModel{reply: `{"message": "hi"}`}
	b, err := NewChatModelBackend(context.Background(), fake, tools.Default())
	require.NoError(t, err)

	_, err = b.Call(context.Background(), &model.Envelope{Action: "mystery"})
	require.NoError(t, err)
	assert.Contains(t, fake.input[0].Content, genericToolDescription)
}

func TestChatModelBackendClassifiesAPIErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"quota", fmt.Errorf("generate: %w", genai.APIError{Code: 429, Message: "quota"}), errx.ErrRateLimited},
		{"billing", genai.APIError{Code: 402, Message: "billing"}, errx.ErrPaymentRequired},
		{"server", genai.APIError{Code: 503, Message: "unavailable"}, errx.ErrNetwork},
		{"plain", fmt.Errorf("dial tcp: timeout"), errx.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewChatModelBackend(context.Background(), &fakeChatModel{err: tt.err}, tools.Default())
			require.NoError(t, err)

			_, err = b.Call(context.Background(), &model.Envelope{Action: "analyze"})
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"Sure! Here you go: {\"a\":{\"b\":2}} Enjoy.", `{"a":{"b":2}}`},
		{"no json here", "no json here"},
		{"  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(extractJSON(tt.in)), tt.in)
	}
}

func TestComputeCost(t *testing.T) {
	in, out, total := ComputeCost(1_000_000, 200_000, ResolvePricing("gemini-2.5-flash"))
	assert.InDelta(t, 0.30, in, 1e-9)
	assert.InDelta(t, 0.50, out, 1e-9)
	assert.InDelta(t, 0.80, total, 1e-9)

	_, _, total = ComputeCost(500, 500, ResolvePricing("unknown-model"))
	assert.Zero(t, total)
}
