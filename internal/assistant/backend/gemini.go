package backend

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/lyric-assistant-core/server/internal/assistant/model"
	"github.com/lyric-assistant-core/server/internal/assistant/tools"
	errx "github.com/lyric-assistant-core/server/internal/core/error"
	logx "github.com/lyric-assistant-core/server/pkg/logger"
)

//go:embed template/system_prompt.txt
var systemPrompt string

const genericToolDescription = "Answer the request as helpfully as possible."

// GeminiBackend answers envelopes with a Gemini chat model. The system prompt
// is rendered by an eino chat template and both run as one compiled chain.
type GeminiBackend struct {
	runnable  compose.Runnable[map[string]any, *schema.Message]
	descs     map[string]string
	modelName string
}

// NewGeminiBackend creates the genai client and chat model from cfg.
func NewGeminiBackend(ctx context.Context, cfg model.GeminiModelConfig, catalog *tools.Catalog) (*GeminiBackend, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Model,
		Temperature: &cfg.Temperature,
		MaxTokens:   &cfg.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Str("model", cfg.Model).Msg("Error creating Gemini chat model")
		return nil, fmt.Errorf("error creating Gemini chat model: %w", err)
	}

	b, err := NewChatModelBackend(ctx, chatModel, catalog)
	if err != nil {
		return nil, err
	}
	b.modelName = cfg.Model
	return b, nil
}

// NewChatModelBackend wires any eino chat model behind the backend contract.
func NewChatModelBackend(ctx context.Context, chatModel einomodel.BaseChatModel, catalog *tools.Catalog) (*GeminiBackend, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{{.Request}}"),
	)

	runnable, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(tpl).
		AppendChatModel(chatModel).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile assistant chain: %w", err)
	}

	descs := make(map[string]string)
	for _, info := range catalog.ToolInfos() {
		descs[info.Name] = info.Desc
	}
	return &GeminiBackend{runnable: runnable, descs: descs}, nil
}

func (b *GeminiBackend) Call(ctx context.Context, env *model.Envelope) ([]byte, error) {
	request, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	desc, ok := b.descs[env.Action]
	if !ok {
		desc = genericToolDescription
	}

	msg, err := b.runnable.Invoke(ctx, map[string]any{
		"Action":          env.Action,
		"ToolDescription": desc,
		"Request":         string(request),
	}, compose.WithCallbacks(newCallbacks(env.Action, b.modelName)))
	if err != nil {
		logx.Error().Err(err).Str("action", env.Action).Msg("chat model call failed")
		return nil, classifyModelError(err)
	}
	if msg == nil {
		return nil, errx.FromStatus(0, errors.New("chat model returned no message"))
	}
	return extractJSON(msg.Content), nil
}

// classifyModelError maps genai API status codes onto the backend failure kinds.
func classifyModelError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return errx.FromStatus(apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return errx.FromStatus(apiErrPtr.Code, err)
	}
	return errx.FromStatus(0, err)
}

// extractJSON pulls the outermost JSON object out of a model reply that may
// be wrapped in markdown fences or prose. Replies without one pass through.
func extractJSON(content string) []byte {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return []byte(s[start : end+1])
	}
	return []byte(s)
}
