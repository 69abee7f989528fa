package backend

import (
	"context"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/lyric-assistant-core/server/pkg/logger"
)

// newCallbacks logs the prompt and chat model lifecycle of one backend call.
func newCallbacks(action, modelName string) einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		Prompt(newPromptHandler(action)).
		ChatModel(newModelHandler(action, modelName)).
		Handler()
}

func newPromptHandler(action string) *callbackHelper.PromptCallbackHandler {
	return &callbackHelper.PromptCallbackHandler{
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *prompt.CallbackOutput) context.Context {
			if output != nil && len(output.Result) > 0 && output.Result[0] != nil {
				logx.Debug().
					Str("component", "prompt").
					Str("action", action).
					Int("messages", len(output.Result)).
					Int("system_len", len(output.Result[0].Content)).
					Msg("prompt rendered")
			}
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("component", "prompt").Str("action", action).Msg("prompt render failed")
			return ctx
		},
	}
}

func newModelHandler(action, modelName string) *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *einomodel.CallbackInput) context.Context {
			logx.Debug().Str("component", "chat_model").Str("name", info.Name).Str("action", action).Msg("model call start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *einomodel.CallbackOutput) context.Context {
			if output == nil || output.Message == nil {
				return ctx
			}
			ev := logx.Debug().
				Str("component", "chat_model").
				Str("action", action).
				Int("reply_len", len(strings.TrimSpace(output.Message.Content)))
			if u := output.TokenUsage; u != nil {
				_, _, cost := ComputeCost(u.PromptTokens, u.CompletionTokens, ResolvePricing(modelName))
				ev = ev.
					Int("prompt_tokens", u.PromptTokens).
					Int("completion_tokens", u.CompletionTokens).
					Float64("cost_usd", cost)
			}
			ev.Msg("model call end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("component", "chat_model").Str("action", action).Msg("model call failed")
			return ctx
		},
	}
}
