package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lyric-assistant-core/server/internal/assistant/backend"
	"github.com/lyric-assistant-core/server/internal/assistant/invoker"
	"github.com/lyric-assistant-core/server/internal/assistant/messages"
	"github.com/lyric-assistant-core/server/internal/assistant/model"
	"github.com/lyric-assistant-core/server/internal/assistant/repo"
	"github.com/lyric-assistant-core/server/internal/assistant/rhythm"
	"github.com/lyric-assistant-core/server/internal/assistant/tools"
	"github.com/lyric-assistant-core/server/internal/assistant/workflow"
	"github.com/lyric-assistant-core/server/internal/core"
	logx "github.com/lyric-assistant-core/server/pkg/logger"
	pkgredis "github.com/lyric-assistant-core/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the demo,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis pkgredis.Config

	// Assistant
	Backend      model.BackendConfig
	Workflow     model.WorkflowConfig
	Conversation model.ConversationConfig

	// Demo
	SessionID    string `envconfig:"SESSION_ID"`
	DemoWorkflow string `envconfig:"DEMO_WORKFLOW" default:"polish"`
	DemoGenre    string `envconfig:"DEMO_GENRE" default:"indie pop"`
	DemoMood     string `envconfig:"DEMO_MOOD" default:"bittersweet"`
}

const sampleLyrics = `[Verse 1]
Streetlights hum a tired tune
We were dancing on the roof in June
Every window holds a memory of you tonight

[Chorus]
Hold on, hold on
The city never sleeps when you are gone`

// editor is the demo's stand-in for the lyric editor the assistant works on.
type editor struct {
	mu    sync.Mutex
	text  string
	tags  []string
	style string
	genre string
	mood  string
}

func (e *editor) Session() model.SessionContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.SessionContext{
		ExistingText:       e.text,
		Genre:              e.genre,
		Mood:               e.mood,
		GlobalTags:         append([]string(nil), e.tags...),
		StyleContextPrompt: e.style,
	}
}

func (e *editor) callbacks() invoker.Callbacks {
	return invoker.Callbacks{
		OnLyricsAccepted: func(text string) {
			e.mu.Lock()
			e.text = text
			e.mu.Unlock()
			logx.Info().Int("chars", len(text)).Msg("lyrics applied to editor")
		},
		OnTagsAccepted: func(tags []string) {
			e.mu.Lock()
			e.tags = tags
			e.mu.Unlock()
			logx.Info().Strs("tags", tags).Msg("tags applied to editor")
		},
		OnStylePromptAccepted: func(prompt string) {
			e.mu.Lock()
			e.style = prompt
			e.mu.Unlock()
			logx.Info().Str("style_prompt", prompt).Msg("style prompt applied to editor")
		},
	}
}

func main() {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		logx.Warn().Err(err).Msg("Could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}

	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		logx.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.Backend.Kind == "gemini" && cfg.Backend.Gemini.APIKey == "" {
		logx.Fatal().Msg("GEMINI_API_KEY is required for the gemini backend")
	}
	if cfg.Backend.Kind == "http" && cfg.Backend.HTTP.URL == "" {
		logx.Fatal().Msg("ASSISTANT_FUNCTION_URL is required for the http backend")
	}

	if _, ok := workflow.Lookup(cfg.DemoWorkflow); !ok {
		logx.Fatal().Str("value", cfg.DemoWorkflow).Strs("known", workflow.DefaultCatalog().IDs()).Msg("Unknown DEMO_WORKFLOW")
	}

	stepDelay, err := time.ParseDuration(cfg.Workflow.StepDelay)
	if err != nil {
		logx.Fatal().Err(err).Str("value", cfg.Workflow.StepDelay).Msg("Invalid WORKFLOW_STEP_DELAY")
	}
	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("value", cfg.Conversation.TTL).Msg("Invalid CONVERSATION_TTL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var logOpts []messages.Option
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
		}
		defer rdb.Close()
		logx.Info().Msg("Connected to Redis successfully")
		logOpts = append(logOpts, messages.WithRepository(repo.NewRedisMessageRepository(rdb, ttl)))
	}
	msgLog := messages.NewLog(sessionID, logOpts...)
	if err := msgLog.Restore(ctx); err != nil {
		logx.Fatal().Err(err).Str("session_id", sessionID).Msg("Failed to restore message history")
	}

	catalog := tools.Default()
	be, err := backend.New(ctx, cfg.Backend, catalog)
	if err != nil {
		logx.Fatal().Err(err).Str("backend", cfg.Backend.Kind).Msg("Failed to build backend")
	}

	ed := &editor{text: sampleLyrics, genre: cfg.DemoGenre, mood: cfg.DemoMood}
	inv := invoker.New(invoker.Config{
		Backend:   be,
		Catalog:   catalog,
		Log:       msgLog,
		Session:   ed.Session,
		Callbacks: ed.callbacks(),
	})

	logRhythm("before", ed.Session().ExistingText)

	engine := workflow.NewEngine(inv,
		workflow.WithStepDelay(stepDelay),
		workflow.WithObserver(func(ev workflow.Event) {
			if ev.Type == workflow.EventStepStarted || ev.Type == workflow.EventStatusChanged {
				logx.Info().
					Str("workflow_id", ev.WorkflowID).
					Str("event", string(ev.Type)).
					Str("tool_id", ev.ToolID).
					Str("status", string(ev.Status)).
					Float64("progress", ev.Progress).
					Msg("workflow progress")
			}
		}),
	)

	if err := engine.Start(ctx, cfg.DemoWorkflow); err != nil {
		logx.Error().Err(err).Str("workflow_id", cfg.DemoWorkflow).Msg("Workflow did not complete")
	}

	run := engine.Run()
	logx.Info().
		Str("run_id", run.ID).
		Str("status", string(run.Status)).
		Float64("progress", run.Progress()).
		Msg("Workflow finished")

	for _, m := range inv.Log().Messages() {
		logx.Info().
			Str("role", string(m.Role)).
			Str("tool_id", m.ToolID).
			Str("state", string(m.State)).
			Str("text", firstLine(m.Text)).
			Msg("message")
	}

	logRhythm("after", ed.Session().ExistingText)
}

func logRhythm(label, text string) {
	report := rhythm.Analyze(text)
	logx.Info().
		Str("stage", label).
		Int("overall_score", report.OverallScore).
		Float64("average_syllables", report.AverageSyllables).
		Msg("rhythm report")
	for _, line := range report.Lines {
		if !line.Analyzed || len(line.Issues) == 0 {
			continue
		}
		for _, is := range line.Issues {
			logx.Debug().
				Str("line", line.Text).
				Str("severity", string(is.Severity)).
				Str("pattern", line.StressPattern).
				Msg(is.Message)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
