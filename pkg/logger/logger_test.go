package logx

import (
	"bytes"
	"testing"

	"github.com/lyric-assistant-core/server/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestInitProductionDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	Init(LoggerOpts{Environment: core.Production, Output: &buf})
	defer Init()

	Debug().Msg("hidden")
	Info().Str("tool_id", "write").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"tool_id":"write"`)
}

func TestInitLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	Init(LoggerOpts{Environment: core.Production, Level: "debug", Output: &buf})
	defer Init()

	Debug().Msg("now visible")
	assert.Contains(t, buf.String(), "now visible")
}
