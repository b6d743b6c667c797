package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestSetup_DefaultLevelHidesDebug(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, false)

	log.Debug().Msg("hidden detail")
	log.Warn().Msg("visible warning")

	out := buf.String()
	assert.NotContains(t, out, "hidden detail")
	assert.Contains(t, out, "visible warning")
}

func TestSetup_VerboseShowsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf, true)

	logger.Debug().Str("filter", `has(tags, "a")`).Msg("composed filter")

	out := buf.String()
	assert.Contains(t, out, "composed filter")
	assert.Contains(t, out, "filter=")
}

func TestSetup_BufferIsNotATerminal(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}
