package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiguide/epiguide/internal/config"
)

// validServeConfig returns a config that passes validation, for tests that
// only exercise argument handling.
func validServeConfig() *config.Config {
	return &config.Config{
		GeminiAPIKey:  "test-key",
		ModelName:     config.DefaultGeminiModel,
		EmbedderModel: config.DefaultGeminiEmbedderModel,
		Addr:          "127.0.0.1:8080",
	}
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[strings.Fields(c.Use)[0]] = true
	}
	for _, want := range []string{"plan", "lookup", "ingest", "serve", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	cmd := *versionCmd
	cmd.SetOut(&buf)

	require.NoError(t, runVersion(&cmd, nil))
	assert.Contains(t, buf.String(), "epiguide")
	assert.Contains(t, buf.String(), AppVersion)
}

func TestLookupCommand_RequiresGeneOrVariant(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Cleanup(func() { lookupGene, lookupVariant = "", "" })

	lookupGene, lookupVariant = "", ""
	err := runLookup(lookupCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--gene")
}
