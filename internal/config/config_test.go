package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.General.LogLevel)
	assert.Equal(t, "https://api.x.com/2", cfg.Feed.BaseURL)
	assert.Equal(t, 100, cfg.Feed.PageSize)
	assert.Equal(t, 15, cfg.Jobs.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.Jobs.PollInterval)
	assert.Equal(t, "0 2 * * *", cfg.Schedule.HarvestCron)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replypilot.toml")
	content := `
[general]
account = "growthwriter"

[feed]
bearer_token = "token"
page_size = 50

[jobs]
max_retries = 3
poll_interval = "5s"

[persona]
name = "Ada"
audience = "founders"

[lists.founders]
id = "42"
slack_channel_id = "C1"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "growthwriter", cfg.General.Account)
	assert.Equal(t, 50, cfg.Feed.PageSize)
	assert.Equal(t, 3, cfg.Jobs.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Jobs.PollInterval)
	assert.Equal(t, "Ada", cfg.Persona.Name)
	assert.Equal(t, ListConfig{ID: "42", SlackChannelID: "C1"}, cfg.Lists["founders"])
	// Untouched keys keep their defaults.
	assert.Equal(t, 1.0, cfg.LLM.Temperature)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.General.Account = "growthwriter"
		cfg.Feed.BearerToken = "token"
		cfg.Index.PostsIndex = "x-posts"
		cfg.Index.RepliesIndex = "x-comments"
		cfg.LLM.Primary.Provider = "anthropic"
		cfg.LLM.Primary.APIKey = "key"
		cfg.Database.URL = "postgres://localhost/replypilot"
		return cfg
	}

	assert.NoError(t, Validate(valid()))

	missingAccount := valid()
	missingAccount.General.Account = ""
	assert.Error(t, Validate(missingAccount))

	missingIndex := valid()
	missingIndex.Index.RepliesIndex = ""
	assert.Error(t, Validate(missingIndex))

	badProvider := valid()
	badProvider.LLM.Primary.Provider = "ollama"
	assert.Error(t, Validate(badProvider))

	googleProvider := valid()
	googleProvider.LLM.Primary.Provider = "googleai"
	assert.NoError(t, Validate(googleProvider))
}

func TestInitConfigRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replypilot.toml")

	require.NoError(t, InitConfig(path))
	_, err := os.Stat(path)
	require.NoError(t, err)

	assert.Error(t, InitConfig(path))
}
