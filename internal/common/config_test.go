package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	config := NewDefaultConfig()
	config.GLPI.BaseURL = "https://glpi.example.com/apirest.php"
	config.GLPI.AppToken = "app"
	config.LLM.Text.APIKey = "text-key"
	config.LLM.Vision.APIKey = "vision-key"
	config.Storage.Bucket = "reports"
	config.Storage.AccessKeyID = "AKIA"
	config.Storage.SecretAccessKey = "secret"
	return config
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 8001, config.Server.Port)
	assert.Equal(t, 3, config.GLPI.MaxRetries)
	assert.Equal(t, DefaultTextPrompt, config.Prompts.Text)
	assert.Equal(t, DefaultImagePrompt, config.Prompts.Image)
	assert.Equal(t, "Meta-Llama-3-1-8B-Instruct-FP8", config.LLM.Text.Model)
	assert.Equal(t, "BAAI/bge-large-en-v1.5", config.LLM.Embedding.Model)
	assert.Equal(t, LLMProviderOpenAI, config.LLM.Provider)
}

func TestLoadFromFiles_LaterFileOverrides(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "base.toml")
	second := filepath.Join(dir, "local.toml")

	require.NoError(t, os.WriteFile(first, []byte(`
[server]
port = 9000

[glpi]
base_url = "https://glpi.one/apirest.php"
app_token = "one"
`), 0644))
	require.NoError(t, os.WriteFile(second, []byte(`
[glpi]
app_token = "two"

[workers]
concurrency = 8
`), 0644))

	config, err := LoadFromFiles(first, second)
	require.NoError(t, err)

	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "https://glpi.one/apirest.php", config.GLPI.BaseURL)
	assert.Equal(t, "two", config.GLPI.AppToken)
	assert.Equal(t, 8, config.Workers.Concurrency)
	assert.Equal(t, 64, config.Workers.QueueSize, "untouched default survives")
}

func TestLoadFromFiles_PromptFile(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "config.yaml")
	configPath := filepath.Join(dir, "ticketdigest.toml")

	require.NoError(t, os.WriteFile(promptPath, []byte(`
prompt: "Summarize for the service desk: {ticket_content}"
image_prompt: "What does this screenshot show?"
`), 0644))
	require.NoError(t, os.WriteFile(configPath, []byte(`
[prompts]
text = "from toml"
file = "`+filepath.ToSlash(promptPath)+`"
`), 0644))

	config, err := LoadFromFiles(configPath)
	require.NoError(t, err)

	assert.Equal(t, "Summarize for the service desk: {ticket_content}", config.Prompts.Text)
	assert.Equal(t, "What does this screenshot show?", config.Prompts.Image)
	assert.Equal(t, DefaultCombinePrompt, config.Prompts.Combine, "absent key keeps the current value")
}

func TestLoadFromFiles_PromptFileEnvWins(t *testing.T) {
	promptPath := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(promptPath, []byte("prompt: from yaml\nimage_prompt: image from yaml\n"), 0644))

	t.Setenv("TICKETDIGEST_PROMPTS_FILE", promptPath)
	t.Setenv("PROMPT", "from env")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "from env", config.Prompts.Text)
	assert.Equal(t, "image from yaml", config.Prompts.Image)
}

func TestLoadFromFiles_PromptFileMissingIsIgnored(t *testing.T) {
	t.Setenv("TICKETDIGEST_PROMPTS_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, DefaultTextPrompt, config.Prompts.Text)
}

func TestLoadFromFiles_PromptFileMalformed(t *testing.T) {
	promptPath := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(promptPath, []byte("prompt: [unclosed\n"), 0644))
	t.Setenv("TICKETDIGEST_PROMPTS_FILE", promptPath)

	_, err := LoadFromFiles()
	assert.Error(t, err)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestApplyEnvOverrides_LegacyNames(t *testing.T) {
	t.Setenv("GLPI_URL", "https://legacy.example.com/apirest.php")
	t.Setenv("GLPI_APP_TOKEN", "legacy-app")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("AKASH_API_KEY", "akash")
	t.Setenv("OPENROUTER_API_KEY", "openrouter")
	t.Setenv("PROMPT", "Summarize briefly: {ticket_content}")
	t.Setenv("WASABI_BUCKET_NAME", "legacy-bucket")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "https://legacy.example.com/apirest.php", config.GLPI.BaseURL)
	assert.Equal(t, "legacy-app", config.GLPI.AppToken)
	assert.Equal(t, 5, config.GLPI.MaxRetries)
	assert.Equal(t, "akash", config.LLM.Text.APIKey)
	assert.Equal(t, "openrouter", config.LLM.Vision.APIKey)
	assert.Equal(t, "Summarize briefly: {ticket_content}", config.Prompts.Text)
	assert.Equal(t, "legacy-bucket", config.Storage.Bucket)
}

func TestApplyEnvOverrides_PrefixedNamesWin(t *testing.T) {
	t.Setenv("GLPI_APP_TOKEN", "legacy")
	t.Setenv("TICKETDIGEST_GLPI_APP_TOKEN", "prefixed")

	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", config.GLPI.AppToken)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	ApplyFlagOverrides(config, 9999, "127.0.0.1")
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)

	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 9999, config.Server.Port, "zero flag does not override")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing glpi url", mutate: func(c *Config) { c.GLPI.BaseURL = "" }, wantErr: true},
		{name: "missing app token", mutate: func(c *Config) { c.GLPI.AppToken = "" }, wantErr: true},
		{name: "missing text key", mutate: func(c *Config) { c.LLM.Text.APIKey = "" }, wantErr: true},
		{name: "missing vision key", mutate: func(c *Config) { c.LLM.Vision.APIKey = "" }, wantErr: true},
		{name: "missing bucket", mutate: func(c *Config) { c.Storage.Bucket = "" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "mystery" }, wantErr: true},
		{name: "bad duration", mutate: func(c *Config) { c.Pipeline.RunTimeout = "soon" }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Workers.Concurrency = 0 }, wantErr: true},
		{name: "combine without text summary", mutate: func(c *Config) { c.Prompts.Combine = "Merge: {image_summary}" }, wantErr: true},
		{name: "combine without image summary", mutate: func(c *Config) { c.Prompts.Combine = "Merge: {text_summary}" }, wantErr: true},
		{name: "combine with both summaries", mutate: func(c *Config) { c.Prompts.Combine = "A={text_summary} B={image_summary}" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigHelpers(t *testing.T) {
	config := validConfig()

	assert.Equal(t, "text-key", config.EmbeddingAPIKey())
	assert.Equal(t, config.LLM.Text.BaseURL, config.EmbeddingBaseURL())

	config.LLM.Embedding.APIKey = "embed-key"
	assert.Equal(t, "embed-key", config.EmbeddingAPIKey())

	policy := config.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, time.Second, policy.BackoffBase)
	assert.Equal(t, 5*time.Second, policy.BackoffCap)

	assert.Equal(t, 7*time.Second, ParseDurationOr("bogus", 7*time.Second))
	assert.Equal(t, 2*time.Minute, ParseDurationOr("2m", time.Second))
}
