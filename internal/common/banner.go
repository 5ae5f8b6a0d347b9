package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the startup banner and logs the effective endpoints (secrets omitted)
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("TicketDigest", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("glpi_url", config.GLPI.BaseURL).
		Str("llm_provider", string(config.LLM.Provider)).
		Str("text_model", config.LLM.Text.Model).
		Str("vision_model", config.LLM.Vision.Model).
		Str("embedding_model", config.LLM.Embedding.Model).
		Str("bucket", config.Storage.Bucket).
		Int("workers", config.Workers.Concurrency).
		Msg("TicketDigest starting")
}
