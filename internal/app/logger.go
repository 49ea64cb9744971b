package app

import (
	"strings"

	"github.com/jobeco/fairprice/pkg/logger"
)

// ConfigureLogging builds the global logger for the server settings. Development
// logs to the console unless log_format says otherwise.
func ConfigureLogging(server ServerConfig) error {
	format := strings.ToLower(strings.TrimSpace(server.LogFormat))
	if format == "" {
		format = "json"
		if server.IsDevelopment() {
			format = "console"
		}
	}
	return logger.InitWithOptions(logger.Options{
		Level:  server.LogLevel,
		Format: format,
	})
}
