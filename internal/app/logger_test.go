package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobeco/fairprice/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(logger.Replace(logger.Logger()))

	require.NoError(t, ConfigureLogging(ServerConfig{Environment: EnvProduction, LogLevel: "warn"}))
	require.True(t, logger.Logger().Core().Enabled(zap.WarnLevel))
	require.False(t, logger.Logger().Core().Enabled(zap.InfoLevel))

	require.NoError(t, ConfigureLogging(ServerConfig{}))
	require.True(t, logger.Logger().Core().Enabled(zap.InfoLevel))
	require.False(t, logger.Logger().Core().Enabled(zap.DebugLevel))
}
