package serve

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qdlab/nanolume/internal/conf"
)

func TestRunRequiresWebServer(t *testing.T) {
	settings := &conf.Settings{}
	settings.WebServer.Enabled = false

	err := Run(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestCommandFlagsBindToSettings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := Command(&conf.Settings{})
	assert.Equal(t, "8080", cmd.Flags().Lookup("port").DefValue)

	require.NoError(t, cmd.Flags().Set("port", "9090"))
	require.NoError(t, cmd.Flags().Set("api-debug", "true"))
	assert.Equal(t, "9090", viper.GetString("webserver.port"))
	assert.True(t, viper.GetBool("webserver.debug"))
}
