package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigViewportDefaults(t *testing.T) {
	w, h := Config{}.viewport()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 1024, h)

	w, h = Config{ViewportWidth: 800, ViewportHeight: 600}.viewport()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestSandboxFlagsDisableGPUAndForkServer(t *testing.T) {
	assert.Contains(t, SandboxFlags, "disable-gpu")
	assert.Contains(t, SandboxFlags, "single-process")
	assert.Contains(t, SandboxFlags, "no-zygote")
}

func TestNewRodDriverNilLogger(t *testing.T) {
	d := NewRodDriver(Config{Headless: true}, nil)
	assert.NotNil(t, d.logger)
}
