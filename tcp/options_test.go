// File: tcp/options_test.go
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/momentics/socev/internal/logx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOptionsDefaults(t *testing.T) {
	o, err := resolveOptions(nil)
	require.NoError(t, err)
	assert.NotNil(t, o.logger, "failures must be logged without WithLogger")
	assert.NotNil(t, o.limiter)
	assert.NotNil(t, o.metrics)
	assert.Equal(t, -1, o.cpu)
	assert.Equal(t, DefaultReceiveBufferSize, o.recvBufSize)
	assert.Equal(t, netip.IPv4Unspecified(), o.bind)
}

func TestWithLoggerNilDisablesLogging(t *testing.T) {
	o, err := resolveOptions([]Option{WithLogger(nil)})
	require.NoError(t, err)
	assert.Nil(t, o.logger)
}

func TestWithLoggerIsUsed(t *testing.T) {
	var buf bytes.Buffer
	l := logx.New(&buf, logiface.LevelWarning)
	o, err := resolveOptions([]Option{WithLogger(l)})
	require.NoError(t, err)
	require.Same(t, l, o.logger)
	o.logger.Warning().Str("k", "v").Log("read failed")
	assert.Contains(t, buf.String(), "read failed")
}

func TestOptionErrors(t *testing.T) {
	for _, opt := range []Option{
		WithReceiveBufferSize(0),
		WithBindAddress(netip.Addr{}),
		WithIdleTimeout(-1),
		WithCPU(-1),
	} {
		_, err := resolveOptions([]Option{opt})
		assert.Error(t, err)
	}
}
