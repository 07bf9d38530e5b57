package tlsutil

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Hardened(t *testing.T) {
	cfg := Config()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	require.NotEmpty(t, cfg.CipherSuites)

	insecure := map[uint16]bool{}
	for _, s := range tls.InsecureCipherSuites() {
		insecure[s.ID] = true
	}
	for _, id := range cfg.CipherSuites {
		assert.False(t, insecure[id], "suite %s is insecure", tls.CipherSuiteName(id))
	}
}

func TestConfig_Independent(t *testing.T) {
	a, b := Config(), Config()
	a.CipherSuites[0] = 0
	assert.NotEqual(t, a.CipherSuites[0], b.CipherSuites[0])
}

func TestHTTPClient(t *testing.T) {
	c := HTTPClient(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Zero(t, HTTPClient(0).Timeout)
}
