package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"loopback with port", "127.0.0.1:8080", false},
		{"localhost", "localhost:8080", false},
		{"all interfaces", "0.0.0.0:8080", false},
		{"port only", ":8080", false},
		{"auto-assign port", ":0", false},
		{"ipv6", "[::1]:8080", false},
		{"hostname", "epiguide.internal:8080", false},
		{"missing port", "127.0.0.1", true},
		{"non-numeric port", "localhost:http", true},
		{"port out of range", "localhost:70000", true},
		{"host with spaces", "bad host:8080", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddr(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveServeAddr(t *testing.T) {
	t.Cleanup(func() { serveAddr = "" })

	cfg := validServeConfig()

	t.Run("config default", func(t *testing.T) {
		serveAddr = ""
		addr, err := resolveServeAddr(cfg, nil)
		assert.NoError(t, err)
		assert.Equal(t, cfg.Addr, addr)
	})

	t.Run("flag overrides config", func(t *testing.T) {
		serveAddr = "0.0.0.0:9000"
		addr, err := resolveServeAddr(cfg, nil)
		assert.NoError(t, err)
		assert.Equal(t, "0.0.0.0:9000", addr)
	})

	t.Run("positional overrides flag", func(t *testing.T) {
		serveAddr = "0.0.0.0:9000"
		addr, err := resolveServeAddr(cfg, []string{":8081"})
		assert.NoError(t, err)
		assert.Equal(t, ":8081", addr)
	})

	t.Run("invalid address rejected", func(t *testing.T) {
		serveAddr = ""
		_, err := resolveServeAddr(cfg, []string{"no-port"})
		assert.Error(t, err)
	})
}
