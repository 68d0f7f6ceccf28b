package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "data/z3trace.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 16<<20, cfg.Parser.MaxLineBytes)
	assert.Equal(t, 20, cfg.Parser.DiagnosticSample)
	assert.True(t, cfg.Parser.PersistDiagnostics)
	assert.Equal(t, 10, cfg.Parser.TopQuantifiers)
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  enabled: true
  path: /tmp/runs.db
  conn_max_lifetime: 1m
logger:
  level: debug
  format: json
parser:
  diagnostic_sample: 5
`)
	t.Setenv("Z3TRACE_LOGGER_LEVEL", "warn")
	t.Setenv("Z3TRACE_PARSER_TOP_QUANTIFIERS", "3")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 8080, "")
	flags.Int("diagnostic-sample", 20, "")
	flags.String("unrelated", "", "")
	require.NoError(t, flags.Parse([]string{"--diagnostic-sample=7"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	// file beats default, unset flag does not override the file
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "/tmp/runs.db", cfg.Database.Path)
	assert.Equal(t, time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "json", cfg.Logger.Format)

	// env beats file
	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.Equal(t, 3, cfg.Parser.TopQuantifiers)

	// set flag beats file
	assert.Equal(t, 7, cfg.Parser.DiagnosticSample)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, "logger:\n  format: xml\n")

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: 8080, MaxBodyBytes: 1},
			Database: DatabaseConfig{Path: "x.db"},
			Logger:   LoggerConfig{Format: "console"},
			Parser:   ParserConfig{MaxLineBytes: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "server.max_body_bytes"},
		{"store without path", func(c *Config) { c.Database.Enabled = true; c.Database.Path = "" }, "database.path"},
		{"disabled store without path", func(c *Config) { c.Database.Path = "" }, ""},
		{"bad format", func(c *Config) { c.Logger.Format = "text" }, "logger.format"},
		{"line limit", func(c *Config) { c.Parser.MaxLineBytes = 0 }, "parser.max_line_bytes"},
		{"negative sample", func(c *Config) { c.Parser.DiagnosticSample = -1 }, "parser.diagnostic_sample"},
		{"negative top", func(c *Config) { c.Parser.TopQuantifiers = -1 }, "parser.top_quantifiers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
