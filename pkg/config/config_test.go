package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Project:         "my-project",
		Instance:        "my-instance",
		DefaultDatabase: "my-db",
		TCPPort:         5432,
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidateAccumulatesErrors(t *testing.T) {
	cfg := Config{TCPPort: -1}
	err := cfg.Validate()
	require.Error(t, err)
	// Every problem is reported at once, not just the first.
	assert.Contains(t, err.Error(), "project")
	assert.Contains(t, err.Error(), "instance")
	assert.Contains(t, err.Error(), "database")
	assert.Contains(t, err.Error(), "invalid tcp port")
}

func TestConfigValidateRequiresAListener(t *testing.T) {
	cfg := validConfig()
	cfg.TCPPort = 0
	cfg.UnixSocketDir = ""
	require.Error(t, cfg.Validate())

	cfg.UnixSocketDir = "/tmp"
	require.NoError(t, cfg.Validate())
}

func TestDatabasePath(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "projects/my-project/instances/my-instance/databases/my-db", cfg.DatabasePath(""))
	assert.Equal(t, "projects/my-project/instances/my-instance/databases/other", cfg.DatabasePath("other"))
}

func TestParseByteSize(t *testing.T) {
	cases := []struct {
		in   string
		want ByteSize
	}{
		{"1024", 1024},
		{"256b", 256},
		{"256kb", 256 * KB},
		{"256KiB", 256 * KiB},
		{"1m", 1 * MB},
		{"16MiB", 16 * MiB},
		{"2gb", 2 * GB},
		{"1.5kib", 1536},
	}
	for _, tc := range cases {
		got, err := ParseByteSize(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "abc", "12xb", "mb"} {
		_, err := ParseByteSize(bad)
		assert.Error(t, err, bad)
	}
}

func TestByteSizeString(t *testing.T) {
	assert.Equal(t, "16MiB", (16 * MiB).String())
	assert.Equal(t, "2KB", (2 * KB).String())
	assert.Equal(t, "976", ByteSize(976).String())
}

func TestByteSizeFlagValue(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.Set("4MiB"))
	assert.Equal(t, 4*MiB, b)
	require.Error(t, b.Set("nope"))
}

func TestParsePrometheusListen(t *testing.T) {
	assert.Nil(t, ParsePrometheusListen(""))

	cfg := ParsePrometheusListen(":9090")
	require.NotNil(t, cfg)
	assert.Equal(t, ":9090", cfg.GetListen())
	assert.Equal(t, "/metrics", cfg.GetPath())

	cfg = ParsePrometheusListen("0.0.0.0:9191/stats")
	assert.Equal(t, "0.0.0.0:9191", cfg.GetListen())
	assert.Equal(t, "/stats", cfg.GetPath())
}

func TestTLSConfigValidate(t *testing.T) {
	disabled := TLSConfig{}
	require.NoError(t, disabled.Validate())

	bad := TLSConfig{SSLMode: "prefer"}
	require.Error(t, bad.Validate())

	noCert := TLSConfig{SSLMode: SSLModeRequire}
	require.Error(t, noCert.Validate())

	generated := TLSConfig{SSLMode: SSLModeRequire, GenerateCert: true}
	require.NoError(t, generated.Validate())

	partial := TLSConfig{SSLMode: SSLModeAllow, CertPath: "cert.pem"}
	require.Error(t, partial.Validate())
}

func TestTLSConfigEnabled(t *testing.T) {
	assert.False(t, (&TLSConfig{}).Enabled())
	assert.False(t, (&TLSConfig{SSLMode: SSLModeDisable}).Enabled())
	assert.True(t, (&TLSConfig{SSLMode: SSLModeAllow}).Enabled())
	assert.True(t, (&TLSConfig{SSLMode: SSLModeRequire}).Enabled())
	assert.True(t, (&TLSConfig{SSLMode: SSLModeRequire}).Required())
	assert.False(t, (&TLSConfig{SSLMode: SSLModeAllow}).Required())
}

func TestGenerateSelfSignedCert(t *testing.T) {
	cfg := TLSConfig{SSLMode: SSLModeAllow, GenerateCert: true}
	result, err := cfg.NewTLS()
	require.NoError(t, err)
	require.NotNil(t, result.Config)
	assert.NotEmpty(t, result.Config.Certificates)
	assert.Empty(t, result.WrittenFiles)
}

func TestOpenTelemetryConfigValidate(t *testing.T) {
	disabled := OpenTelemetryConfig{}
	require.NoError(t, disabled.Validate())

	ok := OpenTelemetryConfig{Enabled: true, SamplingRate: 0.5}
	require.NoError(t, ok.Validate())
	assert.Equal(t, "pgadapter", ok.GetServiceName())
	assert.Equal(t, "grpc", ok.GetOTLPProtocol())

	badProtocol := OpenTelemetryConfig{Enabled: true, OTLPProtocol: "carrier-pigeon"}
	require.Error(t, badProtocol.Validate())

	badRate := OpenTelemetryConfig{Enabled: true, SamplingRate: 1.5}
	require.Error(t, badRate.Validate())
}
