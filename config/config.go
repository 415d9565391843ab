// Package config loads the daemon's TOML configuration file, creating a
// default one (with a freshly generated batch-signing key) the first time
// it is run against a path that does not yet exist.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"authoritycore/crypto"
)

// Config is the daemon's full runtime configuration.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`

	// BatchSigningKeyPEM is the PKCS#8 PEM-encoded private key used to sign
	// every committed Merkle batch root. It is distinct from any individual
	// principal's key.
	BatchSigningKeyPEM string `toml:"BatchSigningKeyPEM"`

	// Merkle batching: authorityd closes a batch of the unbatched events on
	// every MerkleBatchIntervalSecs tick. MerkleBatchSize is the batcher's
	// size threshold as reported by Batcher.ShouldBatch; the daemon's loop
	// does not consult it, so reaching it does not by itself close a batch.
	MerkleBatchSize         int      `toml:"MerkleBatchSize"`
	MerkleBatchIntervalSecs int      `toml:"MerkleBatchIntervalSecs"`

	// PolicyCacheTTLSecs bounds how long an active policy lookup is served
	// from cache before falling through to the store.
	PolicyCacheTTLSecs int `toml:"PolicyCacheTTLSecs"`

	// SnapshotIntervalSecs controls how often the daemon takes a new
	// snapshot; SnapshotRetentionDays controls how long old snapshots are
	// kept before Cleanup prunes them.
	SnapshotIntervalSecs  int `toml:"SnapshotIntervalSecs"`
	SnapshotRetentionDays int `toml:"SnapshotRetentionDays"`

	// Telemetry mirrors observability/otel.Config for TOML loading.
	Telemetry TelemetryConfig `toml:"Telemetry"`
}

// TelemetryConfig configures the OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName string            `toml:"ServiceName"`
	Environment string            `toml:"Environment"`
	Endpoint    string            `toml:"Endpoint"`
	Insecure    bool              `toml:"Insecure"`
	Headers     map[string]string `toml:"Headers"`
	Metrics     bool              `toml:"Metrics"`
	Traces      bool              `toml:"Traces"`
}

// MerkleBatchInterval returns the configured batch time trigger as a
// time.Duration.
func (c *Config) MerkleBatchInterval() time.Duration {
	return time.Duration(c.MerkleBatchIntervalSecs) * time.Second
}

// PolicyCacheTTL returns the configured policy cache TTL as a
// time.Duration.
func (c *Config) PolicyCacheTTL() time.Duration {
	return time.Duration(c.PolicyCacheTTLSecs) * time.Second
}

// SnapshotInterval returns the configured snapshot cadence as a
// time.Duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSecs) * time.Second
}

// Load loads the configuration from path, creating a default file there if
// none exists. An existing file missing a batch-signing key has one
// generated and written back, the same way a first-run validator key is
// provisioned.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if cfg.BatchSigningKeyPEM == "" {
		if err := provisionBatchKey(cfg); err != nil {
			return nil, err
		}
		if err := rewrite(path, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// createDefault writes and returns a default configuration at path.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress:           ":8443",
		DataDir:                 "./authority-data",
		MerkleBatchSize:         1000,
		MerkleBatchIntervalSecs: 60,
		PolicyCacheTTLSecs:      30,
		SnapshotIntervalSecs:    3600,
		SnapshotRetentionDays:   30,
		Telemetry: TelemetryConfig{
			ServiceName: "authorityd",
			Environment: "development",
			Metrics:     true,
			Traces:      true,
		},
	}
	if err := provisionBatchKey(cfg); err != nil {
		return nil, err
	}
	if err := rewrite(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provisionBatchKey(cfg *Config) error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	pem, err := key.EncodePEM()
	if err != nil {
		return err
	}
	cfg.BatchSigningKeyPEM = pem
	return nil
}

func rewrite(path string, cfg *Config) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
