// Command authorityd runs the authority daemon: it wires the mandate
// engine and the SDK facade over the store, batches the ledger into signed
// Merkle roots on a timer, and takes periodic snapshots. It does not listen
// on ListenAddress; no transport is bound to the facade.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	authoritysdk "authoritycore/sdk/go"

	"authoritycore/config"
	"authoritycore/core/mandate"
	"authoritycore/core/principal"
	"authoritycore/crypto"
	"authoritycore/ledger"
	"authoritycore/merkle"
	"authoritycore/observability"
	"authoritycore/observability/logging"
	telemetry "authoritycore/observability/otel"
	"authoritycore/snapshot"
	"authoritycore/storage"
	"authoritycore/verify"
)

func main() {
	configPath := flag.String("config", "authorityd.toml", "path to the TOML configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("AUTHORITYD_ENV"))
	logging.Setup("authorityd", env)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Telemetry.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	if err := run(cfg); err != nil {
		log.Fatalf("authorityd failed: %v", err)
	}
}

func run(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	store, err := storage.Open(cfg.DataDir+"/authority.db", &bolt.Options{Timeout: time.Second})
	if err != nil {
		return err
	}
	defer store.Close()

	batchKey, err := crypto.PrivateKeyFromPEM(cfg.BatchSigningKeyPEM)
	if err != nil {
		return err
	}
	signer := merkle.NewECDSABatchSigner(batchKey, nil)

	cache := principal.NewPolicyCache(store, cfg.PolicyCacheTTL())
	engine := mandate.NewEngine(store, cache, store, store)

	metrics := observability.Mandates()
	engine.SetEmitter(emitterFunc(func(ev ledger.Event) {
		observability.Ledger().RecordAppend()
		switch ev.EventType {
		case ledger.EventIssued:
			metrics.RecordIssue(true, "")
		case ledger.EventDenied:
			metrics.RecordIssue(false, string(ev.DenialReason))
		case ledger.EventRevoked:
			metrics.RecordRevoke(false)
		}
	}))

	batcher := merkle.NewBatcher(store, signer, cfg.MerkleBatchSize, cfg.MerkleBatchInterval())
	verifier := verify.NewVerifier(store, signer)
	snapshots := snapshot.NewManager(store)
	recoverer := snapshot.NewRecoverer(store, store, store, verifier)

	facade := authoritysdk.New(engine, store, batcher, verifier, snapshots, recoverer)
	facade.SetPolicyCache(cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runBatchLoop(ctx, batcher, cfg.MerkleBatchInterval())
	go runSnapshotLoop(ctx, snapshots, cfg.SnapshotInterval(), cfg.SnapshotRetentionDays)

	slog.Info("authorityd ready", "listen", cfg.ListenAddress, "data_dir", cfg.DataDir)
	_ = facade // built but not served; nothing binds it to cfg.ListenAddress.

	<-ctx.Done()
	return nil
}

// runBatchLoop commits unbatched ledger events into a Merkle batch on
// every tick. A failed batch attempt is logged and retried on the next
// tick rather than aborting the loop.
func runBatchLoop(ctx context.Context, batcher *merkle.Batcher, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			root, err := batcher.RunOnce(10000)
			if err != nil {
				slog.Error("merkle batch failed", "error", err)
				continue
			}
			if root != nil {
				observability.Merkle().RecordBatch(string(root.Source), root.EventCount)
			}
		}
	}
}

// runSnapshotLoop takes a new snapshot and prunes expired ones on every
// tick.
func runSnapshotLoop(ctx context.Context, manager *snapshot.Manager, interval time.Duration, retentionDays int) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := manager.CreateSnapshot(); err != nil {
				slog.Error("snapshot failed", "error", err)
				continue
			}
			if _, err := manager.Cleanup(retentionDays); err != nil {
				slog.Error("snapshot cleanup failed", "error", err)
			}
		}
	}
}

// emitterFunc adapts a plain function to ledger.Emitter.
type emitterFunc func(ledger.Event)

func (f emitterFunc) Emit(ev ledger.Event) { f(ev) }
