// acp-sync-bench drives a single SyncEngine through a scripted mix of
// local writes, remote applies, and offline-queue restarts. It is a
// manual smoke-testing harness, not a product CLI: there is no
// network transport here, only the engine's own public operations
// called directly from this process.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"acp-sync/internal/codec"
	"acp-sync/internal/config"
	"acp-sync/internal/crypto"
	"acp-sync/internal/hlc"
	"acp-sync/internal/metrics"
	"acp-sync/internal/storage"
	syncengine "acp-sync/internal/sync"
)

func encodeRemoteValue(v codec.Value) ([]byte, error) {
	return codec.EncodeValue(v)
}

// remoteTimestamp fabricates a plausible HLC for a synthetic remote
// peer: close to wall-clock time but jittered, so concurrent local and
// remote writes to the same key exercise both branches of the LWW
// accept rule instead of the remote side always losing.
func remoteTimestamp() hlc.HLC {
	return hlc.HLC{Physical: hlc.NowMillis() + int64(rand.Intn(5)-2)}
}

type benchConfig struct {
	WorkspaceID     string
	PeerID          string
	StorageKind     string
	StoragePath     string
	EncryptionKey   string
	MetricsAddr     string
	Duration        time.Duration
	OpsPerSecond    int
	RemotePeers     int
	SimulateRestart bool
}

func main() {
	cfg := benchConfig{}
	flag.StringVar(&cfg.WorkspaceID, "workspace", "bench-workspace", "workspace id the engine is configured with")
	flag.StringVar(&cfg.PeerID, "peer", "", "peer id, generated if empty")
	flag.StringVar(&cfg.StorageKind, "storage", "memory", "storage adapter: memory or bolt")
	flag.StringVar(&cfg.StoragePath, "storage-path", "./acp-sync-bench.db", "bolt db path, only used when -storage=bolt")
	flag.StringVar(&cfg.EncryptionKey, "encryption-key", "", "hex-encoded 32-byte key, empty disables encryption")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", ":9091", "address the /metrics endpoint listens on")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "how long to run the workload")
	flag.IntVar(&cfg.OpsPerSecond, "rate", 50, "target local operations per second")
	flag.IntVar(&cfg.RemotePeers, "remote-peers", 2, "number of synthetic remote peers applying concurrent writes")
	flag.BoolVar(&cfg.SimulateRestart, "simulate-restart", true, "destroy and rebuild the engine against the same storage before exiting")
	flag.Parse()

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg benchConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received interrupt, winding down")
		cancel()
	}()

	store, err := newStorageAdapter(cfg)
	if err != nil {
		return err
	}

	var enc crypto.Adapter
	if cfg.EncryptionKey != "" {
		key, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return fmt.Errorf("decode encryption key: %w", err)
		}
		adapter, err := crypto.NewSecretboxAdapter(key)
		if err != nil {
			return fmt.Errorf("build encryption adapter: %w", err)
		}
		enc = adapter
		logger.Info("encryption enabled", zap.String("key_id", adapter.KeyID()))
	}

	m := metrics.NewMetrics("acp_sync_bench")
	reader := metrics.NewMetricsReader(m)

	engineCfg := &config.Config{
		WorkspaceID:       cfg.WorkspaceID,
		PeerID:            cfg.PeerID,
		MaxQueueSize:      1000,
		StabilityWindowMs: 5000,
		HLCMaxDrift:       500 * time.Millisecond,
	}

	engine := syncengine.NewEngine(engineCfg, store, enc, m, logger)
	if err := engine.Boot(ctx); err != nil {
		return fmt.Errorf("boot engine: %w", err)
	}
	logger.Info("engine booted", zap.String("peer_id", engine.PeerID()), zap.String("storage", cfg.StorageKind))

	unsubscribe := engine.Subscribe(func(ev syncengine.Event) {
		if ev.Kind == syncengine.EventError {
			logger.Warn("engine reported an error event", zap.String("kind", ev.ErrorKind), zap.String("detail", ev.Detail))
		}
	})
	defer unsubscribe()

	http.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer metricsServer.Close()

	runWorkload(ctx, engine, cfg, logger)

	logger.Info("workload complete",
		zap.Float64("accepted_rate", reader.GetOpsAcceptedRate()))
	if qs, err := reader.GetQueueSize(); err == nil {
		logger.Info("final pending queue size", zap.Float64("size", qs))
	}

	if cfg.SimulateRestart {
		logger.Info("simulating restart: destroying engine and rebuilding against the same storage")
		engine.Destroy()

		rebuilt := syncengine.NewEngine(engineCfg, store, enc, m, logger)
		if err := rebuilt.Boot(context.Background()); err != nil {
			return fmt.Errorf("reboot engine: %w", err)
		}
		logger.Info("engine rebuilt, offline queue rehydrated from storage")
		rebuilt.Destroy()
	} else {
		engine.Destroy()
	}

	return nil
}

func newStorageAdapter(cfg benchConfig) (storage.Adapter, error) {
	switch cfg.StorageKind {
	case "memory":
		return storage.NewMemoryAdapter(), nil
	case "bolt":
		return storage.NewBoltAdapter(cfg.StoragePath), nil
	default:
		return nil, fmt.Errorf("unknown storage adapter %q, want memory or bolt", cfg.StorageKind)
	}
}

// runWorkload issues local writes at the configured rate, interleaved
// with synthetic remote applies from a handful of fictitious peers, so
// LWW merge and the causal buffer both see traffic during the run.
func runWorkload(ctx context.Context, engine *syncengine.Engine, cfg benchConfig, logger *zap.Logger) {
	if cfg.OpsPerSecond <= 0 {
		return
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.OpsPerSecond))
	defer ticker.Stop()

	deadline := time.After(cfg.Duration)
	keys := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	remotePeers := make([]string, cfg.RemotePeers)
	for i := range remotePeers {
		remotePeers[i] = fmt.Sprintf("remote-peer-%d", i)
	}

	var localOps, remoteOps int

	for {
		select {
		case <-ctx.Done():
			logger.Info("workload cancelled", zap.Int("local_ops", localOps), zap.Int("remote_ops", remoteOps))
			return
		case <-deadline:
			logger.Info("workload duration elapsed", zap.Int("local_ops", localOps), zap.Int("remote_ops", remoteOps))
			return
		case <-ticker.C:
			key := keys[rand.Intn(len(keys))]

			if rand.Intn(4) == 0 {
				if _, err := engine.Delete(ctx, key); err != nil {
					logger.Warn("delete failed", zap.String("key", key), zap.Error(err))
				}
			} else {
				value := fmt.Sprintf("v-%d", rand.Int63())
				if _, err := engine.Set(ctx, key, value); err != nil {
					logger.Warn("set failed", zap.String("key", key), zap.Error(err))
				}
			}
			localOps++

			if len(remotePeers) > 0 && rand.Intn(3) == 0 {
				simulateRemoteWrite(ctx, engine, keys[rand.Intn(len(keys))], remotePeers[rand.Intn(len(remotePeers))])
				remoteOps++
			}
		}
	}
}

func simulateRemoteWrite(ctx context.Context, engine *syncengine.Engine, key, peer string) {
	value, err := encodeRemoteValue(fmt.Sprintf("remote-%d", rand.Int63()))
	if err != nil {
		return
	}
	ts := remoteTimestamp()
	_ = engine.ApplyRemote(ctx, key, value, peer, ts, nil)
}
