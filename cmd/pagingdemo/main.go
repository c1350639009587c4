// Command pagingdemo exercises a single paging channel end-to-end against
// real store implementations: a bbolt-backed PersistenceManager and an
// in-memory MessageStore. It has no transport or wire protocol of its own
// — those are explicitly out of scope for the paging channel core — it
// only drives the channel directly to demonstrate paging, refill, and
// cancel-to-front behavior.
//
// Usage:
//
//	pagingdemo [--config path/to/config.yaml]
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/rvsoni/hornetq/internal/channel"
	"github.com/rvsoni/hornetq/internal/config"
	"github.com/rvsoni/hornetq/internal/idgen"
	"github.com/rvsoni/hornetq/internal/store"
	"github.com/rvsoni/hornetq/internal/store/bolt"
	"github.com/rvsoni/hornetq/internal/store/memstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pagingdemo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// ── 1. Load configuration ────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// ── 2. Set up structured logger ──────────────────────────────────────────
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── 3. Initialise node identity ──────────────────────────────────────────
	nodeID, err := idgen.New()
	if err != nil {
		return fmt.Errorf("init node id: %w", err)
	}
	logger.Info("pagingdemo starting", "node_id", nodeID, "store_path", cfg.Store.Path)

	// ── 4. Open the persistence manager and message store ───────────────────
	if err := os.MkdirAll(cfg.Node.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	pm, err := bolt.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer pm.Close()
	ms := memstore.New()

	// ── 5. Build a channel scaled down from the configured defaults so the
	//       demo can actually trigger paging without millions of messages ──
	ch, err := channel.New(channel.Config{
		ChannelID:              "demo",
		FullSize:               4,
		PageSize:               2,
		DownCacheSize:          2,
		AcceptReliableMessages: cfg.Paging.AcceptReliableMessages,
		Recoverable:            cfg.Paging.Recoverable,
	}, ms, pm, logger)
	if err != nil {
		return fmt.Errorf("create channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Load(); err != nil {
		return fmt.Errorf("load channel: %w", err)
	}

	if err := demonstratePaging(ch, ms, pm, logger); err != nil {
		return fmt.Errorf("demonstrate paging: %w", err)
	}

	logger.Info("pagingdemo finished")
	return nil
}

// demonstratePaging drives the channel through the add/overflow/refill/
// cancel lifecycle described by the paging algorithm, logging state at
// each step.
func demonstratePaging(ch *channel.Channel, ms *memstore.Store, pm *bolt.Store, logger *slog.Logger) error {
	ids := []string{"A", "B", "C", "D", "E", "F"}
	for _, id := range ids {
		msg := store.Message{ID: id, Priority: 4, Body: []byte(id)}
		if err := pm.PutMessage(msg); err != nil {
			return fmt.Errorf("put message %s: %w", id, err)
		}
		ref := ms.ReferenceForMessage(msg)
		if err := ch.Add(ref); err != nil {
			return fmt.Errorf("add %s: %w", id, err)
		}
		logger.Info("added reference", "id", id, "paging", ch.IsPaging(),
			"messageCount", ch.MessageCount(), "downCache", ch.DownCacheCount())
	}

	first, err := ch.RemoveFirst()
	if err != nil {
		return fmt.Errorf("removeFirst: %w", err)
	}
	if first == nil {
		return fmt.Errorf("expected a reference to remove, channel was empty")
	}
	logger.Info("removed reference", "id", first.MessageID, "messageCount", ch.MessageCount())

	if err := ch.Cancel(first); err != nil {
		return fmt.Errorf("cancel %s: %w", first.MessageID, err)
	}
	logger.Info("cancelled reference back to front", "id", first.MessageID, "messageCount", ch.MessageCount())

	for {
		ref, err := ch.RemoveFirst()
		if err != nil {
			return fmt.Errorf("removeFirst: %w", err)
		}
		if ref == nil {
			break
		}
		logger.Info("delivered reference", "id", ref.MessageID)
	}
	return nil
}
