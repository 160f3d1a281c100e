package config

import (
	"log/slog"
	"time"

	"github.com/kazanshin/website/pkg/service/maintenance"
	"github.com/kazanshin/website/pkg/utils/async"
	"github.com/urfave/cli/v3"
)

// Maintenance holds the compaction and consolidation thresholds and how the
// maintenance pass is scheduled after each turn.
type Maintenance struct {
	mode    string
	workers int64
	lockTTL time.Duration

	compressAt     int64
	compressBatch  int64
	entryClip      int64
	transcriptClip int64

	consolidateAt    int64
	consolidateBatch int64
	memoryClip       int64
}

func (x *Maintenance) Flags() []cli.Flag {
	def := maintenance.DefaultConfig()

	return []cli.Flag{
		&cli.StringFlag{
			Name:        "maintenance-mode",
			Usage:       "Run maintenance inline with the turn or in background [sync|async]",
			Category:    "Maintenance",
			Value:       string(async.ModeSync),
			Sources:     cli.EnvVars("ECHO_MAINTENANCE_MODE"),
			Destination: &x.mode,
		},
		&cli.Int64Flag{
			Name:        "maintenance-workers",
			Usage:       "Concurrent background maintenance passes in async mode",
			Category:    "Maintenance",
			Value:       1,
			Sources:     cli.EnvVars("ECHO_MAINTENANCE_WORKERS"),
			Destination: &x.workers,
		},
		&cli.DurationFlag{
			Name:        "maintenance-lock-ttl",
			Usage:       "Expiry of the maintenance lock, long enough for two generation calls",
			Category:    "Maintenance",
			Value:       def.LockTTL,
			Sources:     cli.EnvVars("ECHO_MAINTENANCE_LOCK_TTL"),
			Destination: &x.lockTTL,
		},
		&cli.Int64Flag{
			Name:        "compress-at",
			Usage:       "Log length that triggers compaction",
			Category:    "Maintenance",
			Value:       def.CompressAt,
			Sources:     cli.EnvVars("ECHO_COMPRESS_AT"),
			Destination: &x.compressAt,
		},
		&cli.Int64Flag{
			Name:        "compress-batch",
			Usage:       "Oldest entries folded into one memory",
			Category:    "Maintenance",
			Value:       def.CompressBatch,
			Sources:     cli.EnvVars("ECHO_COMPRESS_BATCH"),
			Destination: &x.compressBatch,
		},
		&cli.Int64Flag{
			Name:        "compress-entry-clip",
			Usage:       "Characters kept from each entry in a compaction transcript",
			Category:    "Maintenance",
			Value:       int64(def.EntryClip),
			Sources:     cli.EnvVars("ECHO_COMPRESS_ENTRY_CLIP"),
			Destination: &x.entryClip,
		},
		&cli.Int64Flag{
			Name:        "compress-transcript-clip",
			Usage:       "Characters kept from a whole compaction transcript",
			Category:    "Maintenance",
			Value:       int64(def.TranscriptClip),
			Sources:     cli.EnvVars("ECHO_COMPRESS_TRANSCRIPT_CLIP"),
			Destination: &x.transcriptClip,
		},
		&cli.Int64Flag{
			Name:        "consolidate-at",
			Usage:       "Memory entries that trigger consolidation",
			Category:    "Maintenance",
			Value:       int64(def.ConsolidateAt),
			Sources:     cli.EnvVars("ECHO_CONSOLIDATE_AT"),
			Destination: &x.consolidateAt,
		},
		&cli.Int64Flag{
			Name:        "consolidate-batch",
			Usage:       "Oldest memory entries merged into one meta-memory",
			Category:    "Maintenance",
			Value:       int64(def.ConsolidateBatch),
			Sources:     cli.EnvVars("ECHO_CONSOLIDATE_BATCH"),
			Destination: &x.consolidateBatch,
		},
		&cli.Int64Flag{
			Name:        "consolidate-memory-clip",
			Usage:       "Characters kept from the merged memory text",
			Category:    "Maintenance",
			Value:       int64(def.MemoryClip),
			Sources:     cli.EnvVars("ECHO_CONSOLIDATE_MEMORY_CLIP"),
			Destination: &x.memoryClip,
		},
	}
}

func (x Maintenance) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("mode", x.mode),
		slog.Int64("workers", x.workers),
		slog.Duration("lock_ttl", x.lockTTL),
		slog.Int64("compress_at", x.compressAt),
		slog.Int64("compress_batch", x.compressBatch),
		slog.Int64("consolidate_at", x.consolidateAt),
		slog.Int64("consolidate_batch", x.consolidateBatch),
	)
}

// Config builds the validated maintenance configuration for the given keys
// and pulse marker. The lock TTL must leave room for two generation calls
// of generationBudget.
func (x *Maintenance) Config(logKey, lockKey, pulseMarker string, generationBudget time.Duration) (maintenance.Config, error) {
	cfg := maintenance.Config{
		LogKey:           logKey,
		LockKey:          lockKey,
		LockTTL:          x.lockTTL,
		GenerationBudget: generationBudget,
		CompressAt:       x.compressAt,
		CompressBatch:    x.compressBatch,
		EntryClip:        int(x.entryClip),
		TranscriptClip:   int(x.transcriptClip),
		ConsolidateAt:    int(x.consolidateAt),
		ConsolidateBatch: int(x.consolidateBatch),
		MemoryClip:       int(x.memoryClip),
		PulseMarker:      pulseMarker,
	}
	if err := cfg.Validate(); err != nil {
		return maintenance.Config{}, err
	}
	return cfg, nil
}

// Runner creates the runner scheduling maintenance after each turn.
func (x *Maintenance) Runner() (*async.Runner, error) {
	mode := async.Mode(x.mode)
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	return async.NewRunner(mode, int(x.workers)), nil
}
