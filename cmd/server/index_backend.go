package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"toolcore.dev/internal/persistence/indexdb"
	"toolcore.dev/internal/protocol"
	"toolcore.dev/internal/sim/tuning"
)

type runtimeIndex interface {
	Publish(rep protocol.TickReport) error
	Close() error
	UpsertTuning(tune tuning.Tuning) error
	Stats() indexdb.Stats
	ToolStats(ctx context.Context) ([]indexdb.ToolStat, error)
	CellHistory(ctx context.Context, grid string, cell [3]int) ([]indexdb.OutcomeRow, error)
}

func openRuntimeIndex(path string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("TC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unsupported TC_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
