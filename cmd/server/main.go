package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"toolcore.dev/internal/logs"
	persistlog "toolcore.dev/internal/persistence/log"
	"toolcore.dev/internal/persistence/snapshot"
	"toolcore.dev/internal/protocol"
	"toolcore.dev/internal/sim/scene"
	"toolcore.dev/internal/sim/tool"
	"toolcore.dev/internal/sim/tuning"
	"toolcore.dev/internal/transport/ws"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		addr       = flag.String("addr", "", "http listen address (default: serve.addr from tuning)")
		dataDir    = flag.String("data", "", "runtime data directory (default: storage.data_dir from tuning)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite report index")
		stderr     = flag.Bool("stderr", false, "mirror the application log to stderr")
		resume     = flag.Bool("resume", false, "restore the newest snapshot under the data directory")
	)
	flag.Parse()

	boot := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		boot.Fatalf("load tuning: %v", err)
	}
	if *addr != "" {
		tune.Serve.Addr = *addr
	}
	if *dataDir != "" {
		tune.Storage.DataDir = *dataDir
	}

	logger, err := logs.New(logs.Config{
		Dir:      tune.Log.Dir,
		File:     tune.Log.File,
		Keep:     tune.Log.Keep,
		MaxLines: tune.Log.MaxLines,
		Level:    tune.Log.Level,
		Stderr:   *stderr,
	})
	if err != nil {
		boot.Fatalf("logs: %v", err)
	}
	defer logger.Close()

	sc, err := scene.Build(tune, logger)
	if err != nil {
		logger.WithError(err).Error("build scene")
		boot.Fatalf("build scene: %v", err)
	}
	defer sc.Close()

	idx, err := openRuntimeIndex(tune.Storage.IndexPath, *disableDB)
	if err != nil {
		boot.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.WithError(err).Warn("index backend: upsert tuning")
		}
	}

	tickLog := persistlog.NewTickLogger(tune.Storage.DataDir)
	auditLog := persistlog.NewAuditLogger(tune.Storage.DataDir)
	defer tickLog.Close()
	defer auditLog.Close()

	hub := ws.NewServer(sc.Welcome, logger.WithField("component", "ws"))
	metrics := newToolMetrics()
	sinks := []tool.Sink{tickLog, auditLog, hub, metrics}
	if idx != nil {
		sinks = append(sinks, idx)
	}

	ctx, cancel := signalContext()
	defer cancel()

	driver := sc.Driver(sinks...)
	if *resume {
		tick, err := restoreLatest(sc, tune.SnapshotDir())
		if err != nil {
			logger.WithError(err).Error("resume")
			boot.Fatalf("resume: %v", err)
		}
		driver.Resume(tick)
	}
	if every := uint64(tune.Storage.SnapshotEveryTicks); every > 0 {
		driver.AfterStep = func(tick uint64) {
			if tick%every == 0 {
				writeSnapshot(sc, tune.SnapshotDir(), tick, logger)
			}
		}
	}
	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		if err := driver.Run(ctx); err != nil && err != context.Canceled {
			logger.WithError(err).Error("driver stopped")
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP toolcore_tick Last stepped tick.\n")
		fmt.Fprintf(rw, "# TYPE toolcore_tick gauge\n")
		fmt.Fprintf(rw, "toolcore_tick %d\n", driver.Tick())

		fmt.Fprintf(rw, "# HELP toolcore_subscribers Connected report subscribers.\n")
		fmt.Fprintf(rw, "# TYPE toolcore_subscribers gauge\n")
		fmt.Fprintf(rw, "toolcore_subscribers %d\n", hub.Subscribers())

		fmt.Fprintf(rw, "# HELP toolcore_reports_dropped_total Reports skipped for slow subscribers.\n")
		fmt.Fprintf(rw, "# TYPE toolcore_reports_dropped_total counter\n")
		fmt.Fprintf(rw, "toolcore_reports_dropped_total %d\n", hub.Dropped())

		metrics.write(rw)

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP toolcore_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE toolcore_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "toolcore_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "# HELP toolcore_index_dropped_total Reports the index writer could not queue.\n")
			fmt.Fprintf(rw, "# TYPE toolcore_index_dropped_total counter\n")
			fmt.Fprintf(rw, "toolcore_index_dropped_total %d\n", st.DropReportTotal)
		}
	})

	enableAdminHTTP := envBool("TC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("TC_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP && idx != nil {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/tools", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			stats, err := idx.ToolStats(r.Context())
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(stats)
		})
		mux.HandleFunc("/admin/v1/cell", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			q := r.URL.Query()
			var cell [3]int
			for i, k := range []string{"x", "y", "z"} {
				n, err := strconv.Atoi(q.Get(k))
				if err != nil {
					http.Error(rw, "bad "+k, http.StatusBadRequest)
					return
				}
				cell[i] = n
			}
			rows, err := idx.CellHistory(r.Context(), q.Get("grid"), cell)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(rows)
		})
	} else {
		logger.Info("admin endpoints disabled")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/reports", hub.Handler())

	srv := &http.Server{
		Addr:              tune.Serve.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.WithField("addr", tune.Serve.Addr).Info("listening")
	boot.Printf("listening on %s", tune.Serve.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("ListenAndServe")
		boot.Fatalf("ListenAndServe: %v", err)
	}
	<-driverDone
	if tick := driver.Tick(); tick > 0 && tune.Storage.SnapshotEveryTicks > 0 {
		writeSnapshot(sc, tune.SnapshotDir(), tick, logger)
	}
}

func restoreLatest(sc *scene.Scene, dir string) (uint64, error) {
	path, err := snapshot.Latest(dir)
	if err != nil || path == "" {
		return 0, err
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return 0, err
	}
	if err := sc.Restore(snap); err != nil {
		return 0, err
	}
	return snap.Header.Tick, nil
}

func writeSnapshot(sc *scene.Scene, dir string, tick uint64, logger logrus.FieldLogger) {
	path := snapshot.Path(dir, tick)
	if err := snapshot.WriteSnapshot(path, sc.Snapshot(tick)); err != nil {
		logger.WithError(err).WithField("tick", tick).Warn("write snapshot")
		return
	}
	logger.WithField("path", path).Info("snapshot written")
}

// toolMetrics keeps running totals per tool for /metrics.
type toolMetrics struct {
	mu     sync.Mutex
	worked map[string]uint64
	errors map[string]uint64
	last   map[string]protocol.TickReport
}

func newToolMetrics() *toolMetrics {
	return &toolMetrics{
		worked: map[string]uint64{},
		errors: map[string]uint64{},
		last:   map[string]protocol.TickReport{},
	}
}

func (m *toolMetrics) Publish(rep protocol.TickReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.worked[rep.ToolID] += uint64(rep.Worked)
	if rep.Error != "" {
		m.errors[rep.ToolID]++
	}
	m.last[rep.ToolID] = rep
	return nil
}

func (m *toolMetrics) write(rw http.ResponseWriter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.last))
	for id := range m.last {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(rw, "# HELP toolcore_tool_worked_total Blocks worked per tool.\n")
	fmt.Fprintf(rw, "# TYPE toolcore_tool_worked_total counter\n")
	for _, id := range ids {
		fmt.Fprintf(rw, "toolcore_tool_worked_total{tool=%q} %d\n", id, m.worked[id])
	}
	fmt.Fprintf(rw, "# HELP toolcore_tool_errors_total Ticks that ended with a recovered error.\n")
	fmt.Fprintf(rw, "# TYPE toolcore_tool_errors_total counter\n")
	for _, id := range ids {
		fmt.Fprintf(rw, "toolcore_tool_errors_total{tool=%q} %d\n", id, m.errors[id])
	}
	fmt.Fprintf(rw, "# HELP toolcore_tool_retained Blocks kept for the next tick.\n")
	fmt.Fprintf(rw, "# TYPE toolcore_tool_retained gauge\n")
	for _, id := range ids {
		fmt.Fprintf(rw, "toolcore_tool_retained{tool=%q} %d\n", id, m.last[id].Retained)
	}
	fmt.Fprintf(rw, "# HELP toolcore_tool_hits Occupants selected by the last scan.\n")
	fmt.Fprintf(rw, "# TYPE toolcore_tool_hits gauge\n")
	for _, id := range ids {
		fmt.Fprintf(rw, "toolcore_tool_hits{tool=%q} %d\n", id, m.last[id].Hits)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
