package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"chart-recorder/internal/bridge"
	"chart-recorder/internal/engine"
	"chart-recorder/internal/normalize"
	"chart-recorder/internal/observability"
	"chart-recorder/internal/platform"
	"chart-recorder/internal/record"
	"chart-recorder/internal/storage"
	chstore "chart-recorder/internal/storage/clickhouse"
	"chart-recorder/internal/storage/jsonl"
	pgstore "chart-recorder/internal/storage/postgres"
)

func main() {
	feedEndpoint := flag.String("feed-endpoint", "ws://127.0.0.1:8765/feed", "Platform export feed websocket endpoint")
	outDir := flag.String("out-dir", "./data", "Directory for daily JSONL stream files")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL mirror DSN (empty to disable)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse archive DSN (empty to disable)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	multiplier := flag.Float64("price-multiplier", 1, "Raw-to-display price divisor")
	tick := flag.Float64("tick-size", 0.25, "Instrument tick size")
	scaleVariant := flag.String("scale-variant", "direct", "Price scale variant: direct or hundredths")
	maxDepth := flag.Int("max-depth-levels", 20, "Depth levels recorded per side")
	maxTape := flag.Int("max-tape-entries", 10, "Time-and-sales entries processed per pass")
	epsilon := flag.Float64("change-epsilon", 1e-9, "On-change comparison epsilon")
	pressure := flag.Float64("pressure-threshold", 0.05, "Delta-ratio threshold for pressure flags")
	absorption := flag.Float64("absorption-threshold", 0.10, "Delta share of volume marking absorption")

	vwapStudy := flag.Int("vwap-study", 0, "Explicit VWAP study ID (0 = resolve by name)")
	vwapBands := flag.Int("vwap-bands", 2, "VWAP band pairs recorded (0..4)")
	pvwapBands := flag.Int("pvwap-bands", 2, "Previous-session VWAP band pairs (0..4)")
	vvaCurrent := flag.Int("vva-current", 1, "Current-period value area study ID")
	vvaPrevious := flag.Int("vva-previous", 2, "Previous-period value area study ID")
	orderflowStudy := flag.Int("orderflow-study", 0, "Explicit order-flow study ID (0 = resolve by name)")

	indexMode := flag.Int("index-mode", -1, "Cross-source index mode: 0 chart, 1 study, -1 off")
	indexChart := flag.Int("index-chart", 8, "Origin chart for index mode 0")
	indexStudy := flag.Int("index-study", 0, "Overlay study ID for index mode 1")
	indexSG := flag.Int("index-sg", 4, "Overlay subgraph for index mode 1")
	indexDest := flag.Int("index-dest", 0, "Destination chart for index records (0 = collector)")

	levelsChart := flag.Int("levels-chart", 0, "Chart carrying annotated level studies (0 = off)")
	gammaLevels := flag.String("gamma-levels", "", "Gamma level study as id:subgraphs (e.g. 5:19)")
	blindLevels := flag.String("blind-levels", "", "Blind-spot level study as id:subgraphs")
	swingLevels := flag.String("swing-levels", "", "Swing level study as id:subgraphs")

	flag.Parse()

	logger := log.New(os.Stdout, "[recorder] ", log.LstdFlags|log.Lshortfile)

	variant, err := normalize.ParseVariant(*scaleVariant)
	if err != nil {
		logger.Fatalf("Invalid scale variant: %v", err)
	}

	cfg := engine.DefaultConfig()
	cfg.PriceMultiplier = *multiplier
	cfg.TickSize = *tick
	cfg.ScaleVariant = variant
	cfg.MaxDepthLevels = *maxDepth
	cfg.MaxTapeEntries = *maxTape
	cfg.ChangeEpsilon = *epsilon
	cfg.PressureThreshold = *pressure
	cfg.AbsorptionThreshold = *absorption
	cfg.VWAPStudyID = *vwapStudy
	cfg.VWAPBands = *vwapBands
	cfg.PVWAPBands = *pvwapBands
	cfg.VVACurrentID = *vvaCurrent
	cfg.VVAPreviousID = *vvaPrevious
	cfg.OrderFlowStudyID = *orderflowStudy

	if *indexMode >= 0 {
		cfg.Index = engine.IndexConfig{
			Enabled:   true,
			Mode:      *indexMode,
			Chart:     *indexChart,
			StudyID:   *indexStudy,
			Subgraph:  *indexSG,
			DestChart: *indexDest,
		}
	}
	cfg.LevelsChart = *levelsChart
	for _, spec := range []struct {
		role record.LevelRole
		arg  string
	}{
		{record.RoleGamma, *gammaLevels},
		{record.RoleBlind, *blindLevels},
		{record.RoleSwing, *swingLevels},
	} {
		ls, err := parseLevelStudy(spec.role, spec.arg)
		if err != nil {
			logger.Fatalf("Invalid level study %q: %v", spec.arg, err)
		}
		if ls != nil {
			cfg.LevelStudies = append(cfg.LevelStudies, *ls)
		}
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	metrics := observability.NewMetrics("chart_recorder")

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink, err := buildSink(ctx, logger, metrics, *outDir, *postgresDSN, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("Setting up storage: %v", err)
	}
	defer sink.Close()

	// The engine reads from the same snapshot the bridge applies frames to.
	snap := platform.NewSnapshot()
	eng, err := engine.New(snap, cfg, sink, logger, metrics)
	if err != nil {
		logger.Fatalf("Setting up engine: %v", err)
	}
	client := bridge.NewClient(*feedEndpoint, snap, eng, nil, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
		client.Close()
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	logger.Printf("Recording from %s into %s", *feedEndpoint, *outDir)
	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Feed client: %v", err)
	}
	logger.Println("Recorder stopped")
}

// buildSink composes the storage fan-out: JSONL is the primary stream
// store, PostgreSQL and ClickHouse attach when configured.
func buildSink(ctx context.Context, logger *log.Logger, metrics *observability.Metrics, outDir, postgresDSN, clickhouseDSN string) (storage.EventSink, error) {
	jw, err := jsonl.NewWriter(outDir, logger)
	if err != nil {
		return nil, fmt.Errorf("jsonl writer: %w", err)
	}
	jw.OnRollover = metrics.DayRollovers.Inc
	sinks := []storage.NamedSink{{Name: "jsonl", Sink: jw}}

	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		ps, err := pgstore.NewSink(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("postgres sink: %w", err)
		}
		sinks = append(sinks, storage.NamedSink{Name: "postgres", Sink: ps})
		logger.Println("PostgreSQL mirror enabled")
	}

	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		cs, err := chstore.NewSink(ctx, conn, 0)
		if err != nil {
			return nil, fmt.Errorf("clickhouse sink: %w", err)
		}
		sinks = append(sinks, storage.NamedSink{Name: "clickhouse", Sink: cs})
		logger.Println("ClickHouse archive enabled")
	}

	return storage.NewFanout(logger, func(sink string) {
		metrics.SinkDrops.WithLabelValues(sink).Inc()
	}, sinks...), nil
}

// parseLevelStudy parses an "id:subgraphs" flag value; empty means off.
func parseLevelStudy(role record.LevelRole, arg string) (*engine.LevelStudyConfig, error) {
	if arg == "" {
		return nil, nil
	}
	parts := strings.SplitN(arg, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("want id:subgraphs")
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("study id: %w", err)
	}
	count, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("subgraph count: %w", err)
	}
	if id <= 0 || count <= 0 {
		return nil, fmt.Errorf("id and subgraphs must be positive")
	}
	return &engine.LevelStudyConfig{Role: role, StudyID: id, SubgraphCount: count}, nil
}
