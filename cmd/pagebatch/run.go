package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/FiratKiziltepe/pagebatch/internal/config"
	"github.com/FiratKiziltepe/pagebatch/pkg/batch"
	"github.com/FiratKiziltepe/pagebatch/pkg/cache"
	"github.com/FiratKiziltepe/pagebatch/pkg/extract"
	"github.com/FiratKiziltepe/pagebatch/pkg/generation/gemini"
	"github.com/FiratKiziltepe/pagebatch/pkg/logging"
	"github.com/FiratKiziltepe/pagebatch/pkg/orchestrator"
	"github.com/FiratKiziltepe/pagebatch/pkg/ratelimit"
)

var (
	unitsFlag    string
	outputPath   string
	refreshCache bool
)

var runCmd = &cobra.Command{
	Use:   "run <document>",
	Short: "Process a document in rate-limited batches",
	Long: `Run splits <document> into pages on form feed characters, plans batches and
sends them to the configured model one at a time.

Interrupt (Ctrl-C) cancels the session; batches already completed are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runSession,
}

func init() {
	f := runCmd.Flags()
	f.String("model", "", "model identifier")
	f.String("strategy", "", "batching strategy (unit-per-batch, fixed-size-grouping)")
	f.Int("batch-size", 0, "units per batch for fixed-size-grouping")
	f.StringSlice("type", nil, "item type hints passed to the model")
	f.Int("count", 0, "desired items per batch (0 lets the model decide)")
	f.String("policy-file", "", "YAML file overriding the built-in policies")
	f.String("redis", "", "redis address for the extraction cache")
	f.Int("prefetch", 0, "extract units with N workers before the session starts")
	f.String("control", "", "listen address of the control server (e.g. 127.0.0.1:8089)")
	f.StringVar(&unitsFlag, "units", "", "units to process, e.g. 1-5,9 (default: all)")
	f.StringVarP(&outputPath, "output", "o", "", "write the session summary as JSON to this file")
	f.BoolVar(&refreshCache, "refresh", false, "drop cached pages of this document before the run")
}

var runFlagKeys = map[string]string{
	"model":       config.KeyModel,
	"strategy":    config.KeyStrategy,
	"batch-size":  config.KeyBatchSize,
	"type":        config.KeyTypeHints,
	"count":       config.KeyDesiredCount,
	"policy-file": config.KeyPolicyFile,
	"redis":       config.KeyRedisAddr,
	"prefetch":    config.KeyPrefetchWorkers,
	"control":     config.KeyControlAddr,
}

func runSession(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, runFlagKeys); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	logger := logging.Setup(cfg.Logging())
	logger = logger.With().Str("component", "cli").Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	pages := extract.SplitPages(string(data))
	docID := extract.DocumentID(data)

	units, err := parseUnits(unitsFlag, pages.Count())
	if err != nil {
		return err
	}
	logger.Info().
		Str("document", docID).
		Int("pages", pages.Count()).
		Int("units", len(units)).
		Msg("Document loaded")

	var extractor extract.Extractor = pages
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")

		store := cache.NewManager(rdb)
		if refreshCache {
			n, err := store.DeleteDocument(ctx, docID)
			if err != nil {
				return fmt.Errorf("refresh cache: %w", err)
			}
			logger.Info().Int("deleted", n).Msg("Cached pages dropped")
		}
		extractor = extract.NewCached(pages, store, docID, cfg.CacheTTL)
	}
	if cfg.PrefetchWorkers > 0 {
		pcfg := extract.DefaultPrefetchConfig()
		pcfg.MaxConcurrency = cfg.PrefetchWorkers
		if _, err := extract.Prefetch(ctx, extractor, units, pcfg); err != nil {
			return fmt.Errorf("prefetch: %w", err)
		}
	}

	policies, err := loadPolicyTable(cfg.PolicyFile)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	limiter, err := ratelimit.NewForModel(policies, cfg.Model,
		ratelimit.WithLocation(loc),
		ratelimit.WithRetry(cfg.Retry()),
	)
	if err != nil {
		return err
	}

	gcfg := gemini.DefaultConfig(cfg.APIKey)
	gcfg.BaseURL = cfg.BaseURL
	gcfg.Model = cfg.Model
	gcfg.Timeout = cfg.RequestTimeout
	generator, err := gemini.New(gcfg)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(limiter, extractor, generator,
		orchestrator.WithObserver(progressObserver(logger)))
	if err != nil {
		return err
	}

	if cfg.ControlAddr != "" {
		srv := NewServer(cfg.ControlAddr, orch, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error().Err(err).Msg("Control server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	summary, err := orch.Start(ctx, orchestrator.Config{
		DocumentID:   docID,
		UnitIDs:      units,
		Strategy:     cfg.Strategy,
		BatchSize:    cfg.BatchSize,
		TypeHints:    cfg.TypeHints,
		DesiredCount: cfg.DesiredCount,
		Model:        cfg.Model,
	})
	if err != nil {
		return err
	}

	if outputPath != "" {
		if err := writeSummary(outputPath, summary); err != nil {
			return err
		}
		logger.Info().Str("path", outputPath).Msg("Summary written")
	}
	renderSummary(cmd.OutOrStdout(), summary)

	switch summary.StopReason {
	case orchestrator.StopQuotaExceeded, orchestrator.StopCredentialInvalid:
		return fmt.Errorf("session stopped: %s", summary.StopReason)
	}
	return nil
}

func progressObserver(logger zerolog.Logger) orchestrator.Observer {
	return orchestrator.ObserverFuncs{
		Progress: func(p orchestrator.ProgressSnapshot) {
			logger.Info().
				Int("completed", p.CompletedBatches).
				Int("total", p.TotalBatches).
				Int("items", p.ResultCount).
				Int("errors", p.ErrorCount).
				Int("rpm_remaining", p.Limiter.RemainingRPM).
				Dur("eta", p.ETA).
				Msg("Progress")
		},
		Error: func(e orchestrator.BatchError, b batch.Batch) {
			logger.Warn().
				Int("batch_id", e.BatchID).
				Str("range", e.Range).
				Str("kind", e.Kind).
				Msg(e.Message)
		},
	}
}

// parseUnits expands a selection like "1-5,9" into unit ids. An empty
// selection means every unit of the document.
func parseUnits(sel string, count int) ([]int, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return batch.Range(count), nil
	}

	var ids []int
	for _, part := range strings.Split(sel, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid unit %q", part)
		}
		last := first
		if isRange {
			if last, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid unit range %q", part)
			}
		}
		if first < 1 || last < first {
			return nil, fmt.Errorf("invalid unit range %q", part)
		}
		if last > count {
			return nil, fmt.Errorf("unit %d out of range (document has %d)", last, count)
		}
		for id := first; id <= last; id++ {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("no units selected")
	}
	return ids, nil
}

func writeSummary(path string, summary *orchestrator.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func renderSummary(w io.Writer, s *orchestrator.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Session " + s.SessionID)
	t.AppendRows([]table.Row{
		{"State", s.State},
		{"Batches", fmt.Sprintf("%d/%d", s.CompletedBatches, s.TotalBatches)},
		{"Items", s.TotalResultCount},
		{"Errors", s.ErrorCount},
		{"Duration", s.Duration.Round(time.Second)},
	})
	if s.StopReason != "" {
		t.AppendRow(table.Row{"Stop reason", s.StopReason})
	}
	t.Render()

	if len(s.Errors) == 0 {
		return
	}
	et := table.NewWriter()
	et.SetOutputMirror(w)
	et.SetStyle(table.StyleRounded)
	et.AppendHeader(table.Row{"Batch", "Range", "Kind", "Message"})
	for _, e := range s.Errors {
		et.AppendRow(table.Row{e.BatchID, e.Range, e.Kind, e.Message})
	}
	et.Render()
}
