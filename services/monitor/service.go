// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/sentinel/pkg/extensions"
	"github.com/AleutianAI/sentinel/services/monitor/collector"
	"github.com/AleutianAI/sentinel/services/monitor/config"
	"github.com/AleutianAI/sentinel/services/monitor/history"
	"github.com/AleutianAI/sentinel/services/monitor/logstore"
	"github.com/AleutianAI/sentinel/services/monitor/rules"
	"github.com/AleutianAI/sentinel/services/monitor/storage/badger"
	"github.com/AleutianAI/sentinel/services/monitor/telemetry"
)

// Service owns the monitoring loop and every component under it.
//
// # Description
//
// NewService assembles the stores and engines from configuration;
// Start launches the periodic loop; Stop halts it between cycles,
// never mid-evaluation. The HTTP surface is exposed via Router so the
// command layer owns the listener.
//
// # Thread Safety
//
// Safe for concurrent use. Start and Stop are serialized internally.
type Service struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *badger.DB
	rules   *rules.Store
	records *logstore.Store
	orch    *Orchestrator
	hub     *streamHub
	metrics *telemetry.Metrics
	audit   extensions.AuditLogger

	mu       sync.Mutex
	running  bool
	stopLoop context.CancelFunc
	loopDone chan struct{}

	historyMu sync.Mutex
	history   *history.RingBuffer[*CycleOutput]
}

// NewService builds a fully wired service from configuration.
//
// # Inputs
//
//   - cfg: Validated engine configuration.
//   - source: The snapshot collector. Required.
//   - logger: Destination for service logs. Nil uses slog.Default().
//
// # Outputs
//
//   - *Service: The assembled service. Call Close when done.
//   - error: Non-nil if any component fails to initialize.
func NewService(cfg config.Config, source collector.Collector, logger *slog.Logger) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("collector is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var db *badger.DB
	var err error
	if cfg.DataDir == "" {
		db, err = badger.OpenInMemory()
	} else {
		bcfg := badger.DefaultConfig()
		bcfg.Path = cfg.DataDir
		bcfg.Logger = logger
		db, err = badger.Open(bcfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open record database: %w", err)
	}

	ruleStore := rules.NewStoreWithDefaults(cfg.DailyBudget, logger)
	if cfg.RulesFile != "" {
		if err := ruleStore.LoadFile(cfg.RulesFile); err != nil {
			db.Close()
			return nil, fmt.Errorf("load rules file: %w", err)
		}
		if cfg.WatchRules {
			if err := ruleStore.Watch(cfg.RulesFile); err != nil {
				db.Close()
				return nil, fmt.Errorf("watch rules file: %w", err)
			}
		}
	}

	records := logstore.NewStore(db, logstore.Options{Logger: logger})

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		meter := otel.Meter("sentinel/monitor")
		metrics, err = telemetry.NewMetrics(meter)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		if _, err := metrics.RegisterStoreDegraded(meter, func() int64 {
			if records.Degraded() {
				return 1
			}
			return 0
		}); err != nil {
			db.Close()
			return nil, fmt.Errorf("register degraded gauge: %w", err)
		}
	}

	orch, err := NewOrchestrator(OrchestratorOptions{
		Rules:              ruleStore,
		Records:            records,
		Collector:          source,
		MiningEveryNCycles: cfg.MiningEveryNCycles,
		RecentWindow:       cfg.RecentWindow.Std(),
		Retention: logstore.RetentionPolicy{
			MaxAge:       cfg.Retention.MaxAge.Std(),
			MaxPerDomain: cfg.Retention.MaxPerDomain,
		},
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Service{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		rules:   ruleStore,
		records: records,
		orch:    orch,
		hub:     newStreamHub(logger),
		metrics: metrics,
		audit:   extensions.NewMemoryAuditLogger(256),
		history: history.NewRingBuffer[*CycleOutput](cfg.HistorySize),
	}, nil
}

// Start launches the periodic monitoring loop. Idempotent: starting a
// running service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopLoop = cancel
	s.loopDone = make(chan struct{})
	s.running = true

	go s.loop(loopCtx)
	s.logger.Info("monitoring loop started",
		slog.Duration("interval", s.cfg.CycleInterval.Std()))
	return nil
}

// loop drives cycles at the configured interval. Cancellation is only
// observed between cycles.
func (s *Service) loop(ctx context.Context) {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.cfg.CycleInterval.Std())
	defer ticker.Stop()

	// First cycle runs immediately so a fresh start produces output
	// without waiting a full interval.
	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// cycle runs one cycle, records it, and fans it out.
func (s *Service) cycle(ctx context.Context) {
	out, err := s.orch.RunCycle(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("cycle failed", slog.String("error", err.Error()))
		}
		return
	}

	s.historyMu.Lock()
	s.history.Push(out)
	s.historyMu.Unlock()

	s.hub.Broadcast(out)
}

// Stop halts the loop, waiting for an in-flight cycle to finish.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.stopLoop
	done := s.loopDone
	s.mu.Unlock()

	cancel()
	if ctx == nil {
		<-done
		s.logger.Info("monitoring loop stopped")
		return nil
	}
	select {
	case <-done:
		s.logger.Info("monitoring loop stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for loop to stop: %w", ctx.Err())
	}
}

// RunCycleNow triggers one cycle outside the loop cadence. Used by the
// one-shot CLI command and tests.
func (s *Service) RunCycleNow(ctx context.Context) (*CycleOutput, error) {
	out, err := s.orch.RunCycle(ctx)
	if err != nil {
		return nil, err
	}
	s.historyMu.Lock()
	s.history.Push(out)
	s.historyMu.Unlock()
	s.hub.Broadcast(out)
	return out, nil
}

// History returns the retained cycle outputs, oldest first.
func (s *Service) History() []*CycleOutput {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	return s.history.Slice()
}

// LastOutput returns the most recent cycle output, or nil before the
// first cycle.
func (s *Service) LastOutput() *CycleOutput {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	last := s.history.Last(1)
	if len(last) == 0 {
		return nil
	}
	return last[0]
}

// Status snapshots the engine state.
func (s *Service) Status() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return s.orch.Status(running)
}

// Orchestrator exposes the approval gate and query surfaces.
func (s *Service) Orchestrator() *Orchestrator {
	return s.orch
}

// Rules exposes the rule store for the CLI surface.
func (s *Service) Rules() *rules.Store {
	return s.rules
}

// Audit exposes the governance audit trail.
func (s *Service) Audit() extensions.AuditLogger {
	return s.audit
}

// SetAuditLogger swaps the audit destination. Call before Start;
// deployments with a compliance store inject their logger here.
func (s *Service) SetAuditLogger(logger extensions.AuditLogger) {
	if logger != nil {
		s.audit = logger
	}
}

// Close stops the loop and releases every resource.
func (s *Service) Close() error {
	_ = s.Stop(nil)
	s.rules.Unwatch()
	s.hub.Close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close record database: %w", err)
	}
	return nil
}
