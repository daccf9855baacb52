// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/sentinel/pkg/logging"
	"github.com/AleutianAI/sentinel/services/monitor"
)

// runCycle runs one monitoring cycle against the configured source and
// prints the cycle output to stdout. Telemetry stays off; this is a
// one-shot diagnostic, not a deployment.
func runCycle(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		logging.Default().Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	cfg.Telemetry.Enabled = false
	// Mine on the one cycle we run so the output includes patterns.
	cfg.MiningEveryNCycles = 1

	logger := logging.New(logging.Config{
		Level:   logging.LevelWarn,
		Service: "sentinel",
		LogDir:  logDir,
	})
	defer logger.Close()

	svc, err := monitor.NewService(cfg, buildCollector(), logger.Slog())
	if err != nil {
		logger.Error("service init failed", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	out, err := svc.RunCycleNow(context.Background())
	if err != nil {
		logger.Error("cycle failed", "error", err)
		os.Exit(1)
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		logger.Error("failed to encode the cycle output", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))
}
