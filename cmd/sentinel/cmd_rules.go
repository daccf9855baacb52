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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/sentinel/pkg/logging"
	"github.com/AleutianAI/sentinel/pkg/ux"
	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

// runRulesValidate loads a rules file into a fresh store and reports
// the outcome. Exit status is the contract for CI use.
func runRulesValidate(cmd *cobra.Command, args []string) {
	store := rules.NewStore(logging.Default().Slog())
	if err := store.LoadFile(args[0]); err != nil {
		ux.Error(fmt.Sprintf("invalid rules file %s: %v", args[0], err))
		os.Exit(1)
	}

	ux.Success(fmt.Sprintf("%s: %d rule(s) valid", args[0], len(store.AllRules())))
	for _, d := range store.Domains() {
		ux.Muted(fmt.Sprintf("  %-12s %d rule(s)", d, len(store.Rules(d))))
	}
}

// runRulesList prints the active rule set the engine would start with:
// built-in defaults plus the configured rules file.
func runRulesList(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		ux.Error(fmt.Sprintf("invalid configuration: %v", err))
		os.Exit(1)
	}

	store := rules.NewStoreWithDefaults(cfg.DailyBudget, logging.Default().Slog())
	if cfg.RulesFile != "" {
		if err := store.LoadFile(cfg.RulesFile); err != nil {
			ux.Error(fmt.Sprintf("load rules file: %v", err))
			os.Exit(1)
		}
	}

	ux.Title(fmt.Sprintf("%-28s %-12s %-22s %-4s %10s  %-9s %s",
		"NAME", "DOMAIN", "METRIC", "OP", "THRESHOLD", "SEVERITY", "ACTION"))
	for _, d := range store.Domains() {
		for _, r := range store.Rules(d) {
			fmt.Printf("%-28s %-12s %-22s %-4s %10g  %-9s %s\n",
				r.Name, r.Domain, r.MetricKey, r.Operator, r.Threshold,
				ux.Severity(string(r.Severity)), r.Action)
		}
	}
}
