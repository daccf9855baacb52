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
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AleutianAI/sentinel/services/monitor/config"
)

// --- Global Command Variables ---
var (
	configPath  string
	metricsFile string
	httpAddr    string
	dataDir     string
	logDir      string
	debugMode   bool

	rootCmd = &cobra.Command{
		Use:   "sentinel",
		Short: "An adaptive rule-based monitoring and learning engine",
		Long: `Sentinel evaluates metric snapshots against monitoring rules,
mines execution history for patterns, and proposes rule adaptations
that only take effect after explicit approval.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring loop and HTTP API",
		Run:   runServe, // Defined in cmd_serve.go
	}

	cycleCmd = &cobra.Command{
		Use:   "cycle",
		Short: "Run a single monitoring cycle and print the result as JSON",
		Run:   runCycle, // Defined in cmd_cycle.go
	}

	// --- Rules ---
	rulesCmd = &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate monitoring rule sets",
	}
	rulesValidateCmd = &cobra.Command{
		Use:   "validate [rules-file]",
		Short: "Validate a rules YAML file without starting the engine",
		Args:  cobra.ExactArgs(1),
		Run:   runRulesValidate, // Defined in cmd_rules.go
	}
	rulesListCmd = &cobra.Command{
		Use:   "list",
		Short: "List the active rule set (defaults plus the configured file)",
		Run:   runRulesList, // Defined in cmd_rules.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the engine configuration YAML")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "",
		"YAML file of domain metrics; without it the engine monitors its own process")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "",
		"Directory for JSON log files (stderr only when empty)")

	serveCmd.Flags().StringVar(&httpAddr, "addr", "", "Listen address override")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "", "Record database directory override")
	serveCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug mode")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesListCmd)
}

// loadConfig resolves the effective configuration: defaults, then the
// config file, then SENTINEL_* environment variables, then flags.
func loadConfig() (config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	v := viper.New()
	v.SetEnvPrefix("SENTINEL")
	v.AutomaticEnv()
	if addr := v.GetString("http_addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if dir := v.GetString("data_dir"); dir != "" {
		cfg.DataDir = dir
	}
	if level := v.GetString("log_level"); level != "" {
		cfg.LogLevel = level
	}
	if rf := v.GetString("rules_file"); rf != "" {
		cfg.RulesFile = rf
	}

	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	return cfg, cfg.Validate()
}
