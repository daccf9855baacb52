// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/sentinel/pkg/validation"
)

// Store owns the versioned rule set per domain.
//
// # Description
//
// Rules are grouped by domain. Every mutation (append, replace, reload)
// validates the incoming rules and bumps the domain's version counter.
// The store never mutates a rule in place; replacement swaps the whole
// value. Only the orchestrator's approval path is expected to call
// Replace with learned changes.
//
// # Thread Safety
//
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	byDomain map[Domain][]MonitoringRule
	versions map[Domain]int
	validate *validator.Validate

	watcher *fsnotify.Watcher
	watchWG sync.WaitGroup
	logger  *slog.Logger
}

// ruleFile is the YAML shape of a rules file.
type ruleFile struct {
	Rules []MonitoringRule `yaml:"rules"`
}

// NewStore creates an empty rule store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		byDomain: make(map[Domain][]MonitoringRule),
		versions: make(map[Domain]int),
		validate: validator.New(),
		logger:   logger,
	}
}

// NewStoreWithDefaults creates a store seeded with the built-in rule set.
func NewStoreWithDefaults(dailyBudget float64, logger *slog.Logger) *Store {
	s := NewStore(logger)
	// Built-in rules are constructed valid; an error here is a bug.
	if err := s.Append(DefaultRules(dailyBudget)...); err != nil {
		panic(fmt.Sprintf("default rules invalid: %v", err))
	}
	return s
}

// Rules returns a copy of the rules for a domain.
func (s *Store) Rules(domain Domain) []MonitoringRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.byDomain[domain]
	out := make([]MonitoringRule, len(src))
	copy(out, src)
	return out
}

// AllRules returns a copy of every rule across all domains.
func (s *Store) AllRules() []MonitoringRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []MonitoringRule
	for _, rr := range s.byDomain {
		out = append(out, rr...)
	}
	return out
}

// Domains returns the domains that currently have rules.
func (s *Store) Domains() []Domain {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Domain, 0, len(s.byDomain))
	for d := range s.byDomain {
		out = append(out, d)
	}
	return out
}

// Version returns the rule set version for a domain. Starts at 0 and
// increments on every mutation of that domain's rules.
func (s *Store) Version(domain Domain) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[domain]
}

// Append validates and adds rules.
//
// # Description
//
// Rule names must be unique within their domain; a duplicate name or a
// validation failure rejects the whole batch.
//
// # Outputs
//
//   - error: Non-nil if any rule is invalid or duplicates an existing name.
func (s *Store) Append(incoming ...MonitoringRule) error {
	if err := s.validateRules(incoming); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range incoming {
		for _, existing := range s.byDomain[r.Domain] {
			if existing.Name == r.Name {
				return fmt.Errorf("rule %q already exists in domain %q", r.Name, r.Domain)
			}
		}
	}
	for _, r := range incoming {
		s.byDomain[r.Domain] = append(s.byDomain[r.Domain], r)
		s.versions[r.Domain]++
	}
	return nil
}

// Replace validates and swaps a named rule within its domain.
//
// # Description
//
// This is the only path by which an accepted adaptation proposal changes
// a threshold: the old rule value is discarded wholesale and the domain
// version is bumped. Records already written keep the old rule fields
// frozen in their results.
//
// # Outputs
//
//   - error: Non-nil if the replacement is invalid or the name is unknown.
func (s *Store) Replace(rule MonitoringRule) error {
	if err := s.validateRules([]MonitoringRule{rule}); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rr := s.byDomain[rule.Domain]
	for i := range rr {
		if rr[i].Name == rule.Name {
			rr[i] = rule
			s.versions[rule.Domain]++
			return nil
		}
	}
	return fmt.Errorf("rule %q not found in domain %q", rule.Name, rule.Domain)
}

// LoadFile replaces the whole store contents from a YAML rules file.
//
// # Description
//
// The file is parsed and validated before any state changes; an invalid
// file leaves the current rules untouched.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rules file: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("parse rules file: %w", err)
	}
	if err := s.validateRules(rf.Rules); err != nil {
		return fmt.Errorf("validate rules file: %w", err)
	}

	seen := make(map[string]bool, len(rf.Rules))
	for _, r := range rf.Rules {
		key := string(r.Domain) + "/" + r.Name
		if seen[key] {
			return fmt.Errorf("duplicate rule %q in domain %q", r.Name, r.Domain)
		}
		seen[key] = true
	}

	byDomain := make(map[Domain][]MonitoringRule)
	for _, r := range rf.Rules {
		byDomain[r.Domain] = append(byDomain[r.Domain], r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for d := range s.byDomain {
		s.versions[d]++
	}
	for d := range byDomain {
		if _, existed := s.byDomain[d]; !existed {
			s.versions[d]++
		}
	}
	s.byDomain = byDomain
	return nil
}

// SaveFile writes the current rules to a YAML file, creating the parent
// directory if needed.
func (s *Store) SaveFile(path string) error {
	s.mu.RLock()
	rf := ruleFile{Rules: s.allRulesLocked()}
	s.mu.RUnlock()

	data, err := yaml.Marshal(&rf)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// allRulesLocked returns all rules without taking the lock. Caller must
// hold at least a read lock.
func (s *Store) allRulesLocked() []MonitoringRule {
	var out []MonitoringRule
	for _, rr := range s.byDomain {
		out = append(out, rr...)
	}
	return out
}

// Watch reloads the store whenever the rules file changes on disk.
//
// # Description
//
// Starts an fsnotify watcher on the file's directory (editors replace
// files rather than writing in place, so watching the file itself misses
// renames). A reload that fails validation is logged and discarded; the
// in-memory rules stay as they were.
//
// Call Unwatch to stop.
func (s *Store) Watch(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	s.mu.Lock()
	if s.watcher != nil {
		s.mu.Unlock()
		watcher.Close()
		return fmt.Errorf("store is already watching a file")
	}
	s.watcher = watcher
	s.mu.Unlock()

	target := filepath.Clean(path)
	s.watchWG.Add(1)
	go func() {
		defer s.watchWG.Done()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.LoadFile(target); err != nil {
					s.logger.Warn("rules reload rejected, keeping previous rules",
						slog.String("path", target), slog.String("error", err.Error()))
					continue
				}
				s.logger.Info("rules reloaded", slog.String("path", target))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("rules watcher error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}

// Unwatch stops the file watcher, if any. Safe to call when not watching.
func (s *Store) Unwatch() {
	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if watcher != nil {
		watcher.Close()
		s.watchWG.Wait()
	}
}

func (s *Store) validateRules(rr []MonitoringRule) error {
	for i := range rr {
		if err := s.validate.Struct(&rr[i]); err != nil {
			return fmt.Errorf("rule %q: %w", rr[i].Name, err)
		}
		// Names and keys end up in storage keys and API paths; the
		// struct tags don't restrict their character set.
		if err := validation.ValidateRuleName(rr[i].Name); err != nil {
			return err
		}
		if err := validation.ValidateMetricKey(rr[i].MetricKey); err != nil {
			return fmt.Errorf("rule %q: %w", rr[i].Name, err)
		}
	}
	return nil
}
