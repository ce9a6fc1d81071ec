package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DonGar/house-monitor/internal/actions"
	"github.com/DonGar/house-monitor/internal/adapters"
	"github.com/DonGar/house-monitor/internal/config"
	"github.com/DonGar/house-monitor/internal/rules"
	"github.com/DonGar/house-monitor/internal/scheduling"
	"github.com/DonGar/house-monitor/internal/statustree"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config <path>",
	Short: "Load a server config and every rule it mounts, reporting any errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidateConfig(args[0])
	},
}

// runValidateConfig loads path as a server.json and, for each configured
// adapter, mounts its file into a scratch tree and attempts to parse every
// rule that lands under status://*/rule/*. It never starts the engine or
// dispatches an action: a validation run must have no side effects.
func runValidateConfig(path string) error {
	discard := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("server config invalid: %w", err)
	}
	fmt.Printf("server config OK (profile=%s, %d adapter(s))\n", cfg.Profile, len(cfg.Adapters))

	tree := statustree.NewTree(discard)
	defer tree.Stop()

	deps := adapters.Deps{Tree: tree, Logger: discard}
	var mounted []adapters.Adapter
	for name, a := range cfg.Adapters {
		if a.Filename == "" {
			continue
		}
		fa := adapters.NewFileAdapter(deps, a.Mount, a.Filename)
		if err := fa.Start(); err != nil {
			return fmt.Errorf("adapter %q: %w", name, err)
		}
		mounted = append(mounted, fa)
	}
	defer func() {
		for _, a := range mounted {
			_ = a.Stop()
		}
	}()

	scheduler := scheduling.NewScheduler(nil)
	ruleDeps := rules.Deps{
		Tree:      tree,
		Scheduler: scheduler,
		Manager:   actions.NewManager(tree, scheduler),
		Logger:    discard,
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
	}

	urls, err := tree.GetMatchingURLs("status://*/rule/*")
	if err != nil {
		return fmt.Errorf("scanning rules: %w", err)
	}

	var failures int
	for _, url := range urls {
		raw, err := tree.Get(url, statustree.Null())
		if err != nil || raw.IsNull() {
			continue
		}
		if _, err := rules.ParseConfig(url, raw, ruleDeps); err != nil {
			failures++
			fmt.Printf("rule %s: %v\n", url, err)
		}
	}

	fmt.Printf("checked %d rule(s), %d invalid\n", len(urls), failures)
	if failures > 0 {
		return fmt.Errorf("%d rule(s) failed validation", failures)
	}
	return nil
}
