package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dubline/internal/api"
	"dubline/internal/daemonrun"
	"dubline/internal/deps"
	"dubline/internal/preflight"
)

const stageHealthTimeout = 30 * time.Second

type statusReport struct {
	ConfigPath   string                 `json:"configPath"`
	Store        string                 `json:"store"`
	Languages    []string               `json:"languages"`
	Workflows    int                    `json:"workflows"`
	Preflight    []preflight.Result     `json:"preflight"`
	Dependencies []api.DependencyStatus `json:"dependencies"`
	StageHealth  []api.StageHealth      `json:"stageHealth,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var stages bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check configuration, storage and provider readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cfg)
			report := statusReport{
				ConfigPath:   ctx.configPath,
				Store:        cfg.Workflow.Store,
				Languages:    cfg.TargetLanguages().Strings(),
				Preflight:    preflight.RunAll(cmd.Context(), cfg),
				Dependencies: api.FromDependencies(statuses),
			}
			err = ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				list, err := rt.Orchestrator.List(cmd.Context())
				if err != nil {
					return err
				}
				report.Workflows = len(list)
				if stages {
					healthCtx, cancel := context.WithTimeout(cmd.Context(), stageHealthTimeout)
					defer cancel()
					report.StageHealth = api.FromHealth(rt.Orchestrator.Health(healthCtx))
				}
				return nil
			})
			if err != nil {
				return err
			}

			if ctx.jsonMode() {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printStatus(cmd, report, statuses)
			}
			if failed := preflight.Failed(report.Preflight); len(failed) > 0 {
				names := make([]string, 0, len(failed))
				for _, f := range failed {
					names = append(names, f.Name)
				}
				return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stages, "stages", false, "Also probe every stage provider (makes network calls)")
	return cmd
}

func printStatus(cmd *cobra.Command, report statusReport, statuses []deps.Status) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	lines := renderSectionHeader("dubline", colorize)
	lines = append(lines,
		renderStatusLine("Config", statusInfo, orText(report.ConfigPath, "defaults"), colorize),
		renderStatusLine("Workflow store", statusInfo, report.Store, colorize),
		renderStatusLine("Languages", statusInfo, strings.Join(report.Languages, ", "), colorize),
		renderStatusLine("Workflows", statusInfo, fmt.Sprintf("%d stored", report.Workflows), colorize),
		"",
	)
	lines = append(lines, renderSectionHeader("Preflight", colorize)...)
	lines = append(lines, preflightLines(report.Preflight, colorize)...)
	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
	lines = append(lines, dependencyLines(statuses, colorize)...)
	if len(report.StageHealth) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Stages", colorize)...)
		lines = append(lines, stageHealthLines(report.StageHealth, colorize)...)
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
