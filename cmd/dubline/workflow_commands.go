package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"dubline/internal/api"
	"dubline/internal/daemonrun"
)

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Create, inspect and remove workflow sessions",
	}
	cmd.AddCommand(
		newWorkflowCreateCommand(ctx),
		newWorkflowListCommand(ctx),
		newWorkflowShowCommand(ctx),
		newWorkflowDeleteCommand(ctx),
	)
	return cmd
}

func newWorkflowCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Start a new empty session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				ws, err := rt.Orchestrator.Create(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.WorkflowResponse{Workflow: api.FromWorkflowState(ws)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created workflow %s\n", ws.ID)
				return nil
			})
		},
	}
}

func newWorkflowListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				list, err := rt.Orchestrator.List(cmd.Context())
				if err != nil {
					return err
				}
				summaries := api.FromWorkflowStates(list)
				if ctx.jsonMode() {
					return writeJSON(cmd, api.WorkflowListResponse{Workflows: summaries})
				}
				out := cmd.OutOrStdout()
				if len(summaries) == 0 {
					fmt.Fprintln(out, "No workflows")
					return nil
				}
				rows := make([][]string, 0, len(summaries))
				for _, s := range summaries {
					rows = append(rows, []string{
						s.ID, s.Phase, s.Duration,
						strconv.Itoa(s.Languages), strconv.Itoa(s.PendingJobs), s.UpdatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Phase", "Duration", "Languages", "Pending", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newWorkflowShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one session in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				ws, err := rt.Orchestrator.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				view := api.FromWorkflowState(ws)
				if ctx.jsonMode() {
					return writeJSON(cmd, api.WorkflowResponse{Workflow: view})
				}
				printWorkflow(cmd, view)
				return nil
			})
		},
	}
}

func newWorkflowDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a session and stop its poll loops",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				if err := rt.Orchestrator.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted workflow %s\n", args[0])
				return nil
			})
		},
	}
}

func printWorkflow(cmd *cobra.Command, wf api.Workflow) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Workflow:   %s\n", wf.ID)
	fmt.Fprintf(out, "Phase:      %s\n", wf.Phase)
	if wf.VideoURL != "" {
		fmt.Fprintf(out, "Video:      %s\n", wf.VideoURL)
	}
	if wf.AudioURL != "" {
		fmt.Fprintf(out, "Audio:      %s\n", wf.AudioURL)
	}
	duration := wf.Duration
	if wf.DurationDefaulted {
		duration += " (default)"
	}
	fmt.Fprintf(out, "Duration:   %s\n", duration)
	if wf.Transcript != "" {
		fmt.Fprintf(out, "Transcript: %s\n", wf.Transcript)
	}

	codes := languageKeys(wf.Translations, wf.SynthesizedAudio, wf.LipSyncJobs)
	if len(codes) == 0 {
		return
	}
	rows := make([][]string, 0, len(codes))
	for _, code := range codes {
		job := wf.LipSyncJobs[code]
		jobState := job.State
		if job.Error != "" {
			jobState += ": " + job.Error
		}
		rows = append(rows, []string{
			code,
			wf.Translations[code],
			wf.SynthesizedAudio[code],
			jobState,
			job.OutputURL,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Lang", "Translation", "Voice", "Lip-sync", "Output"},
		rows,
		nil,
	))
}

func languageKeys(translations, audio map[string]string, jobs map[string]api.Job) []string {
	codes := lo.Uniq(append(append(lo.Keys(translations), lo.Keys(audio)...), lo.Keys(jobs)...))
	sort.Strings(codes)
	return codes
}
