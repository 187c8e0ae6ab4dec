package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dubline/internal/api"
	"dubline/internal/daemonrun"
	"dubline/internal/language"
	"dubline/internal/objectstore"
	"dubline/internal/services"
	"dubline/internal/workflow"
)

func newStageCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newIngestCommand(ctx),
		newTranscribeCommand(ctx),
		newTranslateCommand(ctx),
		newSynthesizeCommand(ctx),
		newLipSyncCommand(ctx),
	}
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "ingest <id> <url-or-file>",
		Short: "Record the source video or audio for a session",
		Long: "Ingest accepts an http(s) URL, an object store reference, or a local file. " +
			"Local files are uploaded to the configured object store first.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				ref, key, err := uploadLocal(cmd.Context(), rt.Objects, args[1])
				if err != nil {
					return err
				}
				result, err := rt.Orchestrator.Ingest(cmd.Context(), args[0], workflow.IngestSource{
					URL:  ref,
					Kind: workflow.SourceKind(strings.ToLower(strings.TrimSpace(kind))),
				})
				if err != nil {
					return err
				}
				resp := api.FromIngestResult(result, key)
				if ctx.jsonMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if resp.VideoURL != "" {
					fmt.Fprintf(out, "Video:    %s\n", resp.VideoURL)
				}
				if resp.AudioURL != "" {
					fmt.Fprintf(out, "Audio:    %s\n", resp.AudioURL)
				}
				fmt.Fprintf(out, "Duration: %s\n", resp.Duration)
				if resp.Degraded {
					fmt.Fprintf(out, "Warning:  default duration used (%s)\n", resp.Reason)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Source kind (video or audio); inferred from the extension when empty")
	return cmd
}

// uploadLocal stores ref in objects when it names an existing local file and
// returns the stored reference and key. Other references pass through.
func uploadLocal(ctx context.Context, objects objectstore.Store, ref string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	info, err := os.Stat(ref)
	if err != nil || info.IsDir() {
		return ref, "", nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", ref, err)
	}
	name := filepath.Base(ref)
	key := objectstore.NewKey(name, time.Now())
	uri, err := objects.Put(ctx, data, key, objectstore.ContentTypeFor(name))
	if err != nil {
		return "", "", fmt.Errorf("upload %s: %w", name, err)
	}
	return uri, key, nil
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var manual string
	var fromFile string

	cmd := &cobra.Command{
		Use:   "transcribe <id>",
		Short: "Transcribe the ingested audio, or store a manual transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := manualText(cmd.InOrStdin(), manual, fromFile)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				if text != "" {
					if err := rt.Orchestrator.SaveTranscript(cmd.Context(), args[0], text); err != nil {
						return err
					}
				} else if text, err = rt.Orchestrator.Transcribe(cmd.Context(), args[0]); err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.TranscriptResponse{Transcript: text})
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&manual, "text", "", "Store this transcript instead of calling the transcription service")
	cmd.Flags().StringVar(&fromFile, "file", "", "Read a manual transcript from a file (- for stdin)")
	return cmd
}

func manualText(stdin io.Reader, text, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return strings.TrimSpace(text), nil
	}
	if text != "" {
		return "", fmt.Errorf("--text and --file are mutually exclusive")
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	text = strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("transcript file %s is empty", path)
	}
	return text, nil
}

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var edits map[string]string

	cmd := &cobra.Command{
		Use:   "translate <id>",
		Short: "Translate the transcript into every target language",
		Long: "Without --set, the transcript is translated by the configured model. " +
			"With --set, the given translations are merged into the stored ones.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				id := args[0]
				translations := make(map[string]string)
				if len(edits) > 0 {
					if err := rt.Orchestrator.SaveTranslations(cmd.Context(), id, edits); err != nil {
						return err
					}
					ws, err := rt.Orchestrator.Status(cmd.Context(), id)
					if err != nil {
						return err
					}
					translations = api.FromWorkflowState(ws).Translations
				} else {
					out, err := rt.Orchestrator.Translate(cmd.Context(), id)
					if err != nil {
						return err
					}
					for code, text := range out {
						translations[code.String()] = text
					}
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.TranslationsResponse{Translations: translations})
				}
				printTranslations(cmd, translations)
				return nil
			})
		},
	}
	cmd.Flags().StringToStringVar(&edits, "set", nil, "Manual translation edit as lang=text (repeatable)")
	return cmd
}

func printTranslations(cmd *cobra.Command, translations map[string]string) {
	codes := make([]string, 0, len(translations))
	for code := range translations {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	rows := make([][]string, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, []string{code, language.DisplayName(code), translations[code]})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Lang", "Name", "Translation"}, rows, nil))
}

func newSynthesizeCommand(ctx *commandContext) *cobra.Command {
	var langs []string
	var voiceFile string

	cmd := &cobra.Command{
		Use:   "synthesize <id>",
		Short: "Voice each translation, or store a supplied voice track",
		Long: "Without --file every requested translation is voiced by the synthesis service. " +
			"With --file the given audio file or URL becomes the voice track of the single --lang language.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codes, err := api.ParseLanguages(langs)
			if err != nil {
				return err
			}
			if strings.TrimSpace(voiceFile) != "" {
				return saveVoice(cmd, ctx, args[0], codes, voiceFile)
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				report, err := rt.Orchestrator.SynthesizeVoices(cmd.Context(), args[0], codes)
				if err != nil {
					return err
				}
				resp := api.FromSynthesisReport(report)
				if ctx.jsonMode() {
					if err := writeJSON(cmd, resp); err != nil {
						return err
					}
				} else {
					printSynthesis(cmd, resp)
				}
				if resp.Failed > 0 {
					return fmt.Errorf("synthesis failed for %d language(s)", resp.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&langs, "lang", "l", nil, "Restrict to these languages (default: all configured)")
	cmd.Flags().StringVar(&voiceFile, "file", "", "Store this audio file or URL as the voice track instead of synthesizing (needs one --lang)")
	return cmd
}

func saveVoice(cmd *cobra.Command, ctx *commandContext, id string, codes []language.Code, ref string) error {
	if len(codes) != 1 {
		return services.Wrap(services.ErrValidation, workflow.StageSynthesize, "save_voice", "--file needs exactly one --lang", nil)
	}
	if kind, ok := workflow.InferKind(ref); !ok || kind != workflow.SourceAudio {
		return services.Wrap(services.ErrValidation, workflow.StageSynthesize, "save_voice",
			fmt.Sprintf("%s is not a supported audio file", filepath.Base(ref)), services.ErrUnsupportedFormat)
	}
	return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
		uri, key, err := uploadLocal(cmd.Context(), rt.Objects, ref)
		if err != nil {
			return err
		}
		if err := rt.Orchestrator.SaveVoice(cmd.Context(), id, codes[0], uri); err != nil {
			return err
		}
		resp := api.VoiceResponse{Language: string(codes[0]), AudioURL: uri, Key: key}
		if ctx.jsonMode() {
			return writeJSON(cmd, resp)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Voice for %s: %s\n", codes[0].DisplayName(), uri)
		return nil
	})
}

func printSynthesis(cmd *cobra.Command, resp api.SynthesisResponse) {
	rows := make([][]string, 0, len(resp.Results)+len(resp.Skipped))
	for code, item := range resp.Results {
		status, detail := "ok", item.AudioURL
		if item.Error != "" {
			status, detail = "failed", item.Error
		}
		rows = append(rows, []string{code, status, detail})
	}
	for code, reason := range resp.Skipped {
		rows = append(rows, []string{code, "skipped", reason})
	}
	sortRows(rows)
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Lang", "Status", "Detail"}, rows, nil))
}

func newLipSyncCommand(ctx *commandContext) *cobra.Command {
	var langs []string
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "lipsync <id>",
		Short: "Submit lip-sync jobs for synthesized languages",
		Long: "Submits one job per language. Without --wait the command returns after submission; " +
			"a daemon running with poller.auto_poll picks the jobs up on its next sweep " +
			"(poller.resume_interval_seconds). With --wait it polls until every job finishes.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codes, err := api.ParseLanguages(langs)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				id := args[0]
				report, err := rt.Orchestrator.LipSync(cmd.Context(), id, codes)
				if err != nil {
					return err
				}
				resp := api.FromLipSyncReport(report)
				if wait {
					waitCtx := cmd.Context()
					if timeout > 0 {
						var cancel context.CancelFunc
						waitCtx, cancel = context.WithTimeout(waitCtx, timeout)
						defer cancel()
					}
					jobs, err := rt.Orchestrator.AwaitLipSync(waitCtx, id, codes)
					if err != nil {
						return err
					}
					resp.Jobs = api.FromJobRecords(jobs)
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, resp)
				}
				printJobs(cmd, resp)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&langs, "lang", "l", nil, "Restrict to these languages (default: all configured)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until every submitted job finishes")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up waiting after this long (0 waits for the poller timeout)")
	return cmd
}

func printJobs(cmd *cobra.Command, resp api.LipSyncResponse) {
	rows := make([][]string, 0, len(resp.Jobs)+len(resp.Skipped))
	for code, job := range resp.Jobs {
		detail := job.OutputURL
		if job.Error != "" {
			detail = job.Error
		}
		rows = append(rows, []string{code, job.State, job.JobID, detail})
	}
	for code, reason := range resp.Skipped {
		rows = append(rows, []string{code, "skipped", "", reason})
	}
	sortRows(rows)
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Lang", "State", "Job", "Detail"}, rows, nil))
}

func sortRows(rows [][]string) {
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
}
