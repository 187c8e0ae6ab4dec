package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dubline/internal/daemonrun"
	"dubline/internal/objectstore"
	"dubline/internal/services"
)

type storageInitResult struct {
	Provider string `json:"provider"`
	Bucket   string `json:"bucket,omitempty"`
	Created  bool   `json:"created"`
}

func newStorageCommand(ctx *commandContext) *cobra.Command {
	storageCmd := &cobra.Command{
		Use:   "storage",
		Short: "Manage the media object store",
	}
	storageCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the configured bucket when it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				p, ok := rt.Objects.(objectstore.Provisioner)
				if !ok {
					return services.Wrap(services.ErrConfiguration, "storage", "init", "object store cannot create buckets", nil)
				}
				created, err := p.EnsureBucket(cmd.Context())
				if err != nil {
					return err
				}
				cfg := rt.Config
				result := storageInitResult{Provider: orText(cfg.Storage.Provider, "s3"), Bucket: cfg.Storage.Bucket, Created: created}
				if ctx.jsonMode() {
					return writeJSON(cmd, result)
				}
				switch {
				case created:
					fmt.Fprintf(cmd.OutOrStdout(), "Created bucket %s\n", result.Bucket)
				case result.Provider == "memory":
					fmt.Fprintln(cmd.OutOrStdout(), "Memory store needs no bucket")
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "Bucket %s already exists\n", result.Bucket)
				}
				return nil
			})
		},
	})
	return storageCmd
}
