package main

import (
	"errors"

	"github.com/spf13/cobra"

	"iomanager/internal/batch"
	"iomanager/internal/ledger"
)

func newPublishEditsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish-edits",
		Short: "Copy selected editorial movies to their shots and register versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireProject(); err != nil {
				return err
			}
			manifest, _, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			processor, client, err := ctx.processor(nil)
			if err != nil {
				return err
			}
			if client == nil {
				return errors.New("publish-edits needs shotgrid.site_url to be configured")
			}

			lock, err := ledger.AcquireLock(cfg.LockPath())
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			result := processor.PublishEdits(cmd.Context(), manifest.Rows, batch.SettingsFromConfig(cfg), client)
			return reportResult(cmd.OutOrStdout(), result)
		},
	}
}
