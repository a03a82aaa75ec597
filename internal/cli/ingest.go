package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ag-tej/shiksha-setu/internal/domain"
)

func newUploadCmd(app *App) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Add documents to a session's knowledge base",
		Long: `Upload one or more documents (PDF, text, and similar) into the selected
session's knowledge base. The command waits until the service has finished
processing the batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.requireIdentity(ctx); err != nil {
				return err
			}
			if err := app.activeSession(ctx, sessionID); err != nil {
				return err
			}

			files := make([]domain.FileUpload, 0, len(args))
			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				files = append(files, domain.FileUpload{Name: filepath.Base(path), Content: content})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Uploading %d file(s), waiting for processing...\n", len(files))
			if err := app.Store.IngestDocuments(ctx, files); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Documents processed"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session ID (default: most recent)")
	return cmd
}

func newWebsiteCmd(app *App) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "website <url>...",
		Short: "Add websites to a session's knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.requireIdentity(ctx); err != nil {
				return err
			}
			if err := app.activeSession(ctx, sessionID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Submitting %d URL(s), waiting for processing...\n", len(args))
			if err := app.Store.IngestWebsites(ctx, args); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Websites processed"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session ID (default: most recent)")
	return cmd
}
