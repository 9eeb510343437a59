package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JimmyFromTheEarth/quip-export/internal/export"
)

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the access token and show the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, ok := a.client.GetCurrentUser(cmd.Context())
			if !ok {
				return errors.New("failed to fetch the current user")
			}

			name, _ := user["name"].(string)
			id, _ := user["id"].(string)

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Access token is valid for %s (%s)\n", name, id)
			return err
		},
	}
}

func newThreadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "thread <threadId>",
		Short: "Print a thread as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, ok := a.client.GetThread(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("%w: %s", export.ErrThreadUnavailable, args[0])
			}

			data, err := json.MarshalIndent(thread, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode thread: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [threadId...]",
		Short: "Export threads and folders to the destination folder",
		Long: `Export threads and folders to the destination folder. Documents are
exported as PDF (or DOCX with --docx) and spreadsheets as XLSX. Folders given
with --folders are exported recursively, one directory per folder title.
Without arguments the threads listed under "threads" in the config file are
exported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			threadIDs := args
			if len(threadIDs) == 0 {
				threadIDs = a.cfg.Threads
			}
			folderIDs := a.cfg.Folders

			if len(threadIDs) == 0 && len(folderIDs) == 0 {
				return errors.New("nothing to export: pass thread ids, --folders, or set threads or folders in the config file")
			}

			exporter := a.exporter()

			var results []*export.Result
			failed, total := 0, 0

			for _, threadID := range threadIDs {
				total++

				result, err := exporter.ExportThread(cmd.Context(), threadID)
				if err != nil {
					failed++
					a.logger.Error("Export failed", zap.String("thread_id", threadID), zap.Error(err))
					continue
				}
				results = append(results, result)
			}

			for _, folderID := range folderIDs {
				report, err := exporter.ExportFolder(cmd.Context(), folderID)
				if err != nil {
					total++
					failed++
					a.logger.Error("Folder export failed", zap.String("folder_id", folderID), zap.Error(err))
					continue
				}

				for _, failure := range report.Failures {
					a.logger.Error("Export failed",
						zap.String("folder_id", folderID),
						zap.String("id", failure.ID),
						zap.Error(failure.Err),
					)
				}

				results = append(results, report.Results...)
				total += len(report.Results) + len(report.Failures)
				failed += len(report.Failures)
			}

			if err := renderResults(cmd.OutOrStdout(), a.cfg.Destination, results); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d threads failed to export", failed, total)
			}

			return nil
		},
	}
}

func newBlobCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "blob <threadId> <blobId>",
		Short: "Download an image or attachment of a thread",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := a.exporter().ExportBlob(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", filepath.Join(a.cfg.Destination, target))
			return err
		},
	}
}

func newUserCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "user <userId...>",
		Short: "Print one or more users as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, ok := a.client.GetUser(cmd.Context(), args...)
			if !ok {
				return fmt.Errorf("failed to fetch users %v", args)
			}

			data, err := json.MarshalIndent(users, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode users: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
