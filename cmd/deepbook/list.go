package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/deepbook/internal/config"
	"github.com/vampirenirmal/deepbook/internal/domain/book"
	"github.com/vampirenirmal/deepbook/internal/render"
	"github.com/vampirenirmal/deepbook/internal/storage"
)

func newListCmd(root *rootOptions) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved sessions and how far each got",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// Listing makes no API calls, so no key is needed.
			cfg, err := config.Load(root.configPath, func(c *config.Config) {
				c.AI.Provider = config.ProviderMock
				if outputDir != "" {
					c.Paths.OutputDir = outputDir
				}
			})
			if err != nil {
				return err
			}

			store := storage.NewFileSystem(cfg.Paths.OutputDir)
			files, err := store.List(ctx, filepath.Join("sessions", "*", render.DocumentFile))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintf(out, "No sessions in %s\n", store.BaseDir())
				return nil
			}

			for _, file := range files {
				data, err := store.Load(ctx, file)
				if err != nil {
					return err
				}
				doc, err := book.LoadDocument(data)
				if err != nil {
					slog.Warn("skipping unreadable session", "file", file, "error", err)
					continue
				}

				title := "Untitled"
				if m := doc.Metadata(); m != nil {
					title = m.Title
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", filepath.Dir(file), doc.State(), title)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory holding sessions (overrides config)")
	return cmd
}
