package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dshills/codeindex/internal/engine"
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index a directory",
	Long: `Index a directory into a collection. Only files whose content changed
since the collection's last successful run are chunked again, unless --full
is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringP("collection", "c", "", "collection name (derived from the path when empty)")
	indexCmd.Flags().Bool("full", false, "ignore the previous snapshot and rebuild")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	collection, _ := cmd.Flags().GetString("collection")
	full, _ := cmd.Flags().GetBool("full")

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spinner, _ := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithRemoveWhenDone(true).
		Start("Indexing " + args[0])
	res, err := e.Index(ctx, engine.IndexRequest{Root: args[0], Collection: collection, Full: full})
	_ = spinner.Stop()
	if err != nil {
		if res != nil && res.Stale {
			pterm.Warning.Println("The sink may hold output newer than the last snapshot; the next run will repair it.")
		}
		return err
	}

	data := pterm.TableData{
		{"Collection", res.Collection},
		{"Build", res.BuildID},
		{"Mode", buildMode(res.FullRebuild, res.NoChanges)},
		{"Changes", res.Changes.Summary()},
		{"Files chunked", fmt.Sprint(res.FilesChunked)},
		{"Chunks emitted", fmt.Sprint(res.ChunksEmitted)},
		{"Batches", fmt.Sprint(res.Batches)},
		{"Root hash", res.RootHash.Hex()},
		{"Duration", res.Duration.String()},
	}
	if err := pterm.DefaultTable.WithData(data).Render(); err != nil {
		return err
	}

	for _, w := range res.Warnings {
		pterm.Warning.Println(w.String())
	}
	return nil
}

func buildMode(full, noChanges bool) string {
	switch {
	case noChanges:
		return "unchanged"
	case full:
		return "full"
	default:
		return "incremental"
	}
}
