package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dshills/codeindex/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show the state of a collection, or list collections",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringP("collection", "c", "", "collection name")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	collection, _ := cmd.Flags().GetString("collection")

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	if collection == "" && len(args) == 1 {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		collection = engine.CollectionName(root)
	}
	if collection == "" {
		return listCollections(e)
	}

	st, err := e.Status(cmd.Context(), collection)
	if err != nil {
		return err
	}
	if !st.Indexed {
		pterm.Info.Printfln("Collection %s is not indexed", collection)
		return nil
	}

	data := pterm.TableData{
		{"Collection", st.Collection},
		{"Build", st.BuildID},
		{"Built at", st.BuiltAt.Format(time.RFC3339)},
		{"Root hash", st.RootHash.Hex()},
		{"Files", fmt.Sprint(st.Files)},
		{"Obfuscated", fmt.Sprint(st.Obfuscated)},
	}
	if s := st.Storage; s != nil {
		data = append(data,
			[]string{"Stored files", fmt.Sprint(s.FilesCount)},
			[]string{"Chunks", fmt.Sprint(s.ChunksCount)},
			[]string{"Embeddings", fmt.Sprint(s.EmbeddingsCount)},
			[]string{"Database size", fmt.Sprintf("%.2f MB", s.IndexSizeMB)},
		)
	}
	return pterm.DefaultTable.WithData(data).Render()
}

func listCollections(e *engine.Engine) error {
	names, err := e.Collections()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		pterm.Info.Println("No collections indexed yet")
		return nil
	}
	items := make([]pterm.BulletListItem, len(names))
	for i, n := range names {
		items[i] = pterm.BulletListItem{Level: 0, Text: n}
	}
	return pterm.DefaultBulletList.WithItems(items).Render()
}
