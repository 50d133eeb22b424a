package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var deobfuscateCmd = &cobra.Command{
	Use:   "deobfuscate <obfuscated-path>...",
	Short: "Map obfuscated paths back to the originals",
	Long: `Look obfuscated paths up in the local mapping file. This is the only
way to reverse obfuscation; the MCP server does not offer it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer func() { _ = e.Close() }()

		for _, obf := range args {
			orig, err := e.Deobfuscate(obf)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), orig)
		}
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact-mapping",
	Short: "Drop mapping entries no snapshot references",
	Long: `The mapping file only grows during indexing so that obfuscated paths
held by consumers stay reversible. compact-mapping removes entries for paths
that no collection's snapshot contains any more.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer func() { _ = e.Close() }()

		removed, err := e.CompactMapping()
		if err != nil {
			return err
		}
		pterm.Success.Printfln("Removed %d mapping entries", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deobfuscateCmd)
	rootCmd.AddCommand(compactCmd)
}
