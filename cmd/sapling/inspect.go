package main

import (
	"fmt"
	"os"

	"github.com/aretw0/sapling/internal/cli"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <model>",
	Short: "Summarize a model file",
	Long:  `Parses a model file and prints its shape, build order and outline.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jsonMode, _ := cmd.Flags().GetBool("json")

		if err := cli.Inspect(cli.InspectOptions{ModelPath: args[0], JSON: jsonMode}); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("json", false, "Print stats and node descriptors as JSON")
}
