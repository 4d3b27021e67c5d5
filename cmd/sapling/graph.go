package main

import (
	"fmt"
	"os"

	"github.com/aretw0/sapling/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <model>",
	Short: "Export the tree visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the model.
With --text, the decision path of that text is highlighted.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _ := loadConfig(cmd)
		text, _ := cmd.Flags().GetString("text")

		err := cli.Graph(cli.GraphOptions{
			ModelPath: args[0],
			Text:      text,
			Tolerance: cfg.Tolerance,
		})
		if err != nil {
			fmt.Printf("Error generating graph: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("text", "", "Text whose decision path is highlighted")
}
