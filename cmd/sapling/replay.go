package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/sapling/internal/cli"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <model>",
	Short: "Animate a model in the terminal",
	Long: `Plays the construction of the model node by node, then, with --text,
walks the decision path of that text down to its label.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger := loadConfig(cmd)
		text, _ := cmd.Flags().GetString("text")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		rt, err := cli.NewRuntime(ctx, cfg, logger)
		if err != nil {
			fmt.Printf("Error initializing sapling: %v\n", err)
			os.Exit(1)
		}
		defer rt.Close()

		opts := cli.ReplayOptions{ModelPath: args[0], Text: text}
		if cmd.Flags().Changed("live") {
			live, _ := cmd.Flags().GetBool("live")
			opts.Live = &live
		}

		if err := cli.Replay(ctx, rt, opts); err != nil {
			fmt.Printf("Error: %v\n", err)
			rt.Close()
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().String("text", "", "Text to classify once the tree is built")
	replayCmd.Flags().Bool("live", false, "Redraw the tree in place (default: when stdout is a terminal)")
}
