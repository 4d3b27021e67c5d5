package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/sapling/internal/cli"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train <dataset.csv>",
	Short: "Train a model on the classifier service",
	Long: `Uploads a labelled CSV file ("text" column plus a label column) to the
configured classifier service, then adopts and prints the tree it trained.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger := loadConfig(cmd)
		labelCol, _ := cmd.Flags().GetString("label-col")
		jsonMode, _ := cmd.Flags().GetBool("json")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		rt, err := cli.NewRuntime(ctx, cfg, logger)
		if err != nil {
			fmt.Printf("Error initializing sapling: %v\n", err)
			os.Exit(1)
		}
		defer rt.Close()

		opts := cli.DatasetOptions{DatasetPath: args[0], LabelCol: labelCol, JSON: jsonMode}
		if err := cli.Train(ctx, rt.Engine, opts); err != nil {
			fmt.Printf("Error: %v\n", err)
			rt.Close()
			os.Exit(1)
		}
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <dataset.csv>",
	Short: "Score the model against a labelled dataset",
	Long: `Reports overall and per-label accuracy, label counts and the confusion
matrix of the classifier's model on a labelled CSV file. With --model the
model file is loaded first.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger := loadConfig(cmd)
		labelCol, _ := cmd.Flags().GetString("label-col")
		modelPath, _ := cmd.Flags().GetString("model")
		jsonMode, _ := cmd.Flags().GetBool("json")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		rt, err := cli.NewRuntime(ctx, cfg, logger)
		if err != nil {
			fmt.Printf("Error initializing sapling: %v\n", err)
			os.Exit(1)
		}
		defer rt.Close()

		opts := cli.DatasetOptions{DatasetPath: args[0], LabelCol: labelCol, ModelPath: modelPath, JSON: jsonMode}
		if err := cli.Evaluate(ctx, rt.Engine, opts); err != nil {
			fmt.Printf("Error: %v\n", err)
			rt.Close()
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(trainCmd, evaluateCmd)
	for _, c := range []*cobra.Command{trainCmd, evaluateCmd} {
		c.Flags().String("label-col", domain.DefaultLabelColumn, "Name of the CSV column holding the expected label")
		c.Flags().Bool("json", false, "Print the result as JSON")
	}
	evaluateCmd.Flags().String("model", "", "Model file to load before evaluating")
}
