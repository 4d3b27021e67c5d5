package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/sapling"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sapling",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sapling version %s\n", strings.TrimSpace(sapling.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
