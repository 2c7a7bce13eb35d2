package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Starlink/ORAC-DR-sub007/internal/presentation/graph"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph RECIPE",
	Short: "Export a recipe's call graph visualization",
	Long: `Resolves the named recipe and every primitive reachable from it and
outputs a Mermaid diagram (graph TD) of the call structure, including the
engines each primitive dispatches to.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		modeStr, _ := cmd.Flags().GetString("mode")
		mode, err := domain.ParseObsMode(modeStr)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		pipe, err := newPipeline(cmd)
		if err != nil {
			fmt.Printf("Error initializing pipeline: %v\n", err)
			os.Exit(1)
		}
		defer pipe.Close(context.Background())

		nodes, err := pipe.Inspect(args[0], mode)
		if err != nil {
			fmt.Printf("Error inspecting recipe: %v\n", err)
			os.Exit(1)
		}

		// Generate and print Mermaid graph
		fmt.Print(graph.GenerateMermaid(nodes))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().String("mode", "", "Observing mode used to resolve the sources")
}
