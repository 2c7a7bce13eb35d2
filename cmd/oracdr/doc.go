package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Starlink/ORAC-DR-sub007/internal/presentation/tui"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// docCmd represents the doc command
var docCmd = &cobra.Command{
	Use:   "doc PRIMITIVE",
	Short: "Show a primitive's documentation",
	Long: `Resolves the named primitive through the same search path an invocation
would use and prints its documentation block, rendered for the terminal.`,
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

		text, err := pipe.Doc(args[0], mode)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if text == "" {
			fmt.Printf("%s carries no documentation\n", args[0])
			return
		}

		if term.IsTerminal(int(os.Stdout.Fd())) {
			render := tui.NewRenderer()
			if out, rerr := render(text); rerr == nil {
				fmt.Print(out)
				return
			}
		}
		fmt.Println(text)
	},
}

func init() {
	rootCmd.AddCommand(docCmd)

	docCmd.Flags().String("mode", "", "Observing mode used to pick between primitive variants")
}
