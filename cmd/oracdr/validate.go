package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Starlink/ORAC-DR-sub007/internal/validator"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

var validateCmd = &cobra.Command{
	Use:   "validate RECIPE",
	Short: "Check a recipe for consistency",
	Long: `Resolves the full call graph of the named recipe and reports primitives
that cannot be found, engines no definition covers, and call chains the
executor would refuse.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(cmd, args); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Recipe is valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().String("mode", "", "Observing mode used to resolve the sources")
}

func runValidate(cmd *cobra.Command, args []string) error {
	modeStr, _ := cmd.Flags().GetString("mode")
	mode, err := domain.ParseObsMode(modeStr)
	if err != nil {
		return err
	}

	pipe, err := newPipeline(cmd)
	if err != nil {
		return fmt.Errorf("failed to init pipeline: %w", err)
	}
	defer pipe.Close(context.Background())

	nodes, err := pipe.Inspect(args[0], mode)
	if err != nil {
		return err
	}

	defs := make(map[string]domain.EngineDef)
	for _, name := range pipe.Engines() {
		if def, ok := pipe.EngineDef(name); ok {
			defs[name] = def
		}
	}

	if issues := validator.Check(nodes, defs); len(issues) > 0 {
		msgs := make([]string, len(issues))
		for i, is := range issues {
			msgs[i] = is.String()
		}
		return fmt.Errorf("found %d problems:\n- %s", len(issues), strings.Join(msgs, "\n- "))
	}
	return nil
}
