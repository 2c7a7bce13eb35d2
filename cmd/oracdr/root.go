package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	oracdr "github.com/Starlink/ORAC-DR-sub007"
	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "oracdr",
	Short: "ORAC-DR is a recipe-driven data reduction pipeline",
	Long: `ORAC-DR reduces astronomical observations by compiling observing recipes
written in the primitive language and dispatching their steps to external
computation engines. Directory roots come from ORAC_DIR, ORAC_RECIPE_DIR,
ORAC_PRIMITIVE_DIR, ORAC_DATA_OUT and ORAC_INSTRUMENT.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("instrument", "i", "", "Instrument name (default $ORAC_INSTRUMENT)")
	rootCmd.PersistentFlags().String("engines", "", "Engine-definition yaml file")
	rootCmd.PersistentFlags().StringSlice("recipe-dir", nil, "Extra recipe directories (outrank the derived search path)")
	rootCmd.PersistentFlags().StringSlice("primitive-dir", nil, "Extra primitive directories")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error")
}

// newLogger builds the stderr logger from the persistent log-level flag.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	levelStr, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

// newPipeline builds a Pipeline from the persistent flags plus any extra
// options a command collected.
func newPipeline(cmd *cobra.Command, extra ...oracdr.Option) (*oracdr.Pipeline, error) {
	log, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}

	instrument, _ := cmd.Flags().GetString("instrument")
	opts := []oracdr.Option{oracdr.WithLogger(log)}
	if path, _ := cmd.Flags().GetString("engines"); path != "" {
		opts = append(opts, oracdr.WithEngineFile(path))
	}
	if dirs, _ := cmd.Flags().GetStringSlice("recipe-dir"); len(dirs) > 0 {
		opts = append(opts, oracdr.WithRecipeDirs(dirs...))
	}
	if dirs, _ := cmd.Flags().GetStringSlice("primitive-dir"); len(dirs) > 0 {
		opts = append(opts, oracdr.WithPrimitiveDirs(dirs...))
	}

	return oracdr.New(instrument, append(opts, extra...)...)
}
