package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	oracdr "github.com/Starlink/ORAC-DR-sub007"
	"github.com/Starlink/ORAC-DR-sub007/internal/presentation/tui"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run RECIPE FILE...",
	Short: "Reduce observations with a recipe",
	Long: `Reduces each observation file with the named recipe, one frame per file,
in order. Engines launch on first use and are shut down when the batch ends.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		recipe, files := args[0], args[1:]

		modeStr, _ := cmd.Flags().GetString("mode")
		mode, err := domain.ParseObsMode(modeStr)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		var opts []oracdr.Option
		if path, _ := cmd.Flags().GetString("params"); path != "" {
			opts = append(opts, oracdr.WithParameterFile(path))
		}
		if path, _ := cmd.Flags().GetString("event-log"); path != "" {
			opts = append(opts, oracdr.WithEventLog(path))
		}
		if dir, _ := cmd.Flags().GetString("dump-dir"); dir != "" {
			opts = append(opts, oracdr.WithDumpDir(dir))
		}
		if d, _ := cmd.Flags().GetDuration("timeout"); d > 0 {
			opts = append(opts, oracdr.WithTaskTimeout(d))
		}
		trace, _ := cmd.Flags().GetBool("trace")
		opts = append(opts, oracdr.WithTrace(trace))

		pipe, err := newPipeline(cmd, opts...)
		if err != nil {
			fmt.Printf("Error initializing pipeline: %v\n", err)
			os.Exit(1)
		}

		// Create a context that cancels on interrupt signal
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner()
		}

		runner := oracdr.NewRunner()
		runner.Output = os.Stdout
		runner.Mode = mode
		runner.KeepGoing, _ = cmd.Flags().GetBool("keep-going")
		if object, _ := cmd.Flags().GetString("object"); object != "" {
			runner.Headers = map[string]string{"OBJECT": object}
		}

		runErr := runner.Run(ctx, pipe, recipe, files)

		// Engines still deserve a clean shutdown after an interrupt.
		if err := pipe.Close(context.Background()); err != nil {
			fmt.Printf("Shutdown: %v\n", err)
		}
		if runErr != nil {
			fmt.Printf("Error: %v\n", runErr)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("mode", "", "Observing mode: imaging, spectroscopy, ifu or heterodyne")
	runCmd.Flags().String("object", "", "Object name for parameter-file overrides")
	runCmd.Flags().String("params", "", "Recipe-parameter ini file")
	runCmd.Flags().String("event-log", "", "Append display events to this progress-monitor log")
	runCmd.Flags().String("dump-dir", "", "Dump the expanded text of fatally failing primitives here")
	runCmd.Flags().Duration("timeout", 0, "Per-task engine timeout (0 keeps protocol defaults)")
	runCmd.Flags().Bool("keep-going", false, "Continue past failed observations")
	runCmd.Flags().Bool("trace", false, "Print every engine dispatch before it runs")
}
