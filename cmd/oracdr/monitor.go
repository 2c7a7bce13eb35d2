package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Starlink/ORAC-DR-sub007/internal/config"
	"github.com/Starlink/ORAC-DR-sub007/internal/httpapi"
	"github.com/Starlink/ORAC-DR-sub007/internal/monitor"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor [EVENT-LOG]",
	Short: "Tail a running pipeline's event log",
	Long: `Follows the append-only event log a reduction writes and prints each
display event as it lands. The log defaults to .oracdr_events under the
output directory, so a plain "oracdr monitor" watches the pipeline
started in the same environment. Tailing survives the log being
truncated or replaced between polls.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log, err := newLogger(cmd)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		path := filepath.Join(config.SearchFromEnv().WorkDir(), ".oracdr_events")
		if len(args) > 0 {
			path = args[0]
		}
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = time.Second
		}

		// Create a context that cancels on interrupt signal
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if addr, _ := cmd.Flags().GetString("http"); addr != "" {
			pipe, perr := newPipeline(cmd)
			if perr != nil {
				fmt.Printf("Error initializing pipeline: %v\n", perr)
				os.Exit(1)
			}
			defer pipe.Close(context.Background())
			go func() {
				if serr := httpapi.Serve(ctx, addr, pipe.StatusHandler(), log); serr != nil {
					log.Error("status server failed", "err", serr)
				}
			}()
		}

		tailer := monitor.NewTailer(path, log)
		defer tailer.Close()

		prof := termenv.ColorProfile()
		colorize := term.IsTerminal(int(os.Stdout.Fd()))

		fmt.Printf("watching %s\n", path)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			recs, perr := tailer.Poll()
			if perr != nil {
				fmt.Printf("Error: %v\n", perr)
				os.Exit(1)
			}
			for _, rec := range recs {
				if colorize {
					fmt.Println(termenv.String(rec.String()).Foreground(prof.Color(classColor(rec.Class))))
				} else {
					fmt.Println(rec.String())
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().Duration("interval", time.Second, "Poll interval for the event log")
	monitorCmd.Flags().String("http", "", "Also serve engine status and metrics on this address")
}

// classColor maps a record's data class to an ANSI color.
func classColor(class string) string {
	switch class {
	case "frame":
		return "2"
	case "group":
		return "4"
	default:
		return "6"
	}
}
