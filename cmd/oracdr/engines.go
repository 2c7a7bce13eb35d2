package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

// enginesCmd represents the engines command
var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List configured engines",
	Long: `Lists every engine the pipeline knows how to launch. With --verify the
engines are actually started and probed, and the ones that fail to come
up or stop answering are reported.`,
	Run: func(cmd *cobra.Command, args []string) {
		pipe, err := newPipeline(cmd)
		if err != nil {
			fmt.Printf("Error initializing pipeline: %v\n", err)
			os.Exit(1)
		}
		defer pipe.Close(context.Background())

		names := pipe.Engines()
		if len(names) == 0 {
			fmt.Println("no engines configured")
			return
		}

		verify, _ := cmd.Flags().GetBool("verify")
		if !verify {
			for _, name := range names {
				def, _ := pipe.EngineDef(name)
				fmt.Printf("%-16s %-6s %s\n", name, def.Protocol, def.Path)
			}
			return
		}

		// Create a context that cancels on interrupt signal
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		launchErr := pipe.Launch(ctx)
		alive, dead := pipe.Verify(ctx)

		state := make(map[string]string, len(names))
		for _, name := range names {
			state[name] = "failed"
		}
		for _, name := range alive {
			state[name] = "up"
		}
		for _, name := range dead {
			state[name] = "unresponsive"
		}

		prof := termenv.ColorProfile()
		for _, name := range names {
			def, _ := pipe.EngineDef(name)
			// Pad before styling so the escape codes do not skew the column.
			label := termenv.String(fmt.Sprintf("%-12s", state[name]))
			if state[name] == "up" {
				label = label.Foreground(prof.Color("2"))
			} else {
				label = label.Foreground(prof.Color("1"))
			}
			fmt.Printf("%-16s %-6s %s %s\n", name, def.Protocol, label, def.Path)
		}

		if launchErr != nil {
			fmt.Printf("Error: %v\n", launchErr)
			os.Exit(1)
		}
		if len(dead) > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(enginesCmd)

	enginesCmd.Flags().Bool("verify", false, "Launch every engine and probe it")
}
