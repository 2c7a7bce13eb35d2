package main

import (
	"fmt"
	"strings"

	oracdr "github.com/Starlink/ORAC-DR-sub007"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of oracdr",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("oracdr version %s\n", strings.TrimSpace(oracdr.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
