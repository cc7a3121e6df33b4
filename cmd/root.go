package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "streamtalk",
	Short: "streamtalk — chat relay over Redis Streams with a scripted robot",
	Long: "streamtalk relays messages between human participants and an optional\n" +
		"scripted robot over an append-only Redis Stream, with a terminal client\n" +
		"for the local user.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
}
