package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "evalbot",
	Short: "evalbot - chat bot for sandboxed code evaluation",
	Long: `evalbot lets chat users run code in a remote sandbox and get the results
back in the channel.

It listens for !eval and !timeit commands, forwards the code to the
evaluation service, and formats the output with truncation and paste
overflow. Editing the invoking message and confirming with the repeat
reaction re-runs the code.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
