// Command sievectl is the operator tool of sieve: offline rank-mass
// selection, template file checks, catalog schema and the MCP stdio server.
package main

import "os"

func main() {
	// cobra prints to stderr unless an output is set.
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
