// telnetctl drives telnet devices from the command line using the same
// session engine, profiles and configuration as telnet-shell-mcp.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
