// File: cmd/hioload-dgram/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// hioload-dgram: readiness-driven UDP echo server.

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hioload-dgram",
	Short: "Readiness-driven UDP echo server",
	Long: `hioload-dgram echoes every UDP datagram back to its sender from a single
poller loop. Variants: one socket (echo), ten sockets sharing a poller
(multi), and one socket plus a periodic user-space timer source (mixed).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(echoCmd)
	rootCmd.AddCommand(multiCmd)
	rootCmd.AddCommand(mixedCmd)

	rootCmd.PersistentFlags().String("config", "", "TOML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace|debug|info|warning|err|off)")
	rootCmd.PersistentFlags().String("mode", "", "trigger mode (level|edge)")
	rootCmd.PersistentFlags().String("backend", "", "poller backend (epoll|poll)")
	rootCmd.PersistentFlags().String("bind", "", "bind address")
	rootCmd.PersistentFlags().Int("cpu", -1, "pin the poller thread to this CPU, -1 = unpinned")
	rootCmd.PersistentFlags().Int("drain-limit", 0, "edge-mode operations per activation, 0 = until would-block")
	rootCmd.PersistentFlags().Duration("stats-interval", 0, "log counters at this interval (0 = only on exit)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
