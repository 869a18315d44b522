// File: cmd/hioload-dgram/variants.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-dgram/control"
	"github.com/momentics/hioload-dgram/server"
)

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Echo on a single socket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			port, _ := cmd.Flags().GetUint16("port")
			cfg.Ports = []uint16{port}
		}
		return serve(cmd, cfg)
	},
}

var multiCmd = &cobra.Command{
	Use:   "multi",
	Short: "Echo on consecutive ports sharing one poller",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		first, _ := cmd.Flags().GetUint16("first-port")
		count, _ := cmd.Flags().GetInt("sockets")
		if cmd.Flags().Changed("first-port") || cmd.Flags().Changed("sockets") || len(cfg.Ports) < 2 {
			cfg.Ports = control.PortRange(first, count)
		}
		return serve(cmd, cfg)
	},
}

var mixedCmd = &cobra.Command{
	Use:   "mixed",
	Short: "Echo on one socket alongside a periodic timer source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			port, _ := cmd.Flags().GetUint16("port")
			cfg.Ports = []uint16{port}
		}
		if cmd.Flags().Changed("interval") {
			d, _ := cmd.Flags().GetDuration("interval")
			cfg.TimerInterval = control.Duration(d)
		}
		return serve(cmd, cfg, server.WithTimer())
	},
}

func init() {
	echoCmd.Flags().Uint16("port", control.DefaultPort, "UDP port")

	multiCmd.Flags().Uint16("first-port", control.DefaultPort, "first UDP port")
	multiCmd.Flags().Int("sockets", control.DefaultMultiSockets, "number of consecutive ports")

	mixedCmd.Flags().Uint16("port", control.DefaultPort, "UDP port")
	mixedCmd.Flags().Duration("interval", control.DefaultTimerInterval, "timer period")
}
