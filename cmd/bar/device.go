package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/torvald-bar/bargo/internal/slave"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Pair with and query remote slave hosts",
}

var devicePingCmd = &cobra.Command{
	Use:   "ping <host> <port>",
	Short: "Check connectivity to a slave host",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid port %q", args[1])
		}
		c, err := slave.Dial(args[0], port, false, 10*time.Second)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Ping(); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var devicePairCmd = &cobra.Command{
	Use:   "pair <host> <port>",
	Short: "Pair with a slave host, retrying with backoff until it accepts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid port %q", args[1])
		}
		entry := slave.NewEntry(args[0], port, false)
		entry.BeginPairing()
		if err := entry.Connect(2 * time.Minute); err != nil {
			return err
		}
		fmt.Printf("paired with %s\n", entry.Key())
		return nil
	},
}

func init() {
	deviceCmd.AddCommand(devicePingCmd, devicePairCmd)
}
