package kv

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			if eventID, err := kvClient.Set(key, []byte(value)); err != nil {
				return err
			} else {
				fmt.Printf("set successfully (event %s)\n", eventID)
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if resp, ok, err := kvClient.Get(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			}
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if eventID, err := kvClient.Delete(key); err != nil {
				return err
			} else {
				fmt.Printf("delete successfully (event %s)\n", eventID)
			}
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints a snapshot of the connected node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := kvClient.Info()
			if err != nil {
				return err
			}
			fmt.Printf("node:     %s\n", info.NodeID)
			fmt.Printf("position: (%g, %g, %g) m\n", info.Position[0], info.Position[1], info.Position[2])
			fmt.Printf("c:        %g m/s\n", info.LightSpeed)
			fmt.Printf("events:   %d\n", info.Events)
			fmt.Printf("heads:    %d\n", info.Heads)
			fmt.Printf("pending:  %d\n", info.Pending)
			fmt.Printf("blocked:  %d\n", info.Blocked)
			return nil
		},
	}
)
