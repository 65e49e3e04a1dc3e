package cmd

import (
	"fmt"
	"os"

	"github.com/minkv/minkv/cmd/kv"
	"github.com/minkv/minkv/cmd/node"
	"github.com/minkv/minkv/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "minkv",
		Short: "relativistic key-value store",
		Long: fmt.Sprintf(`minkv (v%s)

A replicated key-value store written in Go that orders events by the
spacetime interval between them: an event is applied only once it could
have physically reached the receiving node.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of minkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("minkv v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(node.NodeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
