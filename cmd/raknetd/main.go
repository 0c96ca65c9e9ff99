package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "1.0.0"

var cfgFile string

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "raknetd",
		Short:   "A RakNet reliability and session server for Bedrock-compatible clients",
		Version: version,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (default: ./config.yaml)")

	cmd.AddCommand(newServeCommand(v))
	return cmd
}
