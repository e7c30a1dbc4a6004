// Package commands implements the ofagent CLI.
package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "ofagent",
	Short: "OpenFlow state manager agent",
	Long: `ofagent runs the OpenFlow state manager core: it owns the flow
table, translates flow-mod/multipart requests into dataplane calls, and
answers the controller over an OpenFlow listener.

Use "ofagent [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it. This
// is called by main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none, flags and env only)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// bindViper wires v to read OFAGENT_-prefixed environment variables and,
// if --config names a file, that file's contents, at the precedence
// environment > file > flag default that viper.BindPFlag gives every
// bound flag.
func bindViper(v *viper.Viper, cmd *cobra.Command) error {
	v.SetEnvPrefix("OFAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	return v.BindPFlags(cmd.Flags())
}
