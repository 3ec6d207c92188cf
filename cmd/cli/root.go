package cli

import (
	"errors"
	"fmt"
	"os"

	"cspulse/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "CSPULSE"

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "cspulse",
	Short: "Customer success SLA and alert rule engine",
	Long: `cspulse watches tickets, contracts, licenses and survey requests.

It flags SLA breaches, raises deduplicated customer alerts and manages the
survey request lifecycle. Sweeps can be triggered from the CLI, on a cron
schedule, or over HTTP.`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.BindEnv(viper.GetViper(), envPrefix)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}
