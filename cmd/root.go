// Package cmd contains the CLI setup and commands exposed to the user
package cmd

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vibbin/vibbin/configs"
	"github.com/vibbin/vibbin/internal/logging"
)

var ConfigFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vibbin",
	Short: "Video calls between friends over WebRTC, with a small signaling server",
	Long: `vibbin runs both sides of a video call: "vibbin serve" hosts the signaling relay and the
account database, and the call/answer commands place and take calls from the terminal.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func init() {
	// deferring this allows user to override config path with cli option
	cobra.OnInitialize(func() {
		configs.InitConfig(ConfigFile)
		logging.Setup(viper.GetBool("debug"))
		logrus.Debugf("using config file: %s", ConfigFile)
	})

	defaultConfigFilePath := filepath.Join(configs.GetConfigDir(), "vibbin.toml")
	rootCmd.PersistentFlags().StringVar(&ConfigFile, "config", defaultConfigFilePath, "config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Print debugging information")

	// expose to application via viper
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}
