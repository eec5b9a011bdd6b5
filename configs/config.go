// Package configs contains the logic to obtain app configuration from a file or the environment
package configs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "embed" // used to embed the default application config file.

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

//go:embed vibbin.toml
var defaultConfigFile []byte

// InitConfig initializes the app config with Viper from the environment, a specified file, or a default file.
func InitConfig(file string) {
	if file == "" {
		panic("dev error, InitConfig should always be passed a valid config filepath")
	}
	viper.SetConfigName("vibbin")
	viper.SetConfigType("toml")

	// allow env vars to override config file
	viper.SetEnvPrefix("vibbin")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	viper.SetConfigFile(file)

	// if config file does not exist, create it with the embedded default config
	if _, err := os.Stat(file); err != nil {
		logrus.Infof("config file not found (%s)", file)
		if err := viper.ReadConfig(bytes.NewBuffer(defaultConfigFile)); err != nil {
			logrus.Fatalf("error reading default embedded config file: %v", err)
		}
		logrus.Infof("writing new config file (%s)", file)
		if err := os.WriteFile(file, defaultConfigFile, 0o600); err != nil {
			logrus.Fatalf("error writing default config: %v", err)
		}
		return
	}

	if err := viper.ReadInConfig(); err != nil {
		logrus.Fatalf("error reading config file: %v", err)
	}
}

// GetConfigDir obtains the configuration directory in a cross-platform manner,
// always respecting the XDG_CONFIG_HOME env var, using standard defaults on all OS's,
// but overriding to ~/.config on macOS
func GetConfigDir() string {
	var xdgConfigHome string
	if envVar := os.Getenv("XDG_CONFIG_HOME"); envVar != "" {
		xdgConfigHome = envVar
	} else if runtime.GOOS == "darwin" {
		home, _ := os.UserHomeDir()
		xdgConfigHome = filepath.Join(home, ".config") // override for mac
	} else {
		xdgConfigHome = xdg.ConfigHome
	}

	appConfigDir := filepath.Join(xdgConfigHome, "vibbin")
	if err := os.MkdirAll(appConfigDir, 0o750); err != nil {
		logrus.Fatalf("Error creating application config directory (%s): %v", appConfigDir, err)
	}
	return appConfigDir
}

// DatabasePath returns database.path, defaulting to the XDG data directory
func DatabasePath() string {
	if path := viper.GetString("database.path"); path != "" {
		return path
	}
	return filepath.Join(xdg.DataHome, "vibbin", "vibbin.sqlite")
}

// CallTimeouts are the client-side call timers
type CallTimeouts struct {
	NoAnswer time.Duration
	Ring     time.Duration
}

func GetCallTimeouts() CallTimeouts {
	t := CallTimeouts{
		NoAnswer: viper.GetDuration("call.no-answer-timeout"),
		Ring:     viper.GetDuration("call.ring-timeout"),
	}
	if t.NoAnswer <= 0 {
		t.NoAnswer = 45 * time.Second
	}
	if t.Ring <= 0 {
		t.Ring = 45 * time.Second
	}
	return t
}

// PersistCredentialsToConfig updates the [account] table of the vibbin config file, keeping
// every other setting as it is
func PersistCredentialsToConfig(filename, username, password, server string) error {
	config := map[string]any{}

	data, err := os.ReadFile(filename)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if len(data) == 0 {
		data = defaultConfigFile
	}

	// loads entire config
	if err := toml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	account, _ := config["account"].(map[string]any)
	if account == nil {
		account = map[string]any{}
	}
	account["username"] = username
	account["password"] = password
	if server != "" {
		account["server"] = server
	}
	config["account"] = account

	data, err = toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling error: %w", err)
	}
	return os.WriteFile(filename, data, 0o600)
}
