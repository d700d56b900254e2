package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// HomeDir returns the user's home directory. Tests override it.
var HomeDir = os.UserHomeDir

// DataDir returns where local state lives (journal, crash logs, telemetry state,
// policies, prompt overrides). Resolution order, first match wins:
//  1. "dataDir" from flags, env or config file
//  2. $XDG_DATA_HOME/voiceboard
//  3. ~/.voiceboard
func DataDir() string {
	if dir := viper.GetString("dataDir"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "voiceboard")
	}
	home, err := HomeDir()
	if err != nil {
		return ".voiceboard"
	}
	return filepath.Join(home, ".voiceboard")
}
