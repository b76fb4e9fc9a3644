package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "NETINIT_CONFIG"
	// ConfigFileName is looked up next to the topology and in the working directory
	ConfigFileName = "netinit.yaml"
	// ConfigDirName is the directory under the user and system config roots
	ConfigDirName = "netinit"
	userFileName  = "config.yaml"
)

// searchPaths lists config candidates in lookup order. A config kept next to
// the topology file belongs to that network and wins over the per-user ones.
func searchPaths(topologyPath string) []string {
	var paths []string
	if env := os.Getenv(EnvConfigPath); env != "" {
		paths = append(paths, env)
	}
	if topologyPath != "" {
		paths = append(paths, filepath.Join(filepath.Dir(topologyPath), ConfigFileName))
	}
	paths = append(paths, ConfigFileName)
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, ConfigDirName, userFileName))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, userFileName))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, userFileName))
}

// FindConfigPath returns the first existing config file for a network whose
// topology lives at topologyPath, or "" if there is none. topologyPath may be
// empty.
func FindConfigPath(topologyPath string) string {
	for _, p := range searchPaths(topologyPath) {
		if !fileExists(p) {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}

// DefaultConfigPath is where "netinit init" writes a new config: next to the
// topology when one is given, otherwise in the user config directory.
func DefaultConfigPath(topologyPath string) string {
	if topologyPath != "" {
		return filepath.Join(filepath.Dir(topologyPath), ConfigFileName)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, ConfigDirName, userFileName)
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", ConfigDirName, userFileName)
	}
	return ConfigFileName
}

// EnsureConfigDir creates the directory holding configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
