package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultStateDirName = ".zulipagent"

func ExpandHomePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// ResolveStateDir returns the configured state directory, falling back to
// ~/.zulipagent when unset.
func ResolveStateDir(configured string) string {
	configured = ExpandHomePath(configured)
	if configured != "" {
		return filepath.Clean(configured)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultStateDirName
	}
	return filepath.Join(home, defaultStateDirName)
}

func ResolveStateChildDir(configuredRoot, configuredName, fallbackName string) string {
	name := strings.TrimSpace(configuredName)
	if name == "" {
		name = fallbackName
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(ResolveStateDir(configuredRoot), name)
}
