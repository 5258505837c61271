// ABOUTME: Small OS and filesystem helpers shared across packages.

package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

// IsLinux reports whether we run on Linux.
func IsLinux() bool {
	return runtime.GOOS == "linux"
}

// IsWindows reports whether we run on Windows.
func IsWindows() bool {
	return runtime.GOOS == "windows"
}

// FileExists reports whether path exists (file or directory).
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ExpandEnv expands $VAR and ${VAR} references. Unknown variables are left
// as written so a bad path stays recognizable in error messages.
func ExpandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return "${" + key + "}"
	})
}

// ConfigDir returns the per-user config directory for playto.
func ConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return ".playto"
		}
		return filepath.Join(home, ".playto")
	}
	return filepath.Join(dir, "playto")
}
