package log

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "hark"

// getDefaultDir picks the per-user log location for the running OS:
// ~/Library/Logs on darwin, %LOCALAPPDATA% on windows and the XDG state
// directory elsewhere.
func getDefaultDir() (string, error) {
	return defaultDir(runtime.GOOS, os.Getenv, os.UserHomeDir)
}

func defaultDir(goos string, getenv func(string) string, home func() (string, error)) (string, error) {
	var base, env, fallback string
	switch goos {
	case "darwin":
		h, err := home()
		if err != nil {
			return "", err
		}
		return filepath.Join(h, "Library", "Logs", appName), nil
	case "windows":
		env, fallback = "LOCALAPPDATA", filepath.Join("AppData", "Local")
	default:
		env, fallback = "XDG_STATE_HOME", filepath.Join(".local", "state")
	}
	if base = getenv(env); base == "" {
		h, err := home()
		if err != nil {
			return "", err
		}
		base = filepath.Join(h, fallback)
	}
	return filepath.Join(base, appName, "logs"), nil
}
