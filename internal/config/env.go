package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// EnvFilePath returns the path of the env file inside dir.
func EnvFilePath(dir string) string {
	return filepath.Join(dir, EnvFileName)
}

// LoadEnvFile loads environment variables from dir/config.env. Variables
// already present in the process environment win. A missing file is ignored.
func LoadEnvFile(dir string) {
	_ = godotenv.Load(EnvFilePath(dir))
}

// IsInteractiveTerminal returns true if both stdin and stdout are TTYs.
func IsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// WaitOnWindows pauses execution on Windows so users can see error messages
// before the console window closes.
func WaitOnWindows() {
	if runtime.GOOS == "windows" {
		fmt.Println()
		fmt.Println("Press Enter to exit...")
		fmt.Scanln()
	}
}

// FatalWithWait logs a fatal error and waits on Windows before exiting.
func FatalWithWait(format string, args ...any) {
	log.Error().Msg(fmt.Sprintf(format, args...))
	WaitOnWindows()
	os.Exit(1)
}

// WriteEnvFile writes values to dir/config.env in the given key order.
// The file holds secrets so it is created with 0600.
func WriteEnvFile(dir string, order []string, values map[string]string) (string, error) {
	path := EnvFilePath(dir)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	for _, key := range order {
		val, ok := values[key]
		if !ok || val == "" {
			continue
		}
		if _, err := fmt.Fprintf(f, "%s=%q\n", key, val); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", key, err)
		}
	}

	return path, nil
}
