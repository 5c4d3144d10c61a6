package config

import (
	"github.com/spf13/pflag"
)

// CLI is the parsed command-line surface for the host process (spec.md
// §6.3).
type CLI struct {
	DataflowPath string
	SampleRate   int
	DarkMode     bool
	LogLevel     string
	Width        int
	Height       int
}

// ParseCLI parses args (typically os.Args[1:]) into a CLI using GNU-style
// long flags.
func ParseCLI(args []string) (*CLI, error) {
	fs := pflag.NewFlagSet("mofa-host", pflag.ContinueOnError)

	dataflow := fs.String("dataflow", "", "path to the dataflow specification YAML")
	sampleRate := fs.Int("sample-rate", 16000, "audio sample rate in Hz")
	darkMode := fs.Bool("dark-mode", false, "start the UI in dark mode")
	logLevel := fs.String("log-level", "info", "log level: trace|debug|info|warn|error")
	width := fs.Int("width", 1024, "UI window width")
	height := fs.Int("height", 768, "UI window height")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &CLI{
		DataflowPath: *dataflow,
		SampleRate:   *sampleRate,
		DarkMode:     *darkMode,
		LogLevel:     *logLevel,
		Width:        *width,
		Height:       *height,
	}, nil
}
