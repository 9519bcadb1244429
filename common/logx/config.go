package logx

type (
	// Config defines the minimal level, the outputs and the line format.
	Config struct {

		// Level is the lowest log level to be printed.
		Level string `yaml:"level"`

		// Output is the list of output log files.
		// Two special values exist:
		// stdout - standard output
		// stderr - standard error output
		Output []string `yaml:"output"`

		// Format is either "text" or "json".
		Format string `yaml:"format"`

		// Color enables ANSI colored levels in text format.
		Color bool `yaml:"color"`
	}
)

// DefaultConfig is used for empty config fields.
var DefaultConfig = Config{
	Level:  "info",
	Output: []string{"stderr"},
	Format: "text",
}

func (c Config) withDefaults() Config {
	if c.Level == "" {
		c.Level = DefaultConfig.Level
	}

	if len(c.Output) == 0 {
		c.Output = DefaultConfig.Output
	}

	if c.Format == "" {
		c.Format = DefaultConfig.Format
	}

	return c
}
