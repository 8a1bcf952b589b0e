package internal

import (
	"io"

	"github.com/starford/schemaview/internal/explorer"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects structured logs. The MCP transport owns stdout,
// so RunMCP callers point this at stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// treeDefaults converts the tree section of the configuration into the
// session defaults of the explorer.
func (c *TreeConfig) treeDefaults() explorer.TreeOptions {
	depth := c.ExpandedDepth
	merge := c.MergeAllOf
	return explorer.TreeOptions{
		ExpandedDepth:      &depth,
		MergeAllOf:         &merge,
		LimitPropertyCount: c.LimitPropertyCount,
	}
}
