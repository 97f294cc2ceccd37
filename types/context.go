package types

import (
	"github.com/charmbracelet/log"

	"github.com/lepinkainen/exrmatte/config"
)

// DefaultVersion is the fallback version when AppContext is nil
const DefaultVersion = "dev"

// AppContext holds application-wide context information passed to commands
type AppContext struct {
	Version string
	Logger  *log.Logger
	Config  *config.Config
	// ConfigPath is where Config is saved back to.
	ConfigPath string
}
