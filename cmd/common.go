package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/lepinkainen/exrmatte/config"
	"github.com/lepinkainen/exrmatte/sequence"
	"github.com/lepinkainen/exrmatte/types"
)

// Exit codes returned through ExitError.
const (
	ExitIssues    = 1
	ExitCancelled = 130
)

// ExitError asks main to exit with Code. Err, when set, has already been
// reported to the user or is reported by main.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

func appVersion(appCtx *types.AppContext) string {
	if appCtx == nil || appCtx.Version == "" {
		return types.DefaultVersion
	}
	return appCtx.Version
}

func appLogger(appCtx *types.AppContext) *log.Logger {
	if appCtx == nil || appCtx.Logger == nil {
		return log.New(io.Discard)
	}
	return appCtx.Logger
}

func appConfig(appCtx *types.AppContext) *config.Config {
	if appCtx == nil || appCtx.Config == nil {
		cfg := config.Default()
		return &cfg
	}
	return appCtx.Config
}

// rememberFolder stores folder as the last used one. Failing to save the
// config never fails the command.
func rememberFolder(appCtx *types.AppContext, folder string) {
	if appCtx == nil || appCtx.Config == nil || appCtx.ConfigPath == "" {
		return
	}
	if err := appCtx.Config.RememberFolder(appCtx.ConfigPath, folder); err != nil {
		appLogger(appCtx).Warn("Could not save last folder", "path", appCtx.ConfigPath, "err", err)
	}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// checkFolder fails unless folder names an existing directory. An empty
// folder is resolved later.
func checkFolder(folder string) error {
	if folder == "" {
		return nil
	}
	info, err := os.Stat(folder)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("folder %s does not exist", folder)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", folder)
	}
	return nil
}

// resolveFolder makes folder absolute. Without a folder argument the last
// used folder is picked up from the config.
func resolveFolder(appCtx *types.AppContext, folder string) (string, error) {
	if folder == "" {
		folder = appConfig(appCtx).LastFolder()
	}
	return filepath.Abs(folder)
}

func discover(root, basename string, logger *log.Logger) (sequence.Report, error) {
	d := &sequence.Discoverer{ChannelBasename: basename, Logger: logger}
	return d.Discover(root)
}
