package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/lepinkainen/exrmatte/config"
	"github.com/lepinkainen/exrmatte/types"
	"github.com/lepinkainen/exrmatte/ui"
)

// ConfigCmd shows the effective configuration or writes a default file.
type ConfigCmd struct {
	Init  bool `help:"Write the default configuration file"`
	Force bool `help:"Overwrite an existing file when used with --init"`
}

func (cmd *ConfigCmd) Run(appCtx *types.AppContext) error {
	path := ""
	if appCtx != nil {
		path = appCtx.ConfigPath
	}
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if cmd.Init {
		return initConfig(os.Stdout, path, cmd.Force)
	}
	return showConfig(os.Stdout, path, appConfig(appCtx))
}

func initConfig(w io.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite it", path)
	}
	cfg := config.Default()
	if err := config.Save(path, &cfg); err != nil {
		return err
	}
	fmt.Fprintln(w, ui.SuccessStyle.Render(fmt.Sprintf("✅ Wrote default configuration to %s", path)))
	return nil
}

func showConfig(w io.Writer, path string, cfg *config.Config) error {
	status := ""
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		status = " (not found, using defaults)"
	}
	fmt.Fprintln(w, ui.MutedStyle.Render(fmt.Sprintf("# %s%s", path, status)))

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = w.Write(data)
	return err
}
