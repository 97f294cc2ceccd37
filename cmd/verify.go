package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lepinkainen/exrmatte/exr"
	"github.com/lepinkainen/exrmatte/pipeline"
	"github.com/lepinkainen/exrmatte/sequence"
	"github.com/lepinkainen/exrmatte/types"
	"github.com/lepinkainen/exrmatte/ui"
	"github.com/lepinkainen/exrmatte/utils"
)

// VerifyCmd checks that every frame in the given folders carries the
// embedded matte channels.
type VerifyCmd struct {
	Folders      []string `arg:"" name:"folders" help:"Folders of embedded frames to check" type:"existingdir"`
	MatteChannel string   `short:"m" name:"matte-channel" help:"Matte channel basename to look for" default:"${matte_channel}"`
	Channels     []string `short:"C" name:"channel" help:"Require these exact channel names instead of any matte channel"`
}

// Run opens each frame through oiiotool and reports the ones missing
// matte channels.
func (cmd *VerifyCmd) Run(appCtx *types.AppContext) error {
	cfg := appConfig(appCtx)
	if err := sequence.ValidateChannelBasename(cmd.MatteChannel); err != nil {
		return fmt.Errorf("--matte-channel: %w", err)
	}
	if err := utils.ValidateOIIOToolDependency(cfg.OIIOTool); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codec := exr.NewOIIOCodec(cfg.OIIOTool, appLogger(appCtx))
	verified, failed, err := cmd.verify(ctx, os.Stdout, codec)
	if err != nil {
		if ctx.Err() != nil {
			return &ExitError{Code: ExitCancelled}
		}
		return err
	}

	fmt.Printf("\n%s\n", ui.InfoStyle.Render(fmt.Sprintf("✅ Verified: %d, ❌ Failed: %d", verified, failed)))
	if failed > 0 {
		return &ExitError{Code: ExitIssues}
	}
	return nil
}

func (cmd *VerifyCmd) verify(ctx context.Context, w io.Writer, codec exr.Codec) (verified, failed int, err error) {
	fmt.Fprintf(w, "%s\n", ui.InfoStyle.Render(fmt.Sprintf("Verifying %d folder(s)...", len(cmd.Folders))))

	for _, folder := range cmd.Folders {
		checks, err := pipeline.VerifyFolder(ctx, codec, folder, cmd.MatteChannel, cmd.Channels)
		if err != nil {
			return verified, failed, err
		}
		if len(checks) == 0 {
			fmt.Fprintf(w, "⚠️  %s has no EXR frames, skipping\n", folder)
			continue
		}

		folderFailed := 0
		for _, check := range checks {
			switch {
			case check.Err != nil:
				fmt.Fprintf(w, "%s\n", ui.ErrorStyle.Render(fmt.Sprintf("❌ Error reading %s: %v", check.File, check.Err)))
			case len(check.Missing) > 0:
				fmt.Fprintf(w, "%s\n", ui.ErrorStyle.Render(fmt.Sprintf("❌ %s (missing: %s)",
					filepath.Base(check.File), strings.Join(check.Missing, ", "))))
			default:
				verified++
				continue
			}
			folderFailed++
		}
		failed += folderFailed

		if folderFailed == 0 {
			fmt.Fprintf(w, "%s\n", ui.SuccessStyle.Render(fmt.Sprintf("✅ %s: %d frame(s) with %s",
				folder, len(checks), strings.Join(checks[0].Found, ", "))))
		}
	}
	return verified, failed, nil
}
