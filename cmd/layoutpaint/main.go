// Command layoutpaint turns a free-text prompt into an image: LLM agents agree
// on where each object goes, then every object is inpainted in turn.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"layoutpaint/internal/app"
	"layoutpaint/pkg/config"
	"layoutpaint/pkg/logx"
	"layoutpaint/pkg/runerrors"
	"layoutpaint/pkg/version"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:           "layoutpaint --prompt TEXT",
		Short:         "Compose an image from a prompt via a negotiated object layout",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), prompt)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "description of the image to draw")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func run(ctx context.Context, prompt string) error {
	logger := logx.NewLogger("main")
	logger.Info("layoutpaint %s", version.String())

	if err := config.LoadDotEnv(""); err != nil {
		return err
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}

	report, err := app.Run(ctx, cfg, prompt, app.Services{})
	if err != nil {
		logger.Error("Run failed in the %s phase after %d negotiation messages", runerrors.KindOf(err), messages(report))
		return err
	}

	fmt.Println(report.FinalPath)
	return nil
}

func messages(r *app.Report) int {
	if r == nil {
		return 0
	}
	return r.Messages
}
