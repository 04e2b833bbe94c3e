package cli

import (
	"github.com/spf13/cobra"

	"github.com/lukasz-falda/libruscli/internal/app"
	"github.com/lukasz-falda/libruscli/internal/config"
	"github.com/lukasz-falda/libruscli/internal/session"
)

func newApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	secrets, err := session.OpenKeyringSecrets()
	if err != nil {
		return nil, err
	}

	ui := &consoleUI{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
	a, err := app.New(cfg, secrets, ui, ui)
	if err != nil {
		return nil, err
	}
	ui.app = a
	return a, nil
}
