package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/userkit/internal/buildinfo"
	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/dmitrijs2005/userkit/internal/models"
	"github.com/dmitrijs2005/userkit/internal/services"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in, use 'login <identifier>'")

func (a *App) newRootCmd() *cobra.Command {
	var output string

	root := &cobra.Command{
		Use:           "userkit",
		Short:         "userkit admin console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOutputFormat(output)
		},
	}
	root.PersistentFlags().StringVarP(&output, "output", "o", formatTable, "Output format (table, json, yaml)")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		a.newLoginCmd(),
		a.newLogoutCmd(),
		a.newWhoamiCmd(),
		a.newGetCmd(),
		a.newCreateCmd(),
		a.newDeleteCmd(),
		a.newMetaCmd(),
		a.newListCmd(),
		a.newSearchCmd(),
		a.newRecentCmd(),
		a.newSanitizeCmd(),
		a.newSetRoleCmd(),
		a.newRolesCmd(),
		a.newOptionsCmd(),
		newVersionCmd(),
	)
	return root
}

// getOutputFormat returns the effective output format from the root command's persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

// session returns ctx carrying the logged-in account. The token is
// validated on every call, so an expired session logs the console out.
func (a *App) session(ctx context.Context) (context.Context, *models.Account, error) {
	if !a.isLoggedIn() {
		return ctx, nil, errNotLoggedIn
	}

	sctx, err := a.user.Session(ctx, a.token)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrTokenExpired):
			a.token, a.login = "", ""
			return ctx, nil, fmt.Errorf("session expired, log in again: %w", err)
		case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrorUnauthorized):
			a.token, a.login = "", ""
		}
		return ctx, nil, err
	}

	current, err := a.user.Current(sctx)
	if err != nil {
		return ctx, nil, err
	}
	if current == nil {
		a.token, a.login = "", ""
		return ctx, nil, common.ErrorUnauthorized
	}
	return sctx, current, nil
}

// admin returns ctx carrying the logged-in account, which must be allowed to
// manage accounts.
func (a *App) admin(ctx context.Context) (context.Context, error) {
	sctx, current, err := a.session(ctx)
	if err != nil {
		return ctx, err
	}
	if !current.Can(services.AdminCapability) {
		return ctx, fmt.Errorf("%w: %s cannot manage accounts", common.ErrorUnauthorized, current.Login)
	}
	return sctx, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format := getOutputFormat(cmd); format != formatTable {
				return printStructured(cmd.OutOrStdout(), format, buildinfo.Get())
			}
			buildinfo.PrintBuildData(cmd.OutOrStdout())
			return nil
		},
	}
}
