package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/dmitrijs2005/userkit/internal/flagx"
	"github.com/dmitrijs2005/userkit/internal/models"
	"github.com/spf13/cobra"
)

// bootstrapRole is given to the first account created on an empty store.
const bootstrapRole = "administrator"

func (a *App) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <identifier>",
		Short: "Log in by id, email, login or slug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			password, err := getPassword(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			token, err := a.user.Authenticate(ctx, args[0], string(password))
			if err != nil {
				return err
			}

			sctx, err := a.user.Session(ctx, token)
			if err != nil {
				return err
			}
			current, err := a.user.Current(sctx)
			if err != nil || current == nil {
				return common.ErrorUnauthorized
			}

			a.token, a.login = token, current.Login
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", current.Login)
			return nil
		},
	}
}

func (a *App) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.token, a.login = "", ""
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (a *App) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, current, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			return printStructured(cmd.OutOrStdout(), getOutputFormat(cmd), newAccountView(current))
		},
	}
}

func (a *App) newGetCmd() *cobra.Command {
	var withMeta bool

	cmd := &cobra.Command{
		Use:   "get <identifier>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.admin(cmd.Context())
			if err != nil {
				return err
			}

			acc, err := a.user.Get(ctx, args[0], false)
			if err != nil {
				return err
			}
			if acc == nil {
				return fmt.Errorf("%w: %s", common.ErrorNotFound, args[0])
			}

			view := newAccountView(acc)
			if withMeta {
				if view.Meta, err = a.user.AllMeta(ctx, acc); err != nil {
					return err
				}
			}
			return printStructured(cmd.OutOrStdout(), getOutputFormat(cmd), view)
		},
	}
	cmd.Flags().BoolVarP(&withMeta, "meta", "m", false, "Include metadata")
	return cmd
}

func (a *App) newCreateCmd() *cobra.Command {
	var (
		in          models.NewAccount
		askPassword bool
		meta        []string
	)

	cmd := &cobra.Command{
		Use:   "create <login> <email>",
		Short: "Create an account",
		Long: "Create an account. Without --ask-password a password is generated and printed.\n" +
			"Metadata is given as --meta key=value, repeatable.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.createContext(cmd.Context(), &in)
			if err != nil {
				return err
			}

			in.Login, in.Email = args[0], args[1]

			kv, rest := flagx.KeyValues(meta)
			if len(rest) > 0 {
				return fmt.Errorf("%w: metadata must be key=value, got %q", common.ErrorValidation, rest[0])
			}
			in.Meta = kv

			if askPassword {
				pw, err := getPassword(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				in.Password = string(pw)
				common.WipeByteArray(pw)
			}

			acc, generated, err := a.user.Create(ctx, in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s (id %d, roles %v)\n", acc.Login, acc.ID, acc.Roles)
			if generated != "" {
				fmt.Fprintf(out, "Generated password: %s\n", generated)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&in.Role, "role", "r", "", "Role (defaults to the configured default role)")
	cmd.Flags().StringVar(&in.Slug, "slug", "", "Slug (defaults to one derived from the login)")
	cmd.Flags().StringVar(&in.DisplayName, "display-name", "", "Display name (defaults to the login)")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "Last name")
	cmd.Flags().BoolVarP(&askPassword, "ask-password", "p", false, "Prompt for the password")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "Metadata key=value")
	return cmd
}

// createContext authorizes create. On an empty store no session is needed
// and the new account becomes an administrator.
func (a *App) createContext(ctx context.Context, in *models.NewAccount) (context.Context, error) {
	if a.isLoggedIn() {
		return a.admin(ctx)
	}

	n, err := a.users.Count(ctx, models.Query{})
	if err != nil {
		return ctx, err
	}
	if n > 0 {
		return ctx, errNotLoggedIn
	}
	in.Role = bootstrapRole
	return ctx, nil
}

func (a *App) newDeleteCmd() *cobra.Command {
	var reassign string

	cmd := &cobra.Command{
		Use:   "delete <identifier>...",
		Short: "Delete accounts",
		Long:  "Delete accounts. With --reassign their content moves to that account first.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.admin(cmd.Context())
			if err != nil {
				return err
			}

			var target any
			if reassign != "" {
				target = reassign
			}
			printOutcomes(cmd.OutOrStdout(), a.users.DeleteMany(ctx, stringsToAny(args), target))
			return nil
		},
	}
	cmd.Flags().StringVar(&reassign, "reassign", "", "Account receiving the deleted accounts' content")
	return cmd
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
