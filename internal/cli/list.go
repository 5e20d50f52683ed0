package cli

import (
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/dmitrijs2005/userkit/internal/flagx"
	"github.com/dmitrijs2005/userkit/internal/models"
	"github.com/spf13/cobra"
)

const queryHelp = "Filters are key=value pairs: role, role__in, role__not_in, capability,\n" +
	"meta_key, meta_value, registered_after, registered_within_days, search,\n" +
	"search_columns, include, exclude, orderby, order, number, paged, offset."

// parseQuery turns key=value arguments into a Query. Positional arguments
// are rejected.
func parseQuery(args []string) (models.Query, error) {
	kv, rest := flagx.KeyValues(args)
	if len(rest) > 0 {
		return models.Query{}, fmt.Errorf("%w: expected key=value, got %q", common.ErrorValidation, rest[0])
	}
	return models.ParseQuery(kv)
}

func (a *App) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [key=value]...",
		Short: "List accounts",
		Long:  "List accounts.\n\n" + queryHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.admin(cmd.Context())
			if err != nil {
				return err
			}
			q, err := parseQuery(args)
			if err != nil {
				return err
			}

			accounts, err := a.users.List(ctx, q)
			if err != nil {
				return err
			}
			format := getOutputFormat(cmd)
			if err := printAccounts(cmd.OutOrStdout(), format, accounts); err != nil {
				return err
			}
			if format != formatTable {
				return nil
			}

			total, err := a.users.Count(ctx, q)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(accounts), total)
			return nil
		},
	}
}

func (a *App) newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <term> [key=value]...",
		Short: "Search accounts by login, slug, email or name",
		Long: "Search accounts. A leading or trailing '*' anchors the match at the other end.\n\n" +
			queryHelp,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.admin(cmd.Context())
			if err != nil {
				return err
			}
			q, err := parseQuery(args[1:])
			if err != nil {
				return err
			}
			accounts, err := a.users.Search(ctx, args[0], q)
			if err != nil {
				return err
			}
			return printAccounts(cmd.OutOrStdout(), getOutputFormat(cmd), accounts)
		},
	}
}

func (a *App) newRecentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recent <days> [key=value]...",
		Short: "List accounts registered in the last days",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.admin(cmd.Context())
			if err != nil {
				return err
			}
			days, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: days must be a number, got %q", common.ErrorValidation, args[0])
			}
			q, err := parseQuery(args[1:])
			if err != nil {
				return err
			}
			accounts, err := a.users.Recent(ctx, days, q)
			if err != nil {
				return err
			}
			return printAccounts(cmd.OutOrStdout(), getOutputFormat(cmd), accounts)
		},
	}
}

func (a *App) newSanitizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sanitize <identifier>...",
		Short: "Print the ids the identifiers resolve to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.admin(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := a.users.SanitizeIDs(ctx, stringsToAny(args))
			if err != nil {
				return err
			}

			if format := getOutputFormat(cmd); format != formatTable {
				return printStructured(cmd.OutOrStdout(), format, ids)
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func (a *App) newSetRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setrole <role> <identifier>...",
		Short: "Replace the roles of accounts with one role",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.admin(cmd.Context())
			if err != nil {
				return err
			}
			printOutcomes(cmd.OutOrStdout(), a.users.SetRoleMany(ctx, stringsToAny(args[1:]), args[0]))
			return nil
		},
	}
}

func (a *App) newRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the known roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := a.admin(cmd.Context())
			if err != nil {
				return err
			}
			opts, err := a.users.RoleOptions(ctx)
			if err != nil {
				return err
			}
			return printOptions(cmd.OutOrStdout(), getOutputFormat(cmd), opts)
		},
	}
}

func (a *App) newOptionsCmd() *cobra.Command {
	var byEmail bool

	cmd := &cobra.Command{
		Use:   "options [key=value]...",
		Short: "Print value/label pairs for a select control",
		Long:  "Print value/label pairs, keyed by id or with --email by email.\n\n" + queryHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.admin(cmd.Context())
			if err != nil {
				return err
			}
			q, err := parseQuery(args)
			if err != nil {
				return err
			}

			var opts []models.Option
			if byEmail {
				opts, err = a.users.EmailOptions(ctx, q)
			} else {
				opts, err = a.users.Options(ctx, q)
			}
			if err != nil {
				return err
			}
			return printOptions(cmd.OutOrStdout(), getOutputFormat(cmd), opts)
		},
	}
	cmd.Flags().BoolVar(&byEmail, "email", false, "Key options by email")
	return cmd
}
