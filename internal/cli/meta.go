package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/spf13/cobra"
)

func (a *App) newMetaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Read and change account metadata",
	}
	cmd.AddCommand(a.newMetaGetCmd(), a.newMetaSetCmd(), a.newMetaAddCmd(), a.newMetaDelCmd())
	return cmd
}

func (a *App) newMetaGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <identifier> [key]",
		Short: "Show all metadata, or the values of one key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.admin(cmd.Context())
			if err != nil {
				return err
			}

			var meta map[string][]string
			if len(args) == 2 {
				values, err := a.user.GetMeta(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				meta = map[string][]string{args[1]: values}
			} else if meta, err = a.user.AllMeta(ctx, args[0]); err != nil {
				return err
			}
			if meta == nil {
				return fmt.Errorf("%w: %s", common.ErrorNotFound, args[0])
			}

			if format := getOutputFormat(cmd); format != formatTable {
				return printStructured(cmd.OutOrStdout(), format, meta)
			}
			printMeta(cmd.OutOrStdout(), meta)
			return nil
		},
	}
}

func printMeta(w io.Writer, meta map[string][]string) {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range meta[k] {
			fmt.Fprintf(w, "%s=%s\n", k, v)
		}
	}
}

func (a *App) newMetaSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <identifier> <key> <value>",
		Short: "Replace every value of key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.admin(cmd.Context())
			if err != nil {
				return err
			}
			changed, err := a.user.UpdateMeta(ctx, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			printChanged(cmd.OutOrStdout(), changed)
			return nil
		},
	}
}

func (a *App) newMetaAddCmd() *cobra.Command {
	var unique bool

	cmd := &cobra.Command{
		Use:   "add <identifier> <key> <value>",
		Short: "Add a value to key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.admin(cmd.Context())
			if err != nil {
				return err
			}
			added, err := a.user.AddMeta(ctx, args[0], args[1], args[2], unique)
			if err != nil {
				return err
			}
			printChanged(cmd.OutOrStdout(), added)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&unique, "unique", "u", false, "Refuse if the key already has a value")
	return cmd
}

func (a *App) newMetaDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <identifier> <key> [value]",
		Short: "Remove key, or only the rows holding value",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.admin(cmd.Context())
			if err != nil {
				return err
			}

			var removed bool
			if len(args) == 3 {
				removed, err = a.user.DeleteMetaValue(ctx, args[0], args[1], args[2])
			} else {
				removed, err = a.user.DeleteMeta(ctx, args[0], args[1])
			}
			if err != nil {
				return err
			}
			printChanged(cmd.OutOrStdout(), removed)
			return nil
		},
	}
}

func printChanged(w io.Writer, changed bool) {
	if changed {
		fmt.Fprintln(w, "ok")
		return
	}
	fmt.Fprintln(w, "unchanged")
}
