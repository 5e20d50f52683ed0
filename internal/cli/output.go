package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/userkit/internal/models"
	"github.com/dmitrijs2005/userkit/internal/services"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by -o.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validateOutputFormat(output string) error {
	switch output {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unsupported output format %q: use 'table', 'json' or 'yaml'", output)
}

// accountView is the printable form of an account.
type accountView struct {
	ID           int64               `json:"id" yaml:"id"`
	Login        string              `json:"login" yaml:"login"`
	Slug         string              `json:"slug" yaml:"slug"`
	Email        string              `json:"email" yaml:"email"`
	Name         string              `json:"name" yaml:"name"`
	Registered   string              `json:"registered" yaml:"registered"`
	Roles        []string            `json:"roles" yaml:"roles"`
	Capabilities []string            `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Meta         map[string][]string `json:"meta,omitempty" yaml:"meta,omitempty"`
}

func newAccountView(a *models.Account) accountView {
	caps := make([]string, 0, len(a.Capabilities))
	for c, granted := range a.Capabilities {
		if granted {
			caps = append(caps, c)
		}
	}
	sort.Strings(caps)

	return accountView{
		ID:           a.ID,
		Login:        a.Login,
		Slug:         a.Slug,
		Email:        a.Email,
		Name:         a.Name(),
		Registered:   a.RegisteredAt.UTC().Format(time.RFC3339),
		Roles:        a.Roles,
		Capabilities: caps,
	}
}

func printStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}

func printAccounts(w io.Writer, format string, accounts []*models.Account) error {
	views := make([]accountView, len(accounts))
	for i, a := range accounts {
		views[i] = newAccountView(a)
	}
	if format != formatTable {
		return printStructured(w, format, views)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLOGIN\tEMAIL\tNAME\tROLES\tREGISTERED")
	for _, v := range views {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			v.ID, v.Login, v.Email, v.Name, strings.Join(v.Roles, ","), v.Registered)
	}
	return tw.Flush()
}

func printOptions(w io.Writer, format string, opts []models.Option) error {
	if format != formatTable {
		return printStructured(w, format, opts)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VALUE\tLABEL")
	for _, o := range opts {
		fmt.Fprintf(tw, "%s\t%s\n", o.Value, o.Label)
	}
	return tw.Flush()
}

// printOutcomes prints one line per bulk element, in input order.
func printOutcomes(w io.Writer, outcomes []services.Outcome) {
	for _, o := range outcomes {
		switch {
		case o.OK:
			fmt.Fprintf(w, "%s\tok\n", o.Identifier)
		case o.Err != nil:
			fmt.Fprintf(w, "%s\tfailed: %v\n", o.Identifier, o.Err)
		default:
			fmt.Fprintf(w, "%s\tunchanged\n", o.Identifier)
		}
	}
}
