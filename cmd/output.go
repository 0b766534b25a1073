package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/catalog-admin/internal/models"
)

const (
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

func validateFormat(format string) error {
	switch format {
	case formatTable, formatYAML, formatJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use table, yaml or json)", format)
	}
}

// render writes v in the selected format. table is only called for the
// table format.
func (a *app) render(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	switch a.output {
	case formatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

func productTable(products []models.Product) func(tw *tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tBRAND\tPRICE\tSTOCK\tRATING\tIMAGE")
		for _, p := range products {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				p.ID, p.Name, p.Category, p.Brand, p.Price.StringFixed(2), p.Stock,
				formatOptionalFloat(p.Rating), deref(p.ImagePath))
		}
	}
}

func userTable(users []models.User) func(tw *tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tEMAIL\tNAME")
		for _, u := range users {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Email, deref(u.Name))
		}
	}
}

func formatOptionalFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *f)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// confirm asks a yes/no question on the command's input
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// Terminal access, replaceable in tests.
var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

// readSecret reads a password from the command's input. When prompt is set
// and the input is a terminal, the password is read without echo; otherwise
// one line is read as-is.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if prompt != "" {
		fmt.Fprint(cmd.OutOrStdout(), prompt)
		if f, ok := in.(*os.File); ok && isTerminal(f.Fd()) {
			secret, err := readPassword(f.Fd())
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return "", fmt.Errorf("failed to read password: %w", err)
			}
			return string(secret), nil
		}
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
