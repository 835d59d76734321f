package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-intake/internal/export"
	"github.com/sells-group/lead-intake/internal/model"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect stored leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		leads, err := loadLeads(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && len(leads) > limit {
			leads = leads[:limit]
		}
		return printLeads(cmd.OutOrStdout(), leads)
	},
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all leads as csv, xlsx or yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			return err
		}

		leads, err := loadLeads(cmd)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return eris.Wrapf(err, "create %s", out)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		return export.Write(w, format, leads)
	},
}

func init() {
	leadsListCmd.Flags().Int("limit", 50, "maximum leads to show (0 for all)")
	leadsExportCmd.Flags().String("format", "csv", "output format: csv, xlsx or yaml")
	leadsExportCmd.Flags().StringP("out", "o", "", "output file (default stdout)")

	leadsCmd.AddCommand(leadsListCmd, leadsExportCmd)
	rootCmd.AddCommand(leadsCmd)
}

func loadLeads(cmd *cobra.Command) ([]model.Lead, error) {
	ctx := cmd.Context()
	if err := cfg.Validate("leads"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck

	leads, err := st.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "list leads")
	}
	return leads, nil
}

func printLeads(w io.Writer, leads []model.Lead) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tSTAGE\tNAME\tADDRESS\tPHONE\tSENDER")
	for _, l := range leads {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
			l.Timestamp.UTC().Format("2006-01-02 15:04"),
			l.Stage, l.FirstName, l.LastName, l.Address, l.PhoneNumber, l.Sender)
	}
	return tw.Flush()
}
