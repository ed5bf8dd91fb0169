package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newPcgCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pcg",
		Short: "Import et export du plan comptable",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.csv>",
		Short: "Importe un plan comptable CSV (numero,libelle,parent_numero)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			c, err := opts.container()
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.PcgSvc.ImportCSV(context.Background(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d comptes importés\n", res.Imported)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "ligne %d %s: %s\n", e.Line, e.Numero, e.Message)
			}
			if len(res.Errors) > 0 {
				return fmt.Errorf("%d lignes rejetées", len(res.Errors))
			}
			return nil
		},
	})

	var format, output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Exporte le plan comptable en CSV ou XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "csv" && format != "xlsx" {
				return fmt.Errorf("unsupported format %q", format)
			}

			c, err := opts.container()
			if err != nil {
				return err
			}
			defer c.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if format == "xlsx" {
				return c.PcgSvc.ExportXLSX(context.Background(), w)
			}
			return c.PcgSvc.ExportCSV(context.Background(), w)
		},
	}
	export.Flags().StringVarP(&format, "format", "f", "csv", "csv or xlsx")
	export.Flags().StringVarP(&output, "output", "o", "", "output file, stdout when empty")
	cmd.AddCommand(export)

	return cmd
}
