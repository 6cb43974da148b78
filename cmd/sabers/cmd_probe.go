package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sabers-go/sabers/internal/schema"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file.dat>",
		Short: "Detect the dialect of a difficulty document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			d := schema.New()
			marker, ok := d.Sniff(data)
			if !ok {
				marker = "none"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marker:  %s\n", marker)

			doc, err := d.Parse(data)
			var unsupported *schema.UnsupportedVersionError
			switch {
			case errors.As(err, &unsupported):
				fmt.Fprintf(cmd.OutOrStdout(), "dialect: unsupported (%s)\n", unsupported.Version)
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dialect: %s\n", doc.Dialect())
			return nil
		},
	}
}
