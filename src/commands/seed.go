package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"hbnb/src/db"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load a Class.id keyed JSON dump into storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			n, err := db.LoadData(cmd.Context(), engine, args[0], lggr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d objects\n", n)
			return nil
		},
	}
}
