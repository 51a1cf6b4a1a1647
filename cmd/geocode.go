package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/foodmap-cli/internal/pipeline"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolve an address to coordinates",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		gc, err := initGeocoder(cfg)
		if err != nil {
			return err
		}

		address := pipeline.NormalizeAddress(strings.Join(args, " "))
		res, err := gc.Geocode(cmd.Context(), address)
		if err != nil {
			return eris.Wrap(err, "geocode")
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "%s\n", res.Point())
		_, _ = fmt.Fprintf(out, "label:  %s\n", res.Label)
		_, _ = fmt.Fprintf(out, "score:  %.2f\n", res.Score)
		_, _ = fmt.Fprintf(out, "source: %s\n", res.Source)
		return nil
	},
}

func init() { rootCmd.AddCommand(geocodeCmd) }
