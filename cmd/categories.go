package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/foodmap-cli/internal/geospatial"
	"github.com/sells-group/foodmap-cli/internal/poi"
	"github.com/sells-group/foodmap-cli/pkg/overpass"
)

// examplePoint is the Paris Hôtel de Ville, used to show a concrete query.
var examplePoint = geospatial.Point{Lon: 2.3522, Lat: 48.8566}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Show the category catalog and the Overpass queries it sends",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cats, err := poi.LoadCategories(cfg.Search.CategoriesFile)
		if err != nil {
			return eris.Wrap(err, "load categories")
		}

		radius := cfg.Search.RadiusMeters
		if radius <= 0 {
			radius = 1000
		}
		region, err := geospatial.BuildRegion(examplePoint, radius)
		if err != nil {
			return err
		}

		formatCategories(cmd.OutOrStdout(), cats, region.BBox(), cfg.Overpass.QueryTimeoutSecs)
		return nil
	},
}

func formatCategories(out io.Writer, cats []poi.Category, bbox geospatial.BBox, timeoutSecs int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tLABEL\tCOLOR\tICON\tFALLBACK")
	_, _ = fmt.Fprintln(w, "---\t-----\t-----\t----\t--------")
	for _, c := range cats {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Key, c.Label, c.Color, c.Icon, c.FallbackName)
	}
	_ = w.Flush()

	for _, c := range cats {
		_, _ = fmt.Fprintf(out, "\n# %s\n%s\n", c.Key, overpass.BuildQuery(bbox, c.Filters, c.Kinds, timeoutSecs))
	}
}

func init() { rootCmd.AddCommand(categoriesCmd) }
