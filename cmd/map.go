package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/foodmap-cli/internal/pipeline"
)

const addressPrompt = "Please enter a French postal address: "

var (
	mapAddress   string
	mapRadius    float64
	mapOutput    string
	mapExportDir string
)

func runMap(cmd *cobra.Command, args []string) error {
	p, err := initPipeline(cfg)
	if err != nil {
		return err
	}

	address := mapAddress
	if address == "" {
		address, err = promptAddress(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
	}

	res, err := p.Run(cmd.Context(), pipeline.Request{
		Address:      address,
		RadiusMeters: mapRadius,
		OutputPath:   mapOutput,
		ExportDir:    mapExportDir,
	})
	if err != nil {
		return eris.Wrap(err, "pipeline run")
	}

	zap.L().Info("map complete",
		zap.String("run_id", res.RunID),
		zap.String("output", res.OutputPath),
		zap.Int("exported_files", len(res.Exported)),
	)

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Coordinates: %s\n", res.Location.Point())
	for _, s := range res.Sets {
		_, _ = fmt.Fprintf(out, "  %-12s %d\n", s.Category, s.Len())
	}
	_, _ = fmt.Fprintf(out, "Map written to %s\n", res.OutputPath)
	if mapExportDir != "" {
		_, _ = fmt.Fprintf(out, "Layers exported to %s\n", mapExportDir)
	}
	return nil
}

// promptAddress reads one line from in after writing the prompt to out.
func promptAddress(in io.Reader, out io.Writer) (string, error) {
	_, _ = fmt.Fprint(out, addressPrompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", eris.Wrap(err, "read address")
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", eris.New("no address given")
	}
	return line, nil
}

func init() {
	rootCmd.Flags().StringVarP(&mapAddress, "address", "a", "", "postal address to search around (prompted when empty)")
	rootCmd.Flags().Float64VarP(&mapRadius, "radius", "r", 0, "search radius in meters (default search.radius_meters)")
	rootCmd.Flags().StringVarP(&mapOutput, "output", "o", "", "HTML output path (default map.output_path)")
	rootCmd.Flags().StringVar(&mapExportDir, "export-dir", "", "also write GeoJSON, Shapefile and XLSX layers to this directory")
}
