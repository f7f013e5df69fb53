package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/odvcencio/respview/pkg/devices"
)

func runDevicesCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("devices", flag.ContinueOnError)
	file := fs.String("file", "", "YAML file with extra or replacement presets")
	asJSON := fs.Bool("json", false, "print presets as JSON")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}

	catalog, err := devices.NewCatalog()
	if err != nil {
		return err
	}
	if *file != "" {
		if err := catalog.LoadOverrides(*file); err != nil {
			return configError(fmt.Errorf("load %s: %w", *file, err))
		}
	}

	presets := catalog.List()
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(presets)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tVIEWPORT\tDPR\tLABEL")
	for _, p := range presets {
		fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%g\t%s\n", p.ID, p.Category, p.Width, p.Height, p.PixelRatio, p.Label)
	}
	return tw.Flush()
}
