package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/justyntemme/explorer/internal/fs"
	"github.com/spf13/cobra"
)

func NewDrivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drives",
		Short: "List detected storage volumes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgManager.Get()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPATH")
			for _, d := range fs.ListDrives() {
				fmt.Fprintf(w, "%s\t%s\n", d.Name, d.Path)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Println()
			fmt.Println(color.New(color.Bold).Sprint("Storage roots:"))
			for _, r := range cfg.StorageRoots {
				fmt.Printf("  %s\n", r)
			}
			return nil
		},
	}
}
