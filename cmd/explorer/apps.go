package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/justyntemme/explorer/internal/registry"
	"github.com/spf13/cobra"
)

func NewAppsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Manage the installed-app registry",
	}
	cmd.AddCommand(newAppsAddCmd(), newAppsRmCmd(), newAppsLsCmd())
	return cmd
}

func openStore() (*registry.Store, error) {
	return registry.OpenStore(cfgManager.Get().RegistryPath, nil)
}

func newAppsAddCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <package-id> <source-path>",
		Short: "Register an installed app and its package file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			if name == "" {
				name = args[0]
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Put(cmd.Context(), registry.AppRecord{PackageID: args[0], Name: name, SourcePath: src}); err != nil {
				return err
			}
			fmt.Printf("%s %s -> %s\n", color.GreenString("added"), args[0], src)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the package id)")
	return cmd
}

func newAppsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <package-id>...",
		Aliases: []string{"remove"},
		Short:   "Remove apps from the registry",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			for _, id := range args {
				if err := store.Remove(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Printf("%s %s\n", color.YellowString("removed"), id)
			}
			return nil
		},
	}
}

func newAppsLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List registered apps",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			apps, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(apps) == 0 {
				fmt.Println("No apps registered.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PACKAGE\tNAME\tSOURCE")
			for _, a := range apps {
				src := a.SourcePath
				if _, err := os.Stat(src); err != nil {
					src = color.RedString("%s (missing)", src)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.PackageID, a.Name, src)
			}
			return w.Flush()
		},
	}
}
