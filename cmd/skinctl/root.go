package main

import "github.com/spf13/cobra"

const (
	defaultDBPath      = "./data/skinconsult.db"
	defaultCatalogPath = "./data/catalog.json"
	defaultDomain      = "https://www.dermalab.it"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "skinctl",
		Short:         "Operator tools for the skin consultation server",
		Long:          "skinctl exports ended consultations, checks product catalogs against the shop domain and dry-runs the routine kit resolver.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newExportCmd(),
		newCatalogCmd(),
		newResolveCmd(),
	)

	return rootCmd
}
