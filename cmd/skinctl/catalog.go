package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/skinconsult/internal/catalog"
	"github.com/ashureev/skinconsult/internal/dialogue"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect product catalogs",
	}
	cmd.AddCommand(newCatalogCheckCmd())
	return cmd
}

func newCatalogCheckCmd() *cobra.Command {
	var (
		path   string
		domain string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate catalog links and routine kit coverage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, err := catalog.Load(path)
			if err != nil {
				return err
			}
			domain = strings.TrimRight(domain, "/")
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "products: %d\n", idx.Len())

			var problems []error
			for _, name := range idx.CheckDomain(domain) {
				_, _ = fmt.Fprintf(out, "outside domain: %s\n", name)
				problems = append(problems, fmt.Errorf("%s links outside %s", name, domain))
			}

			missing := 0
			for _, b := range dialogue.NewResolver(domain).Bundles() {
				if idx.FindExact(b.Name) == nil {
					missing++
					_, _ = fmt.Fprintf(out, "kit not in catalog: %s\n", b.Name)
				}
			}
			if strict && missing > 0 {
				problems = append(problems, fmt.Errorf("%d routine kits missing from catalog", missing))
			}

			if len(problems) > 0 {
				return errors.Join(problems...)
			}
			_, _ = fmt.Fprintln(out, "ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "catalog", defaultCatalogPath, "catalog file (.json or .toml)")
	cmd.Flags().StringVar(&domain, "domain", defaultDomain, "approved shop URL prefix")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when a routine kit is missing from the catalog")

	return cmd
}
