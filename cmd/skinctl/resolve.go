package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashureev/skinconsult/internal/dialogue"
)

func newResolveCmd() *cobra.Command {
	var (
		skinType string
		issue    string
		domain   string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the routine kit chosen for a skin type and issue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := dialogue.NewResolver(domain)
			b := r.Resolve(skinType, issue)
			if b == nil {
				fb := r.FallbackBundle()
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "no kit matched, fallback: %s %s\n", fb.Name, fb.URL)
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", b.Name, b.URL)
			return err
		},
	}

	cmd.Flags().StringVar(&skinType, "skin-type", "", "skin type, e.g. Secca")
	cmd.Flags().StringVar(&issue, "issue", "", "main skin issue")
	cmd.Flags().StringVar(&domain, "domain", defaultDomain, "shop URL prefix for kit links")
	_ = cmd.MarkFlagRequired("skin-type")

	return cmd
}
