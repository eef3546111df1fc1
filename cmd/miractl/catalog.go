package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/advisorhub/mira/internal/catalog"
)

func newSkillsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "List cataloged skills and their owning agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := catalog.Skills()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SKILL\tAGENT\tROUTABLE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%t\n", e.Name, e.Agent, e.Routable)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newTopicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List taxonomy topics and intents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOPIC\tSUBTOPIC\tINTENT\tAGENT")
			for _, def := range svc.Taxonomy().Intents {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", def.Topic, def.Subtopic, def.Name, catalog.AgentForModule(def.Topic))
			}
			return tw.Flush()
		},
	}
}
