/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suparena/mappeddb/schema"
)

func (c *cli) newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Schema definition tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "lint [file]",
		Short: "Validate a schema definition file",
		Long:  "Check that the file names a table, that entity types are unique and that every key template is well formed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.schemaPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("a schema file is required")
			}

			file, err := schema.LoadDefinitionsFile(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "table %s: %d entities\n", file.Table, len(file.Entities))
			for _, d := range file.Entities {
				fmt.Fprintf(out, "  %s  %s=%s", d.Type, d.PartitionKey.Name, d.PartitionKey.Template)
				if d.SortKey != nil {
					fmt.Fprintf(out, "  %s=%s", d.SortKey.Name, d.SortKey.Template)
				}
				for _, idx := range d.Indexes {
					fmt.Fprintf(out, "  [%s]", idx.Name)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	})
	return cmd
}
