/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spf13/cobra"
	"github.com/suparena/mappeddb"
	"github.com/suparena/mappeddb/operation"
	"github.com/suparena/mappeddb/schema"
)

func (c *cli) newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Create, describe and delete tables",
	}

	var entity string
	var rcu, wcu int64
	create := &cobra.Command{
		Use:   "create",
		Short: "Create the table described by the schema file",
		Long: "Create the table with the primary key of the selected entity, the first one by default, " +
			"and every global secondary index declared by any entity in the file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := c.loadSchema()
			if err != nil {
				return err
			}
			def, err := tableDefinition(file, entity)
			if err != nil {
				return err
			}
			s, err := schema.SchemaFor[map[string]any](def)
			if err != nil {
				return err
			}

			db, table, err := c.open(cmd.Context(), file)
			if err != nil {
				return err
			}
			var throughput *operation.Throughput
			if rcu > 0 || wcu > 0 {
				throughput = &operation.Throughput{ReadCapacityUnits: rcu, WriteCapacityUnits: wcu}
			}
			desc, err := mappeddb.Table(db, table, s).CreateTable(cmd.Context(), throughput)
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), summarize(desc))
		},
	}
	create.Flags().StringVarP(&entity, "entity", "e", "", "entity whose primary key the table uses")
	create.Flags().Int64Var(&rcu, "rcu", 0, "provisioned read capacity, on-demand when unset")
	create.Flags().Int64Var(&wcu, "wcu", 0, "provisioned write capacity, on-demand when unset")

	describe := &cobra.Command{
		Use:   "describe",
		Short: "Show the table status, keys and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, table, err := c.open(cmd.Context(), c.optionalSchema())
			if err != nil {
				return err
			}
			desc, err := mappeddb.Execute[*types.TableDescription](cmd.Context(), db, operation.DescribeTable{Table: table})
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), summarize(desc))
		},
	}

	var yes bool
	drop := &cobra.Command{
		Use:   "delete",
		Short: "Delete the table and all of its items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete without --yes")
			}
			db, table, err := c.open(cmd.Context(), c.optionalSchema())
			if err != nil {
				return err
			}
			if _, err := mappeddb.Execute[struct{}](cmd.Context(), db, operation.DeleteTable{Table: table}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", table)
			return nil
		},
	}
	drop.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")

	cmd.AddCommand(create, describe, drop)
	return cmd
}

// optionalSchema loads the schema file when one is given. A broken file is
// ignored here since only its table name is used.
func (c *cli) optionalSchema() *schema.File {
	if c.schemaPath == "" {
		return nil
	}
	file, err := c.loadSchema()
	if err != nil {
		return nil
	}
	return file
}

// tableDefinition combines the primary key of one entity with the indexes of
// all entities. Entities sharing an index must agree on its key attributes.
func tableDefinition(file *schema.File, entity string) (schema.Definition, error) {
	base := file.Entities[0]
	if entity != "" {
		d, ok := file.Entity(entity)
		if !ok {
			return schema.Definition{}, fmt.Errorf("entity %q is not defined in the schema file", entity)
		}
		base = d
	}

	out := base
	out.Indexes = nil
	seen := map[string]schema.Index{}
	for _, d := range append([]schema.Definition{base}, file.Entities...) {
		for _, idx := range d.Indexes {
			prev, ok := seen[idx.Name]
			if !ok {
				seen[idx.Name] = idx
				out.Indexes = append(out.Indexes, idx)
				continue
			}
			if prev.PartitionKey.Name != idx.PartitionKey.Name || sortName(prev) != sortName(idx) {
				return schema.Definition{}, fmt.Errorf("index %s: entity %s uses different key attributes", idx.Name, d.Type)
			}
		}
	}
	return out, nil
}

func sortName(idx schema.Index) string {
	if idx.SortKey == nil {
		return ""
	}
	return idx.SortKey.Name
}

type tableSummary struct {
	Name         string   `yaml:"name"`
	Status       string   `yaml:"status"`
	ItemCount    int64    `yaml:"itemCount"`
	PartitionKey string   `yaml:"partitionKey"`
	SortKey      string   `yaml:"sortKey,omitempty"`
	BillingMode  string   `yaml:"billingMode,omitempty"`
	Indexes      []string `yaml:"indexes,omitempty"`
}

func summarize(desc *types.TableDescription) tableSummary {
	s := tableSummary{
		Name:      aws.ToString(desc.TableName),
		Status:    string(desc.TableStatus),
		ItemCount: aws.ToInt64(desc.ItemCount),
	}
	if desc.BillingModeSummary != nil {
		s.BillingMode = string(desc.BillingModeSummary.BillingMode)
	}
	for _, k := range desc.KeySchema {
		if k.KeyType == types.KeyTypeHash {
			s.PartitionKey = aws.ToString(k.AttributeName)
		} else {
			s.SortKey = aws.ToString(k.AttributeName)
		}
	}
	for _, gsi := range desc.GlobalSecondaryIndexes {
		s.Indexes = append(s.Indexes, aws.ToString(gsi.IndexName))
	}
	return s
}
