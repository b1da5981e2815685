/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suparena/mappeddb"
	"github.com/suparena/mappeddb/operation"
	"github.com/suparena/mappeddb/schema"
)

type item = map[string]any

func (c *cli) newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Read items of an entity",
	}

	var entity, key, pk, sk string
	get := &cobra.Command{
		Use:   "get",
		Short: "Read one item by key",
		Long: "Read one item either by a single key value substituted into the entity's key templates (--key) " +
			"or by literal key attribute values (--pk and --sk).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (key == "") == (pk == "") {
				return fmt.Errorf("use either --key or --pk")
			}
			table, err := c.entityTable(cmd, entity)
			if err != nil {
				return err
			}

			var got *item
			if key != "" {
				got, err = table.GetOne(cmd.Context(), key)
			} else {
				got, err = table.GetByKey(cmd.Context(), pk, sk)
			}
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), *got)
		},
	}
	get.Flags().StringVarP(&entity, "entity", "e", "", "entity type defined in the schema file")
	get.Flags().StringVarP(&key, "key", "k", "", "key value substituted into every key macro")
	get.Flags().StringVar(&pk, "pk", "", "literal partition key value")
	get.Flags().StringVar(&sk, "sk", "", "literal sort key value")
	_ = get.MarkFlagRequired("entity")

	var partition, index, prefix string
	var limit int32
	var desc bool
	query := &cobra.Command{
		Use:   "query",
		Short: "List the items of an entity in one partition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := c.entityTable(cmd, entity)
			if err != nil {
				return err
			}
			req := operation.QueryRequest{
				IndexName:  index,
				Partition:  partition,
				Limit:      limit,
				Descending: desc,
			}
			if prefix != "" {
				req.Sort = operation.SortBeginsWith(prefix)
			}
			page, err := table.Query(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := printYAML(cmd.OutOrStdout(), page.Items); err != nil {
				return err
			}
			if page.HasMore() {
				fmt.Fprintln(cmd.ErrOrStderr(), "more items available, raise --limit")
			}
			return nil
		},
	}
	query.Flags().StringVarP(&entity, "entity", "e", "", "entity type defined in the schema file")
	query.Flags().StringVarP(&partition, "partition", "p", "", "partition key value, e.g. USER#42")
	query.Flags().StringVarP(&index, "index", "i", "", "global secondary index to query")
	query.Flags().StringVar(&prefix, "prefix", "", "sort key prefix")
	query.Flags().Int32VarP(&limit, "limit", "l", 25, "items evaluated per request")
	query.Flags().BoolVar(&desc, "desc", false, "newest sort keys first")
	_ = query.MarkFlagRequired("entity")
	_ = query.MarkFlagRequired("partition")

	cmd.AddCommand(get, query)
	return cmd
}

func (c *cli) entityTable(cmd *cobra.Command, entity string) (*mappeddb.MappedTable[item], error) {
	file, err := c.loadSchema()
	if err != nil {
		return nil, err
	}
	def, ok := file.Entity(entity)
	if !ok {
		return nil, fmt.Errorf("entity %q is not defined in the schema file", entity)
	}
	s, err := schema.SchemaFor[item](def)
	if err != nil {
		return nil, err
	}
	db, table, err := c.open(cmd.Context(), file)
	if err != nil {
		return nil, err
	}
	return mappeddb.Table(db, table, s), nil
}
