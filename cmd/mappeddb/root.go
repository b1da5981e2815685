/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/suparena/mappeddb"
	"github.com/suparena/mappeddb/config"
	"github.com/suparena/mappeddb/extension"
	"github.com/suparena/mappeddb/operation"
	"github.com/suparena/mappeddb/schema"
	"gopkg.in/yaml.v3"
)

// clientFactory builds the DynamoDB client commands talk to.
type clientFactory func(ctx context.Context, cfg config.Config) (operation.Client, error)

func defaultClient(ctx context.Context, cfg config.Config) (operation.Client, error) {
	client, err := cfg.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// cli carries the flag values and client factory shared by all commands.
type cli struct {
	newClient  clientFactory
	envFile    string
	schemaPath string
	table      string
}

func newRootCmd(newClient clientFactory) *cobra.Command {
	c := &cli{newClient: newClient}

	root := &cobra.Command{
		Use:   "mappeddb",
		Short: "Work with tables described by mappeddb schema files",
		Long:  "mappeddb validates schema definition files and creates, describes and reads the DynamoDB tables they describe.",
	}
	root.SilenceUsage = true
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "optional file with AWS_* and DDB_* settings")
	root.PersistentFlags().StringVarP(&c.schemaPath, "schema", "s", "", "schema definition file")
	root.PersistentFlags().StringVarP(&c.table, "table", "t", "", "table name, overrides the schema file and AWS_DDB_TABLE")

	root.AddCommand(newVersionCmd())
	root.AddCommand(c.newSchemaCmd())
	root.AddCommand(c.newTableCmd())
	root.AddCommand(c.newItemCmd())
	return root
}

func (c *cli) loadSchema() (*schema.File, error) {
	if c.schemaPath == "" {
		return nil, fmt.Errorf("--schema is required")
	}
	return schema.LoadDefinitionsFile(c.schemaPath)
}

// open connects to the database. The table name comes from --table, then the
// schema file, then the environment.
func (c *cli) open(ctx context.Context, file *schema.File) (*mappeddb.DynamoDbDatabase, string, error) {
	cfg, err := config.LoadFromEnv(c.envFile)
	if err != nil {
		return nil, "", err
	}

	table := c.table
	if table == "" && file != nil {
		table = file.Table
	}
	if table == "" {
		table = cfg.Table
	}
	if table == "" {
		return nil, "", fmt.Errorf("no table name: use --table, a schema file or %s", config.EnvTable)
	}

	client, err := c.newClient(ctx, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create DynamoDB client: %w", err)
	}

	logger := cfg.NewLogger()
	db, err := mappeddb.Builder().
		DynamoDbClient(client).
		Logger(logger).
		ExtendWith(extension.Logging(logger)).
		Build()
	if err != nil {
		return nil, "", err
	}
	return db, table, nil
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
