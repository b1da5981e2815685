/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mappeddb

import (
	"context"
	"log/slog"

	mderrors "github.com/suparena/mappeddb/errors"
	"github.com/suparena/mappeddb/extension"
	"github.com/suparena/mappeddb/operation"
	"github.com/suparena/mappeddb/schema"
)

// Database executes operations against DynamoDB. Typed access goes through
// the package-level Execute and Table functions.
type Database interface {
	// Run executes cmd through the configured extensions and returns the
	// operation's result and error unchanged.
	Run(ctx context.Context, cmd operation.Command) (any, error)
}

// Config holds the settings of a DynamoDbDatabase.
type Config struct {
	// Client performs the DynamoDB calls. Required.
	Client operation.Client
	// Extensions wrap every operation; the first one is the outermost.
	Extensions []extension.Extension
	// Logger receives lifecycle messages; slog.Default() when nil.
	Logger *slog.Logger
}

// DynamoDbDatabase is the Database backed by a DynamoDB client. It holds no
// mutable state and is safe for concurrent use.
type DynamoDbDatabase struct {
	client  operation.Client
	handler extension.Handler
	logger  *slog.Logger
}

var _ Database = (*DynamoDbDatabase)(nil)

// New validates cfg and builds a database.
func New(cfg Config) (*DynamoDbDatabase, error) {
	if cfg.Client == nil {
		return nil, mderrors.NewValidationError("client", "a DynamoDB client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db := &DynamoDbDatabase{
		client: cfg.Client,
		logger: logger,
	}
	extensions := append([]extension.Extension(nil), cfg.Extensions...)
	db.handler = extension.Chain(db.dispatch, extensions...)

	logger.Debug("mapped database created", slog.Int("extensions", len(extensions)))
	return db, nil
}

func (d *DynamoDbDatabase) dispatch(ctx context.Context, cmd operation.Command) (any, error) {
	return cmd.Run(ctx, d.client)
}

// Run implements Database.
func (d *DynamoDbDatabase) Run(ctx context.Context, cmd operation.Command) (any, error) {
	if cmd == nil {
		return nil, mderrors.NewValidationError("operation", "must not be nil")
	}
	return d.handler(ctx, cmd)
}

// Client returns the underlying DynamoDB client.
func (d *DynamoDbDatabase) Client() operation.Client {
	return d.client
}

// DatabaseBuilder assembles a DynamoDbDatabase from optional settings.
type DatabaseBuilder struct {
	cfg Config
}

// Builder starts building a database.
func Builder() *DatabaseBuilder {
	return &DatabaseBuilder{}
}

// DynamoDbClient sets the client that performs the DynamoDB calls.
func (b *DatabaseBuilder) DynamoDbClient(client operation.Client) *DatabaseBuilder {
	b.cfg.Client = client
	return b
}

// ExtendWith appends extensions. Extensions added first run outermost.
func (b *DatabaseBuilder) ExtendWith(extensions ...extension.Extension) *DatabaseBuilder {
	b.cfg.Extensions = append(b.cfg.Extensions, extensions...)
	return b
}

// Logger sets the logger of the database.
func (b *DatabaseBuilder) Logger(logger *slog.Logger) *DatabaseBuilder {
	b.cfg.Logger = logger
	return b
}

// Build validates the settings and returns the database. The builder may be
// reused; later changes do not affect databases already built.
func (b *DatabaseBuilder) Build() (*DynamoDbDatabase, error) {
	return New(b.cfg)
}

// Execute runs op on db and returns its typed result. Errors returned by the
// operation or an extension reach the caller unchanged. A result of another
// type than R, which only a misbehaving extension can produce, is reported as
// an UnexpectedResultError.
func Execute[R any](ctx context.Context, db Database, op operation.Operation[R]) (R, error) {
	var zero R
	if db == nil {
		return zero, mderrors.NewValidationError("database", "must not be nil")
	}
	if op == nil {
		return zero, mderrors.NewValidationError("operation", "must not be nil")
	}

	out, err := db.Run(ctx, operation.Erase(op))
	if out == nil {
		return zero, err
	}
	result, ok := out.(R)
	if !ok {
		if err != nil {
			return zero, err
		}
		return zero, mderrors.NewUnexpectedResultError(op.Name(), zero, out)
	}
	return result, err
}

// Table binds a table name and a schema into a handle. No request is made.
func Table[T any](db Database, tableName string, s *schema.TableSchema[T]) *MappedTable[T] {
	return &MappedTable[T]{db: db, name: tableName, schema: s}
}

// TableFor binds a table name to the schema registered for T.
func TableFor[T any](db Database, tableName string) (*MappedTable[T], error) {
	s, err := schema.Lookup[T]()
	if err != nil {
		return nil, err
	}
	return Table(db, tableName, s), nil
}
