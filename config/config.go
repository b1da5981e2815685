/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package config loads connection settings from the environment and builds
// the DynamoDB client and logger a database is created with.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	mderrors "github.com/suparena/mappeddb/errors"
)

// Environment variables read by LoadFromEnv.
const (
	EnvRegion       = "AWS_REGION"
	EnvAccessKey    = "AWS_ACCESS_KEY"
	EnvSecretKey    = "AWS_SECRET_KEY"
	EnvSessionToken = "AWS_SESSION_TOKEN"
	EnvTable        = "AWS_DDB_TABLE"
	EnvEndpoint     = "DDB_ENDPOINT"
	EnvLogLevel     = "LOG_LEVEL"
)

// Config holds the settings needed to reach a table.
type Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	SessionToken string
	Table        string
	// Endpoint overrides the DynamoDB endpoint, e.g. http://localhost:8000
	// for DynamoDB Local.
	Endpoint string
	LogLevel string
}

// LoadFromEnv loads the given .env files, or ".env" when none are given, and
// then reads the environment. Missing .env files are ignored and variables
// already set win over file values.
func LoadFromEnv(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	return Config{
		Region:       os.Getenv(EnvRegion),
		AccessKey:    os.Getenv(EnvAccessKey),
		SecretKey:    os.Getenv(EnvSecretKey),
		SessionToken: os.Getenv(EnvSessionToken),
		Table:        os.Getenv(EnvTable),
		Endpoint:     os.Getenv(EnvEndpoint),
		LogLevel:     os.Getenv(EnvLogLevel),
	}, nil
}

// Validate checks that static credentials come in pairs.
func (c Config) Validate() error {
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return mderrors.NewValidationError("credentials", EnvAccessKey+" and "+EnvSecretKey+" must be set together")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, Info when unset or unknown.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger on stderr at the configured level.
func (c Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.SlogLevel()}))
}

// AWSConfig resolves the AWS configuration. Static credentials are used when
// set, otherwise the default credential chain applies.
func (c Config) AWSConfig(ctx context.Context) (aws.Config, error) {
	if err := c.Validate(); err != nil {
		return aws.Config{}, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	if c.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, c.SessionToken),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return cfg, nil
}

// NewClient builds a DynamoDB client from the configuration.
func (c Config) NewClient(ctx context.Context) (*dynamodb.Client, error) {
	cfg, err := c.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
	}), nil
}
