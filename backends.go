package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-redis/redis/v8"

	"github.com/wozniakbe/ecolife-prefs/backend"
	"github.com/wozniakbe/ecolife-prefs/preferences"
)

// BackendFactory opens the per-profile backend for the configured storage.
// Clients shared across profiles are created once and released by Close.
type BackendFactory struct {
	open  func(profile string) (preferences.Backend, error)
	close func() error
}

// Open returns the backend for profile.
func (f *BackendFactory) Open(profile string) (preferences.Backend, error) {
	return f.open(profile)
}

// Close releases shared clients.
func (f *BackendFactory) Close() error {
	if f.close == nil {
		return nil
	}
	return f.close()
}

// NewBackendFactory builds the factory selected by cfg.Backend.
func NewBackendFactory(ctx context.Context, cfg Config, logger *slog.Logger) (*BackendFactory, error) {
	switch cfg.Backend {
	case BackendMemory:
		areas := backend.NewMemoryAreas()
		return &BackendFactory{
			open: func(profile string) (preferences.Backend, error) {
				return areas.Area(profile).Session(), nil
			},
		}, nil

	case BackendFile:
		return &BackendFactory{
			open: func(profile string) (preferences.Backend, error) {
				f, err := backend.NewFile(cfg.PrefsDir, profile, logger)
				if err != nil {
					return nil, err
				}
				return f, nil
			},
		}, nil

	case BackendBadger:
		db, err := backend.OpenBadger(cfg.BadgerDir)
		if err != nil {
			return nil, err
		}
		return &BackendFactory{
			open: func(profile string) (preferences.Backend, error) {
				return backend.NewBadger(db, profile, logger), nil
			},
			close: db.Close,
		}, nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		return &BackendFactory{
			open: func(profile string) (preferences.Backend, error) {
				return backend.NewRedis(client, profile, logger), nil
			},
			close: client.Close,
		}, nil

	case BackendDynamoDB:
		awsCfg, err := backend.LoadAWSConfig(ctx, backend.AWSOptions{Region: cfg.AWSRegion, Endpoint: cfg.DynamoEndpoint})
		if err != nil {
			return nil, err
		}
		client := dynamodb.NewFromConfig(awsCfg)
		return &BackendFactory{
			open: func(profile string) (preferences.Backend, error) {
				return backend.NewDynamo(client, cfg.DynamoTableName, profile), nil
			},
		}, nil

	case BackendS3:
		awsCfg, err := backend.LoadAWSConfig(ctx, backend.AWSOptions{Region: cfg.AWSRegion, Endpoint: cfg.S3Endpoint})
		if err != nil {
			return nil, err
		}
		client := backend.NewS3Client(awsCfg, cfg.S3Endpoint != "")
		return &BackendFactory{
			open: func(profile string) (preferences.Backend, error) {
				return backend.NewS3(client, cfg.S3Bucket, cfg.S3Prefix, profile), nil
			},
		}, nil
	}

	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
