package commands

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/filesaga"
	"github.com/hupe1980/filesaga/internal/config"
	"github.com/hupe1980/filesaga/objstore"
	"github.com/hupe1980/filesaga/permdb"
	"github.com/hupe1980/filesaga/resource"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
)

func newLogger(cfg config.LoggingConfig) *filesaga.Logger {
	if cfg.Format == "json" {
		return filesaga.NewJSONLogger(cfg.SlogLevel())
	}
	return filesaga.NewTextLogger(cfg.SlogLevel())
}

// buildService wires the stores described by cfg into a Service.
func buildService(ctx context.Context, cfg *config.Config, logger *filesaga.Logger, mc filesaga.MetricsCollector) (*filesaga.Service, error) {
	controller := resource.NewController(resource.Config{
		MaxInFlight:       cfg.Limits.MaxInFlight,
		RequestsPerSecond: cfg.Limits.RequestsPerSecond,
		Burst:             cfg.Limits.Burst,
	})

	awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	ddb := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.AWS.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.DynamoDBEndpoint)
		}
	})

	perms := permdb.New(ddb, cfg.TableName, func(o *permdb.Options) {
		o.BatchSize = cfg.Limits.BatchSize
		o.Logger = logger.Logger
		o.Controller = controller
	})

	objects, err := buildObjectStore(cfg, awsCfg, logger, controller)
	if err != nil {
		return nil, err
	}

	return filesaga.New(objects, perms,
		filesaga.WithLogger(logger),
		filesaga.WithMetricsCollector(mc),
		filesaga.WithCompensationTimeout(cfg.Server.CompensationTimeout),
	)
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awsCfg, nil
}

func buildObjectStore(cfg *config.Config, awsCfg aws.Config, logger *filesaga.Logger, controller *resource.Controller) (filesaga.ObjectStore, error) {
	objOpts := func(o *objstore.Options) {
		o.Logger = logger.Logger
		o.Controller = controller
	}

	switch cfg.Backend {
	case config.BackendS3:
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.AWS.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.S3Endpoint)
			}
			o.UsePathStyle = cfg.AWS.UsePathStyle
		})
		return objstore.NewS3Store(client, cfg.BucketName, objOpts), nil

	case config.BackendMinio:
		client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
			Creds:  miniocreds.NewStaticV4(cfg.Minio.AccessKeyID, cfg.Minio.SecretAccessKey, ""),
			Secure: cfg.Minio.UseSSL,
			Region: cfg.AWS.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create MinIO client: %w", err)
		}
		return objstore.NewMinioStore(client, cfg.BucketName, objOpts), nil

	case config.BackendMemory:
		logger.Warn("using in-memory object store, objects are lost on exit")
		return objstore.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
