package factory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/rowstore"
	"go.uber.org/zap"
)

// tokenGenerator signs a DSQL connect token for endpoint.
type tokenGenerator func(ctx context.Context, endpoint, region string, creds aws.CredentialsProvider) (string, error)

func defaultTokenGenerator(ctx context.Context, endpoint, region string, creds aws.CredentialsProvider) (string, error) {
	return auth.GenerateDbConnectAuthToken(ctx, endpoint, region, creds)
}

// NewDSQLPool opens a pgx pool against an Aurora DSQL cluster. Every new
// connection authenticates with a freshly signed IAM token; cfg.Password is
// ignored.
func NewDSQLPool(ctx context.Context, cfg rowstore.DatabaseConfig) (*pgxpool.Pool, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "require"
	}
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pc.BeforeConnect = dsqlBeforeConnect(cfg.Host, awsCfg.Region, awsCfg.Credentials, defaultTokenGenerator)
	return openPool(ctx, pc)
}

func dsqlBeforeConnect(host, region string, creds aws.CredentialsProvider, gen tokenGenerator) func(context.Context, *pgx.ConnConfig) error {
	return func(ctx context.Context, cc *pgx.ConnConfig) error {
		if host == "" {
			host = cc.Host
		}
		token, err := gen(ctx, host, region, creds)
		if err != nil {
			return fmt.Errorf("failed to generate dsql auth token: %w", err)
		}
		cc.Password = token
		zap.S().Debugw("generated IAM auth token for Postgres connection (dsql)", "host", host, "region", region)
		return nil
	}
}
