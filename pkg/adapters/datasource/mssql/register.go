package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-discovery/pkg/config"
)

func init() {
	datasource.Register(datasource.ProviderRegistration{
		Info: datasource.ProviderInfo{
			Type:        "mssql",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2016+ and Azure SQL Database",
		},
		Factory: func(ctx context.Context, ds *config.DatasourceConfig, logger *zap.Logger) (datasource.MetadataProvider, error) {
			cfg, err := FromDatasourceConfig(ds)
			if err != nil {
				return nil, err
			}
			return NewProvider(ctx, cfg, logger)
		},
	})
}
