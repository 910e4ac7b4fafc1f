package mysql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-discovery/pkg/config"
)

func init() {
	datasource.Register(datasource.ProviderRegistration{
		Info: datasource.ProviderInfo{
			Type:        "mysql",
			DisplayName: "MySQL",
			Description: "Connect to MySQL 5.7+ and MariaDB 10.3+",
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
