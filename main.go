package main

import (
	"os"

	_ "github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-discovery/pkg/cli"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}
