package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/saasfoundry/lemonsync/internal/config"
	"github.com/saasfoundry/lemonsync/internal/migration"
	"github.com/saasfoundry/lemonsync/internal/observability"
	"github.com/saasfoundry/lemonsync/internal/server"
	"github.com/saasfoundry/lemonsync/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
