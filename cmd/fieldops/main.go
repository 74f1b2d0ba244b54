package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/pyrosafe/fieldops/internal/clock"
	"github.com/pyrosafe/fieldops/internal/logger"
	"github.com/pyrosafe/fieldops/internal/migration"
	"github.com/pyrosafe/fieldops/internal/scheduler"
	"github.com/pyrosafe/fieldops/internal/server"
	"github.com/pyrosafe/fieldops/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.Provide(registerSnowflake),
		logger.Module,
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
