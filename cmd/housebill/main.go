package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/housebill/internal/billing"
	"github.com/smallbiznis/housebill/internal/billing/job"
	"github.com/smallbiznis/housebill/internal/billing/queue"
	"github.com/smallbiznis/housebill/internal/clock"
	"github.com/smallbiznis/housebill/internal/config"
	"github.com/smallbiznis/housebill/internal/house"
	"github.com/smallbiznis/housebill/internal/migration"
	"github.com/smallbiznis/housebill/internal/observability"
	"github.com/smallbiznis/housebill/internal/server"
	"github.com/smallbiznis/housebill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		house.Module,
		billing.Module,
		job.Module,
		queue.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.Jobs.NodeID)
	if err != nil {
		panic(err)
	}
	return node
}
