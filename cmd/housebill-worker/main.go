package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/housebill/internal/billing"
	"github.com/smallbiznis/housebill/internal/billing/job"
	"github.com/smallbiznis/housebill/internal/billing/queue"
	"github.com/smallbiznis/housebill/internal/clock"
	"github.com/smallbiznis/housebill/internal/config"
	"github.com/smallbiznis/housebill/internal/observability"
	"github.com/smallbiznis/housebill/pkg/db"
	"go.uber.org/fx"
)

// The worker executes queued billing runs. It shares the job store with the
// API process, so status polling works regardless of which side ran the task.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		billing.Module,
		job.Module,
		queue.WorkerModule,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.Jobs.WorkerNodeID)
	if err != nil {
		panic(err)
	}
	return node
}
