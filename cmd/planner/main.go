// Command planner is the command-line front end of the top-K planner.
package main

import (
	"context"
	"os"

	"github.com/turtacn/topk-planner/internal/application/planning"
	"github.com/turtacn/topk-planner/internal/bootstrap"
	"github.com/turtacn/topk-planner/internal/config"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/topk-planner/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	var rt *bootstrap.Runtime
	factory := func(cfg *config.Config, logger logging.Logger) (planning.Service, error) {
		// The CLI plans locally; event publishing is a server concern.
		cfg.Kafka.Enabled = false
		cfg.Metrics.Enabled = false
		var err error
		if rt, err = bootstrap.New(context.Background(), cfg, logger); err != nil {
			return nil, err
		}
		return rt.Service, nil
	}

	err := cli.Execute(factory)
	if rt != nil {
		rt.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}
