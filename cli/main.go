package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.viam.com/rdk/logging"

	scenegen "github.com/mpetersen94/scene-generation"
	"github.com/mpetersen94/scene-generation/grammar"
)

const validFamilies = "table_setting, dish_bin, planar_bin_stacks"

func main() {
	configPath := flag.String("config", "", "path to generation config YAML (optional)")
	family := flag.String("family", scenegen.FamilyTableSetting, "scene family: "+validFamilies)
	count := flag.Int("count", 0, "number of accepted scenes to generate (0 keeps the config value)")
	out := flag.String("out", "", "output scene file (empty keeps the config value)")
	params := flag.String("params", "", "parameter checkpoint to restore before sampling (optional)")
	noProject := flag.Bool("no-project", false, "skip feasibility projection before the bounds check")
	render := flag.Bool("render", false, "log world poses of accepted scenes")
	seed := flag.Uint64("seed", 0, "RNG seed (0 keeps the config value)")
	flag.Parse()

	logger := logging.NewLogger("scenegen-cli")

	var cfg scenegen.Config
	var err error
	if *configPath != "" {
		cfg, err = scenegen.LoadConfig(*configPath)
	} else {
		cfg, err = scenegen.DefaultConfig(*family)
	}
	if err != nil {
		logger.Fatal(err)
	}
	if *count > 0 {
		cfg.Count = *count
	}
	if *out != "" {
		cfg.OutputPath = *out
	}
	if *params != "" {
		cfg.ParamsPath = *params
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *noProject {
		cfg.Project = false
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gen, err := scenegen.NewGenerator(cfg, grammar.NewParamStore(), logger)
	if err != nil {
		logger.Fatal(err)
	}
	if *render {
		gen.SetRenderer(scenegen.NewLogRenderer(nil, logger))
	}

	logger.Infof("=== Generating %d %s scenes into %s ===", cfg.Count, cfg.Family, cfg.OutputPath)
	stats, err := gen.Run(ctx)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infof("Done: %d accepted, %d rejected", stats.Accepted, stats.Rejected)
}
