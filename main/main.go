package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.viam.com/rdk/logging"

	scenegen "github.com/mpetersen94/scene-generation"
	"github.com/mpetersen94/scene-generation/fit"
	"github.com/mpetersen94/scene-generation/grammar"
	"github.com/mpetersen94/scene-generation/scenefile"
	"github.com/mpetersen94/scene-generation/scenes"
)

func main() {
	dataPath := flag.String("scenes", "", "path to observed scene file")
	family := flag.String("family", scenegen.FamilyTableSetting, "scene family: table_setting or dish_bin")
	checkpointPath := flag.String("checkpoint", "fit_params.json", "output path for the best parameter snapshot")
	epochs := flag.Int("epochs", 0, "training epochs (0 keeps the default)")
	lr := flag.Float64("lr", 0, "learning rate (0 keeps the default)")
	rotate := flag.Bool("rotate", false, "randomize scene rotation during training")
	seed := flag.Uint64("seed", 0, "RNG seed (0 keeps the default)")
	flag.Parse()

	logger := logging.NewDebugLogger("scenegen-fit")

	if *dataPath == "" {
		logger.Fatal("-scenes flag is required")
	}
	dataset, err := scenefile.LoadOrdered(*dataPath)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infof("Loaded %d scenes from %s", len(dataset), *dataPath)

	store := grammar.NewParamStore()
	var score fit.Scorer
	switch *family {
	case scenegen.FamilyTableSetting:
		table, err := scenes.NewTable(store)
		if err != nil {
			logger.Fatal(err)
		}
		score = scenes.NewTableScorer(table, store)
	case scenegen.FamilyDishBin:
		bin, err := scenes.NewDishBin(store)
		if err != nil {
			logger.Fatal(err)
		}
		score = scenes.NewDishBinScorer(bin, store)
	default:
		logger.Fatalf("unknown scene family %q", *family)
	}

	cfg := fit.DefaultConfig()
	cfg.CheckpointPath = *checkpointPath
	cfg.RandomizeRotation = *rotate
	if *epochs > 0 {
		cfg.Epochs = *epochs
	}
	if *lr > 0 {
		cfg.LearningRate = *lr
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fitter := fit.NewFitter(cfg, store, score, logger)
	report, err := fitter.Run(ctx, dataset)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infof("Best test loss %.4f (%d batches skipped); checkpoint at %s",
		report.BestTestLoss, report.SkippedBatches, cfg.CheckpointPath)
}
