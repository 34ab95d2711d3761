// Package scenegen samples scenes from probabilistic grammars, projects
// them to physical feasibility, and writes accepted scenes to append-only
// dataset files.
package scenegen

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"

	"github.com/mpetersen94/scene-generation/feasibility"
	"github.com/mpetersen94/scene-generation/grammar"
	"github.com/mpetersen94/scene-generation/internal/checkpoint"
	"github.com/mpetersen94/scene-generation/pose"
	"github.com/mpetersen94/scene-generation/scenefile"
	"github.com/mpetersen94/scene-generation/scenes"
)

// Generator draws scenes for one family and filters them for physical
// plausibility.
type Generator struct {
	cfg    Config
	store  *grammar.ParamStore
	oracle *feasibility.Oracle
	sctx   *grammar.SampleContext
	root   grammar.Node
	stacks *StackSampler
	render Renderer
	logger logging.Logger
}

// Stats summarizes one generation run. Rejection is silent per scene and
// visible only here as reduced yield.
type Stats struct {
	Accepted int
	Rejected int
}

// NewGenerator builds a generator for the config's family. The family's
// grammar is constructed first, so that its parameters exist in the
// store before any checkpoint is restored over them.
func NewGenerator(cfg Config, store *grammar.ParamStore, logger logging.Logger) (*Generator, error) {
	g := &Generator{
		cfg:    cfg,
		store:  store,
		oracle: feasibility.NewOracle(cfg.Oracle, logger),
		sctx:   grammar.NewSampleContext(store, cfg.Seed),
		stacks: NewStackSampler(cfg.Seed, cfg.Oracle),
		logger: logger,
	}
	root, err := g.buildRoot()
	if err != nil {
		return nil, err
	}
	g.root = root
	if cfg.ParamsPath != "" {
		snap, err := checkpoint.Load(cfg.ParamsPath)
		if err != nil {
			return nil, err
		}
		if err := store.Restore(snap); err != nil {
			return nil, fmt.Errorf("restoring parameters: %w", err)
		}
	}
	return g, nil
}

// SetRenderer attaches a renderer invoked on every accepted scene.
func (g *Generator) SetRenderer(r Renderer) {
	g.render = r
}

// buildRoot constructs the grammar root node for the configured family,
// registering its parameters in the store. The planar-bin stacks family
// is sampled directly, not grammar-driven.
func (g *Generator) buildRoot() (grammar.Node, error) {
	switch g.cfg.Family {
	case FamilyTableSetting:
		return scenes.NewTable(g.store)
	case FamilyDishBin:
		return scenes.NewDishBin(g.store)
	case FamilyPlanarBinStacks:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown scene family %q", g.cfg.Family)
	}
}

// Draw produces one candidate scene and reports whether it survived
// projection and the bounds check.
func (g *Generator) Draw() (scenefile.Scene, bool, error) {
	var scene scenefile.Scene
	if g.cfg.Family == FamilyPlanarBinStacks {
		var err error
		scene, err = g.stacks.Sample()
		if err != nil {
			return scenefile.Scene{}, false, err
		}
	} else {
		tree, err := grammar.Expand(g.sctx, g.root, g.cfg.Expand)
		if err != nil {
			return scenefile.Scene{}, false, err
		}
		scene = tree.Scene()
	}
	if g.cfg.Project {
		projected, err := g.projectScene(scene)
		if err != nil {
			return scenefile.Scene{}, false, err
		}
		scene = projected
	}
	return scene, g.inBounds(scene), nil
}

// Run appends accepted scenes to the configured output path until the
// requested count is reached or the context ends.
func (g *Generator) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	for stats.Accepted < g.cfg.Count {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		scene, ok, err := g.Draw()
		if err != nil {
			return stats, err
		}
		if !ok {
			stats.Rejected++
			continue
		}
		name := scenefile.NewSceneName()
		if err := scenefile.Append(g.cfg.OutputPath, name, scene); err != nil {
			return stats, err
		}
		if g.render != nil {
			if err := g.render.Render(name, scene); err != nil {
				return stats, fmt.Errorf("rendering %s: %w", name, err)
			}
		}
		stats.Accepted++
		if g.logger != nil && stats.Accepted%100 == 0 {
			g.logger.Infof("accepted %d scenes (%d rejected)", stats.Accepted, stats.Rejected)
		}
	}
	return stats, nil
}

// projectScene runs every planar object through the feasibility oracle
// in record order, each against the objects already placed. Spatial
// records pass through untouched.
func (g *Generator) projectScene(scene scenefile.Scene) (scenefile.Scene, error) {
	constraints := []feasibility.Constraint{
		feasibility.MinimumSeparation{},
		feasibility.BoundingBox{Min: g.cfg.BoundsMin, Max: g.cfg.BoundsMax},
	}
	out := scenefile.Scene{Objects: make([]scenefile.Object, 0, len(scene.Objects))}
	var placed []feasibility.Body
	for _, obj := range scene.Objects {
		if len(obj.Pose) != 3 {
			out.Objects = append(out.Objects, obj)
			continue
		}
		p, err := pose.PlanarFromVector(obj.Pose)
		if err != nil {
			return scenefile.Scene{}, err
		}
		body := feasibility.Body{Class: obj.Class, Radius: collisionRadius(obj), Pose: p}
		res, err := g.oracle.ProjectToFeasibility(body, placed, constraints)
		if err != nil {
			return scenefile.Scene{}, err
		}
		body.Pose = res.Pose
		placed = append(placed, body)

		projected := obj
		projected.Pose = res.Pose.Vector()
		out.Objects = append(out.Objects, projected)
	}
	return out, nil
}

// collisionRadius approximates an object's footprint as a disc: the
// declared radius when it has one, otherwise half its longest extent.
func collisionRadius(obj scenefile.Object) float64 {
	for i, name := range obj.ParamsNames {
		if name == "radius" && i < len(obj.Params) {
			return obj.Params[i]
		}
	}
	var longest float64
	for _, p := range obj.Params {
		if p > longest {
			longest = p
		}
	}
	return longest / 2
}

// inBounds checks every object's translation against the acceptance box.
func (g *Generator) inBounds(scene scenefile.Scene) bool {
	box := feasibility.BoundingBox{Min: g.cfg.BoundsMin, Max: g.cfg.BoundsMax}
	for _, obj := range scene.Objects {
		switch len(obj.Pose) {
		case 3:
			if !box.Contains(r3.Vector{X: obj.Pose[0], Y: obj.Pose[1]}) {
				return false
			}
		case 7:
			if !box.ContainsSpatial(r3.Vector{X: obj.Pose[4], Y: obj.Pose[5], Z: obj.Pose[6]}) {
				return false
			}
		default:
			return false
		}
	}
	return true
}
