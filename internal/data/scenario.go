package data

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/l1jgo/hashbounds/internal/hashbounds"
	"gopkg.in/yaml.v3"
)

// Scenario is the starting layout of a run.
type Scenario struct {
	Name   string
	Bounds hashbounds.Box
	Bodies []BodySpec
}

// BodySpec is one body as listed in a scenario file.
type BodySpec struct {
	Kind   string
	Box    hashbounds.Box
	VX, VY float64
}

// boxYAML accepts either box representation. Exactly one full field set
// must be present.
type boxYAML struct {
	X      *float64 `yaml:"x,omitempty"`
	Y      *float64 `yaml:"y,omitempty"`
	Width  *float64 `yaml:"width,omitempty"`
	Height *float64 `yaml:"height,omitempty"`
	MinX   *float64 `yaml:"min_x,omitempty"`
	MinY   *float64 `yaml:"min_y,omitempty"`
	MaxX   *float64 `yaml:"max_x,omitempty"`
	MaxY   *float64 `yaml:"max_y,omitempty"`
}

type velocityYAML struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type bodyYAML struct {
	Kind     string        `yaml:"kind"`
	Box      boxYAML       `yaml:"box"`
	Velocity *velocityYAML `yaml:"velocity,omitempty"`
}

type scenarioFile struct {
	Name   string     `yaml:"name"`
	Bounds boxYAML    `yaml:"bounds"`
	Bodies []bodyYAML `yaml:"bodies"`
}

func (b boxYAML) box() (hashbounds.Box, error) {
	posSize := b.X != nil && b.Y != nil && b.Width != nil && b.Height != nil
	minMax := b.MinX != nil && b.MinY != nil && b.MaxX != nil && b.MaxY != nil
	var box hashbounds.Box
	switch {
	case posSize && minMax:
		return box, fmt.Errorf("%w: both x/y/width/height and min/max given", hashbounds.ErrInvalidBoxFormat)
	case posSize:
		box = hashbounds.PosSize(*b.X, *b.Y, *b.Width, *b.Height)
	case minMax:
		box = hashbounds.MinMax(*b.MinX, *b.MinY, *b.MaxX, *b.MaxY)
	default:
		return box, fmt.Errorf("%w: need x/y/width/height or min_x/min_y/max_x/max_y", hashbounds.ErrInvalidBoxFormat)
	}
	return box, box.Normalize()
}

func boxToYAML(b hashbounds.Box) boxYAML {
	if b.Format == hashbounds.FormatMinMax {
		return boxYAML{MinX: &b.MinX, MinY: &b.MinY, MaxX: &b.MaxX, MaxY: &b.MaxY}
	}
	return boxYAML{X: &b.X, Y: &b.Y, Width: &b.Width, Height: &b.Height}
}

// LoadScenario reads a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	var file scenarioFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	sc := &Scenario{Name: file.Name, Bodies: make([]BodySpec, 0, len(file.Bodies))}
	if sc.Bounds, err = file.Bounds.box(); err != nil {
		return nil, fmt.Errorf("scenario %s bounds: %w", path, err)
	}
	for i, b := range file.Bodies {
		box, err := b.Box.box()
		if err != nil {
			return nil, fmt.Errorf("scenario %s body %d: %w", path, i, err)
		}
		spec := BodySpec{Kind: b.Kind, Box: box}
		if b.Velocity != nil {
			spec.VX, spec.VY = b.Velocity.X, b.Velocity.Y
		}
		if spec.Kind == "" {
			spec.Kind = "body"
		}
		sc.Bodies = append(sc.Bodies, spec)
	}
	return sc, nil
}

// WriteScenario writes sc as YAML. Boxes keep their canonical format.
func WriteScenario(path string, sc *Scenario) error {
	file := scenarioFile{
		Name:   sc.Name,
		Bounds: boxToYAML(sc.Bounds),
		Bodies: make([]bodyYAML, len(sc.Bodies)),
	}
	for i, b := range sc.Bodies {
		file.Bodies[i] = bodyYAML{Kind: b.Kind, Box: boxToYAML(b.Box)}
		if b.VX != 0 || b.VY != 0 {
			file.Bodies[i].Velocity = &velocityYAML{X: b.VX, Y: b.VY}
		}
	}
	out, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write scenario %s: %w", path, err)
	}
	return nil
}

// GenerateOptions controls GenerateScenario.
type GenerateOptions struct {
	Seed     int64
	Bodies   int
	Bounds   hashbounds.Box
	MinSize  float64
	MaxSize  float64
	MaxSpeed float64
}

var kinds = []string{"dust", "rock", "ship", "station"}

// GenerateScenario places bodies uniformly inside the bounds. Sizes are
// drawn so most bodies are small and a few are large. Alternate bodies use
// min/max boxes so both formats are exercised.
func GenerateScenario(opts GenerateOptions) (*Scenario, error) {
	bounds := opts.Bounds
	if err := bounds.Normalize(); err != nil {
		return nil, fmt.Errorf("bounds: %w", err)
	}
	if opts.MinSize < 0 || opts.MaxSize < opts.MinSize {
		return nil, fmt.Errorf("%w: size range [%g, %g]", hashbounds.ErrDegenerateBox, opts.MinSize, opts.MaxSize)
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	sc := &Scenario{
		Name:   fmt.Sprintf("generated-%d", opts.Seed),
		Bounds: bounds,
		Bodies: make([]BodySpec, 0, opts.Bodies),
	}
	for i := 0; i < opts.Bodies; i++ {
		f := rng.Float64()
		size := opts.MinSize + (opts.MaxSize-opts.MinSize)*f*f*f
		w := size * (0.5 + rng.Float64()/2)
		h := size * (0.5 + rng.Float64()/2)
		w = min(w, bounds.Width)
		h = min(h, bounds.Height)
		x := bounds.MinX + rng.Float64()*(bounds.Width-w)
		y := bounds.MinY + rng.Float64()*(bounds.Height-h)

		var box hashbounds.Box
		if i%2 == 0 {
			box = hashbounds.PosSize(x, y, w, h)
		} else {
			box = hashbounds.MinMax(x, y, x+w, y+h)
		}
		if err := box.Normalize(); err != nil {
			return nil, err
		}
		sc.Bodies = append(sc.Bodies, BodySpec{
			Kind: kinds[int(f*float64(len(kinds)))%len(kinds)],
			Box:  box,
			VX:   (rng.Float64()*2 - 1) * opts.MaxSpeed,
			VY:   (rng.Float64()*2 - 1) * opts.MaxSpeed,
		})
	}
	return sc, nil
}
