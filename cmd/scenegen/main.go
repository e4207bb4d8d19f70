// scenegen writes a random body scenario as YAML for hbsim.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/l1jgo/hashbounds/internal/data"
	"github.com/l1jgo/hashbounds/internal/hashbounds"
)

func main() {
	var (
		bodies   = flag.Int("n", 1000, "number of bodies")
		seed     = flag.Int64("seed", 29482, "random seed")
		half     = flag.Float64("half", 2048, "half extent of the square world centered on the origin")
		minSize  = flag.Float64("min", 5, "smallest body edge")
		maxSize  = flag.Float64("max", 80, "largest body edge")
		maxSpeed = flag.Float64("speed", 120, "largest body speed in units per second")
		name     = flag.String("name", "", "scenario name (default generated-<seed>)")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: scenegen [flags] <output.yaml>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	sc, err := data.GenerateScenario(data.GenerateOptions{
		Seed:     *seed,
		Bodies:   *bodies,
		Bounds:   hashbounds.MinMax(-*half, -*half, *half, *half),
		MinSize:  *minSize,
		MaxSize:  *maxSize,
		MaxSpeed: *maxSpeed,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *name != "" {
		sc.Name = *name
	}

	if err := data.WriteScenario(flag.Arg(0), sc); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d bodies to %s\n", len(sc.Bodies), flag.Arg(0))
}
