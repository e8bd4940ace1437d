// Command bedrock runs headless simulations of the built-in scenes,
// reporting body states and timing. It is the manual test bench for the
// engine: pick a scene, step it, watch it settle.
package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/akmonengine/bedrock"
	"github.com/akmonengine/bedrock/actor"
)

const version = "0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bedrock",
		Short: "Headless rigid-body simulation bench",
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newScenesCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	return root
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		sceneName  string
		steps      int
		dt         float64
		hash       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scene for a number of steps and print the final state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := bedrock.DefaultConfig()
			if configPath != "" {
				loaded, err := bedrock.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			world, err := bedrock.NewWorld(cfg)
			if err != nil {
				return err
			}

			scene, ok := scenes[sceneName]
			if !ok {
				return fmt.Errorf("unknown scene %q, try 'bedrock scenes'", sceneName)
			}
			scene.build(world)

			sleeping := 0
			world.Events.Subscribe(bedrock.ON_SLEEP, func(bedrock.Event) { sleeping++ })
			world.Events.Subscribe(bedrock.ON_WAKE, func(bedrock.Event) { sleeping-- })

			start := time.Now()
			for i := 0; i < steps; i++ {
				if err := world.Step(dt); err != nil {
					return fmt.Errorf("step %d: %w", i, err)
				}
			}
			elapsed := time.Since(start)

			printBodies(world)
			fmt.Printf("\n%d steps of %.4fs in %s (%.2f ms/step), %d bodies asleep\n",
				steps, dt, elapsed.Round(time.Microsecond),
				float64(elapsed.Milliseconds())/float64(steps), sleeping)

			if hash {
				fmt.Printf("state hash: %016x\n", world.StateHash())
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVarP(&sceneName, "scene", "s", "stack", "scene to simulate")
	cmd.Flags().IntVarP(&steps, "steps", "n", 300, "number of steps")
	cmd.Flags().Float64Var(&dt, "dt", 1.0/60.0, "timestep in seconds")
	cmd.Flags().BoolVar(&hash, "hash", false, "print the final state hash")

	return cmd
}

func newScenesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenes",
		Short: "List the built-in scenes",
		Run: func(cmd *cobra.Command, args []string) {
			names := make([]string, 0, len(scenes))
			for name := range scenes {
				names = append(names, name)
			}
			sort.Strings(names)

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, name := range names {
				fmt.Fprintf(tw, "%s\t%s\n", name, scenes[name].description)
			}
			tw.Flush()
		},
	}
}

func printBodies(world *bedrock.World) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tPOSITION\tVELOCITY\tSTATE")

	for _, body := range world.Bodies {
		state := "awake"
		if body.IsSleeping {
			state = "asleep"
		}
		fmt.Fprintf(tw, "%d\t%s\t(%.3f, %.3f, %.3f)\t%.3f\t%s\n",
			body.ID, bodyTypeName(body.BodyType),
			body.Transform.Position.X(), body.Transform.Position.Y(), body.Transform.Position.Z(),
			body.Velocity.Len(), state)
	}
	tw.Flush()
}

func bodyTypeName(t actor.BodyType) string {
	switch t {
	case actor.BodyTypeStatic:
		return "static"
	case actor.BodyTypeKinematic:
		return "kinematic"
	}
	return "dynamic"
}
