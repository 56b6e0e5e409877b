package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	securingskies "github.com/rwiren/securingskies-platform"
)

// Replays a mission log through the engine and prints every asset mutation
// as it fuses. Usage: go run ./example/watch <mission.jsonl>
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: watch <mission.jsonl>")
	}

	cfg, err := securingskies.LoadConfig("./data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.Recorder.Enabled = false

	fanout := securingskies.NewFanout()
	go func() {
		for a := range fanout.Subscribe() {
			pos := "no fix"
			if a.HasPosition() {
				pos = fmt.Sprintf("%.5f,%.5f", *a.Latitude, *a.Longitude)
			}
			fmt.Printf("%-24s %-17s %s stale=%v\n", a.ID, a.Kind, pos, a.Stale)
		}
	}()

	rt, err := securingskies.NewRuntime(cfg,
		securingskies.WithCollector(securingskies.NewReplayCollector(securingskies.ReplayOptions{
			Path:           os.Args[1],
			Speed:          10,
			JumpToAirborne: true,
		})),
		securingskies.WithNotifier(fanout),
	)
	if err != nil {
		log.Fatalf("runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
