/*
Package oracdr is a data-reduction pipeline engine: it compiles observing
recipes written in a small primitive language and executes them against
external computation engines over message protocols.

It separates the reduction logic (recipes and primitives on disk) from the
execution state (one RecipeContext per observation) and from the side-effects
(engine processes spoken to over adam or MCP stdio protocols). The Pipeline
is an explicit per-process object; nothing lives in package-level state, so
one process can run several pipelines side by side.

# Concept

A recipe names the reduction steps for one kind of observation; each step is
a primitive, a source file that can invoke further primitives, dispatch tasks
to engines, and check engine status. Sources are resolved through a layered
search path (explicit directories, environment override, instrument- and
mode-derived trees), macro-expanded, compiled once, and cached by path and
modification time. Engines launch lazily on first use and relaunch under a
fresh protocol identity after a death.

# Key Features

  - Layered source resolution: instrument-specific primitives shadow
    mode-specific ones, which shadow the general fallback.
  - Compile-once execution: units are cached and revalidated by mtime, so
    a recipe loop pays the expansion cost once.
  - Engine lifecycle management: lazy launch, liveness probes, and
    relaunch-on-next-use after an engine is presumed dead.
  - Classified failures: fatal compile/runtime errors, user aborts, engine
    deaths and ordinary task failures are distinct error values.

# Usage

Initialize a Pipeline, then feed it one frame per observation.

	package main

	import (
		"context"
		"log"

		"github.com/Starlink/ORAC-DR-sub007"
		"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
	)

	func main() {
		// Directory roots come from ORAC_DIR, ORAC_INSTRUMENT and friends.
		pipe, err := oracdr.New("SCUBA2",
			oracdr.WithEngineFile("engines.yaml"),
		)
		if err != nil {
			log.Fatal(err)
		}
		defer pipe.Close(context.Background())

		frame := domain.NewFrame("s20260825_00042.sdf")
		frame.Mode = domain.ModeImaging

		if err := pipe.RunRecipe(context.Background(), "REDUCE_SCAN", frame); err != nil {
			log.Fatal(err)
		}
	}

For batches, Runner drives the same loop over many files with progress
output and a keep-going policy.
*/
package oracdr
