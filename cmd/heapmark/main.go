// ABOUTME: Command line entry point for heapmark
// ABOUTME: Loads a heap description, runs marking cycles and reports what survived

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prateek/heapmark"
	"github.com/prateek/heapmark/config"
	"github.com/prateek/heapmark/graph"
	"github.com/prateek/heapmark/heap"
	"github.com/prateek/heapmark/heapdump"
	"github.com/prateek/heapmark/marking"
	"github.com/prateek/heapmark/render"
)

// errUnsound is returned when the marked set differs from reachability
var errUnsound = errors.New("marking disagrees with reachability")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "heapmark:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("heapmark", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "YAML configuration `file`")
		heapPath   = fs.String("heap", "", "heap description `file` (JSON or YAML)")
		pngPath    = fs.String("png", "", "write the marked heap to this PNG `file`")
		why        = fs.String("why", "", "comma separated object `ids` to explain")
		trace      = fs.Bool("trace", false, "log every concurrent marking run")
		cycles     = fs.Int("cycles", 1, "number of marking cycles to run")
		version    = fs.Bool("version", false, "print the version and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *version {
		fmt.Fprintln(stdout, "heapmark", heapmark.Version)
		return nil
	}
	if *heapPath == "" {
		fs.Usage()
		return errors.New("-heap is required")
	}
	if *cycles < 1 {
		return fmt.Errorf("-cycles must be at least 1, got %d", *cycles)
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return err
	}
	if *trace {
		cfg.Marking.Trace = true
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	snap, err := openHeap(*heapPath)
	if err != nil {
		return err
	}
	h := snap.Heap
	fmt.Fprintf(stdout, "heap: %d objects, %d roots\n", h.NumObjects(), len(h.Roots()))

	platform := marking.NewPoolPlatform(1)
	defer platform.Shutdown()
	collector := marking.NewCollector(h, platform, cfg.MarkingConfig(logger))
	defer collector.Shutdown()

	for i := 1; i <= *cycles; i++ {
		stats := collector.Collect(nil)
		printCycle(stdout, i, stats)
	}

	g := graph.FromHeap(h)
	if err := report(stdout, snap, g, collector.Bitmap()); err != nil {
		return err
	}

	if *why != "" {
		if err := explain(stdout, snap, g, strings.Split(*why, ",")); err != nil {
			return err
		}
	}

	if *pngPath != "" {
		opts := render.Options{
			Width:  cfg.Render.Width,
			Height: cfg.Render.Height,
			Title:  fmt.Sprintf("%s after %d cycle(s)", *heapPath, *cycles),
			Label:  func(o *heap.Object) string { return snap.Name(o.Address()) },
			Edges:  true,
		}
		if err := render.SavePNG(*pngPath, h, collector.Bitmap(), opts); err != nil {
			return fmt.Errorf("failed to write %s: %w", *pngPath, err)
		}
		logger.Info("wrote heap image", "path", *pngPath)
	}
	return nil
}

func openHeap(path string) (*heapdump.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	snap, err := heapdump.Open(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return snap, nil
}

func printCycle(w io.Writer, n int, s marking.CycleStats) {
	fmt.Fprintf(w, "cycle %d: %d roots, concurrent %d bytes (%d objects, %d bailouts), finished %d bytes (%d bailouts drained)\n",
		n, s.Roots, s.Concurrent.BytesMarked, s.Concurrent.Objects, s.Concurrent.Bailouts,
		s.FinishedBytes, s.BailoutsDrained)
	fmt.Fprintf(w, "cycle %d: live %d objects, %d bytes in %s\n", n, s.LiveObjects, s.LiveBytes, s.Duration)
}

// report lists the garbage and checks it against reachability
func report(w io.Writer, snap *heapdump.Snapshot, g graph.Graph, b marking.Bitmap) error {
	dead := graph.Unreachable(g, true)
	fmt.Fprintf(w, "unreachable: %d objects\n", len(dead))
	for _, id := range dead {
		obj := g.GetObject(id)
		fmt.Fprintf(w, "  %s (%s, %d bytes)\n", snap.Name(id.Address()), obj.Type, obj.Size)
	}

	unreachable := make(map[graph.ObjID]bool, len(dead))
	for _, id := range dead {
		unreachable[id] = true
	}
	var wrong []string
	snap.Heap.ForEachObject(func(o *heap.Object) {
		if marking.IsBlack(b, o) == unreachable[graph.IDOf(o.Address())] {
			wrong = append(wrong, fmt.Sprintf("%s is %s", snap.Name(o.Address()), b.ColorOf(o)))
		}
	})
	if len(wrong) > 0 {
		return fmt.Errorf("%w: %s", errUnsound, strings.Join(wrong, "; "))
	}
	return nil
}

// explain prints the retaining paths of each requested object
func explain(w io.Writer, snap *heapdump.Snapshot, g graph.Graph, ids []string) error {
	const maxPaths = 3
	for _, id := range ids {
		id = strings.TrimSpace(id)
		obj := snap.Object(id)
		if obj == nil {
			return fmt.Errorf("-why %q: %w", id, heapdump.ErrDanglingRef)
		}
		paths := graph.PathsToRoots(g, graph.IDOf(obj.Address()), maxPaths)
		if len(paths) == 0 {
			fmt.Fprintf(w, "why %s: not retained by a strong path\n", id)
			continue
		}
		fmt.Fprintf(w, "why %s:\n", id)
		for _, p := range paths {
			names := make([]string, len(p.IDs))
			for i, pid := range p.IDs {
				names[i] = snap.Name(pid.Address())
			}
			fmt.Fprintf(w, "  %s\n", strings.Join(names, " <- "))
		}
	}
	return nil
}
