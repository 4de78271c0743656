// Command glidetrace replays recorded touch trajectories through the
// glidetype matching engine.
//
// It feeds the trace to the engine the way a keyboard would: one growing
// trajectory snapshot per touch event, so the incremental update path is
// exercised rather than a single batch call.
//
// Usage:
//
//	glidetrace [flags] <trace.json>
//
// Examples:
//
//	# Replay a gesture trace on the built-in QWERTY layout
//	glidetrace stroke.json
//
//	# Replay on a custom layout and keep the result in a trace database
//	glidetrace -layout azerty.json -db traces.db stroke.json
//
//	# List stored traces, then replay one of them
//	glidetrace -db traces.db -list
//	glidetrace -db traces.db -replay 3
//
//	# Re-run the replay whenever the layout file changes
//	glidetrace -layout azerty.json -watch stroke.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"glidetype/internal/config"
	"glidetype/internal/geometry"
	"glidetype/internal/layoutwatch"
	"glidetype/internal/logging"
	"glidetype/internal/touchstate"
	"glidetype/internal/tracestore"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts, code := parseFlags()
	if opts == nil {
		return code
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	applyFlagOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid config: %v\n", err)
		return 2
	}

	log, err := logging.New(cfg.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		return 1
	}
	defer log.Close()
	logging.SetDefault(log)

	var store *tracestore.Store
	if cfg.Storage.Path != "" {
		store, err = tracestore.Open(cfg.Storage.Path, cfg.Storage.BusyTimeoutMs, cfg.Storage.MaxConnections)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening trace store: %v\n", err)
			return 1
		}
		defer store.Close()
	}

	if opts.list {
		if store == nil {
			fmt.Fprintln(os.Stderr, "Error: -list requires -db")
			return 2
		}
		return listTraces(store)
	}

	trace, code := loadInput(opts, store)
	if trace == nil {
		return code
	}

	if opts.watch {
		return replayOnLayoutChanges(cfg, trace, store, log)
	}

	kb, err := loadLayout(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading layout: %v\n", err)
		return 1
	}
	return replay(cfg, kb, trace, store, log)
}

type options struct {
	configPath string
	layoutPath string
	dbPath     string
	gesture    bool
	gestureSet bool
	pointerID  int
	list       bool
	replayID   int64
	watch      bool
	logLevel   string
	traceFile  string
}

func parseFlags() (*options, int) {
	fs := flag.NewFlagSet("glidetrace", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "glidetrace - Replay touch trajectories through the matching engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <trace.json>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s stroke.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -layout azerty.json -db traces.db stroke.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -db traces.db -replay 3\n", os.Args[0])
	}
	opts := &options{}

	fs.StringVar(&opts.configPath, "config", "", "configuration file (TOML or YAML)")
	fs.StringVar(&opts.layoutPath, "layout", "", "keyboard layout file (default: built-in QWERTY)")
	fs.StringVar(&opts.dbPath, "db", "", "trace database for storing and replaying traces")
	gesture := fs.Bool("gesture", false, "treat the trace as a gesture stroke (default: from trace file)")
	fs.IntVar(&opts.pointerID, "pointer", -1, "pointer id override (default: from trace file)")
	fs.BoolVar(&opts.list, "list", false, "list stored traces and exit")
	fs.Int64Var(&opts.replayID, "replay", 0, "replay the stored trace with this id")
	fs.BoolVar(&opts.watch, "watch", false, "re-run the replay whenever the layout file changes")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level override: debug, info, warn, error")
	versionFlag := fs.Bool("version", false, "print version and exit")

	fs.Parse(os.Args[1:])

	if *versionFlag {
		fmt.Printf("glidetrace %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return nil, 0
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "gesture" {
			opts.gestureSet = true
		}
	})
	opts.gesture = *gesture

	if !opts.list && opts.replayID == 0 {
		if fs.NArg() < 1 {
			fmt.Fprintf(os.Stderr, "Error: trace file required\n\n")
			fs.Usage()
			return nil, 2
		}
		opts.traceFile = fs.Arg(0)
	}
	return opts, 0
}

func applyFlagOverrides(cfg *config.Config, opts *options) {
	if opts.layoutPath != "" {
		cfg.Layout.Path = opts.layoutPath
	}
	if opts.dbPath != "" {
		cfg.Storage.Path = opts.dbPath
	}
	if opts.watch {
		cfg.Layout.Watch = true
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
}

// traceFile is the on-disk JSON form of a recorded trajectory.
type traceFile struct {
	Name      string `json:"name"`
	Gesture   bool   `json:"gesture"`
	PointerID int    `json:"pointerId"`
	Points    []struct {
		Char string `json:"char,omitempty"`
		X    int    `json:"x"`
		Y    int    `json:"y"`
		T    int    `json:"t"`
	} `json:"points"`
}

func loadInput(opts *options, store *tracestore.Store) (*tracestore.Trace, int) {
	if opts.replayID != 0 {
		if store == nil {
			fmt.Fprintln(os.Stderr, "Error: -replay requires -db")
			return nil, 2
		}
		trace, err := store.Get(opts.replayID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading trace %d: %v\n", opts.replayID, err)
			return nil, 1
		}
		if trace == nil {
			fmt.Fprintf(os.Stderr, "Error: trace %d not found\n", opts.replayID)
			return nil, 1
		}
		overrideMode(trace, opts)
		return trace, 0
	}

	data, err := os.ReadFile(opts.traceFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading trace file: %v\n", err)
		return nil, 1
	}
	var tf traceFile
	if err := json.Unmarshal(data, &tf); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing trace file: %v\n", err)
		return nil, 1
	}

	trace := &tracestore.Trace{
		Name:       tf.Name,
		Gesture:    tf.Gesture,
		PointerID:  tf.PointerID,
		LayoutName: "",
	}
	if trace.Name == "" {
		trace.Name = opts.traceFile
	}
	for i, p := range tf.Points {
		code := geometry.NotACode
		for _, r := range p.Char {
			code = r
			break
		}
		trace.Points = append(trace.Points, tracestore.Point{
			Ordinal: i, Code: code, X: p.X, Y: p.Y, TimeMs: p.T,
		})
	}
	if len(trace.Points) == 0 {
		fmt.Fprintln(os.Stderr, "Error: trace has no points")
		return nil, 1
	}
	overrideMode(trace, opts)
	return trace, 0
}

func overrideMode(trace *tracestore.Trace, opts *options) {
	if opts.gestureSet {
		trace.Gesture = opts.gesture
	}
	if opts.pointerID >= 0 {
		trace.PointerID = opts.pointerID
	}
	if trace.Gesture && trace.PointerID == 0 {
		// Pointer 0 carries tap-mode proximity state; gestures replay on
		// a dedicated pointer.
		trace.PointerID = 1
	}
}

func loadLayout(cfg *config.Config) (*geometry.Keyboard, error) {
	if cfg.Layout.Path == "" {
		return geometry.QWERTY(), nil
	}
	return geometry.Load(cfg.Layout.Path)
}

func listTraces(store *tracestore.Store) int {
	summaries, err := store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing traces: %v\n", err)
		return 1
	}
	if len(summaries) == 0 {
		fmt.Println("no stored traces")
		return 0
	}
	for _, s := range summaries {
		mode := "tap"
		if s.Gesture {
			mode = "gesture"
		}
		fmt.Printf("%4d  %-8s %4d points  %-12s %-20s %s\n",
			s.ID, mode, s.PointCount, s.LayoutName, s.Name,
			time.Unix(0, s.CreatedNs).Format(time.RFC3339))
	}
	return 0
}

// replay feeds the trace to the engine one point at a time and prints the
// final match state.
func replay(cfg *config.Config, kb *geometry.Keyboard, trace *tracestore.Trace,
	store *tracestore.Store, log *logging.Logger) int {

	trace.LayoutName = kb.Name()
	traj := trace.Trajectory()
	state := touchstate.NewState(cfg.Tuning(), log.WithComponent("engine"))

	continuations := 0
	for n := 1; n <= traj.Size(); n++ {
		state.Initialize(trace.PointerID, cfg.Proximity.MaxPointToKeyLength, kb,
			prefix(traj, n), trace.Gesture)
		if state.Continued() {
			continuations++
		}
	}

	fmt.Printf("trace:     %s\n", trace.Name)
	fmt.Printf("layout:    %s\n", kb.Name())
	fmt.Printf("points:    %d raw, %d sampled, %d incremental updates\n",
		traj.Size(), state.SampledSize(), continuations)
	if state.SampledSize() > 0 {
		fmt.Printf("length:    %d\n", state.PathLength(state.SampledSize()-1))
	}

	var word string
	var score float64
	if trace.Gesture {
		word, score = state.MostProbableString()
		fmt.Printf("match:     %q (score %.3f)\n", word, score)
	} else {
		word = string(state.PrimaryInputWord())
		fmt.Printf("typed:     %q\n", word)
	}

	if store != nil {
		if err := saveResult(store, trace, word, score); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving trace: %v\n", err)
			return 1
		}
		fmt.Printf("stored:    trace %d\n", trace.ID)
	}
	return 0
}

func saveResult(store *tracestore.Store, trace *tracestore.Trace, word string, score float64) error {
	if trace.ID == 0 {
		if _, err := store.Save(trace); err != nil {
			return err
		}
	}
	return store.SetResult(trace.ID, word, score)
}

// replayOnLayoutChanges replays once, then again for every layout reload
// until interrupted.
func replayOnLayoutChanges(cfg *config.Config, trace *tracestore.Trace,
	store *tracestore.Store, log *logging.Logger) int {

	debounce := time.Duration(cfg.Layout.DebounceMs) * time.Millisecond
	w, err := layoutwatch.New(cfg.Layout.Path, debounce, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error watching layout: %v\n", err)
		return 1
	}
	kb, err := w.Start()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading layout: %v\n", err)
		return 1
	}
	defer w.Stop()

	if code := replay(cfg, kb, trace, store, log); code != 0 {
		return code
	}

	for {
		select {
		case kb, ok := <-w.Events():
			if !ok {
				return 0
			}
			fmt.Printf("\nlayout changed, replaying on %q\n", kb.Name())
			if code := replay(cfg, kb, trace, store, log); code != 0 {
				return code
			}
		case err, ok := <-w.Errors():
			if !ok {
				return 0
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
		}
	}
}

func prefix(traj *touchstate.Trajectory, n int) *touchstate.Trajectory {
	p := &touchstate.Trajectory{}
	if traj.Codes != nil {
		p.Codes = traj.Codes[:n]
	}
	if traj.Xs != nil {
		p.Xs = traj.Xs[:n]
		p.Ys = traj.Ys[:n]
	}
	if traj.Times != nil {
		p.Times = traj.Times[:n]
	}
	if traj.PointerIDs != nil {
		p.PointerIDs = traj.PointerIDs[:n]
	}
	return p
}
