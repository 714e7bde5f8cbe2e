package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/accelsim/ringtrack/lib/beamio"
	"github.com/accelsim/ringtrack/lib/checkpoint"
	"github.com/accelsim/ringtrack/lib/config"
	"github.com/accelsim/ringtrack/lib/error"
	"github.com/accelsim/ringtrack/lib/lattice"
	"github.com/accelsim/ringtrack/lib/monitor"
	"github.com/accelsim/ringtrack/lib/particles"
	"github.com/accelsim/ringtrack/lib/seqfmt"
	"github.com/accelsim/ringtrack/lib/tracker"
)

func main() {
	if len(os.Args) < 3 {
		error.External(
			"Usage: ringtrack <mode> <config file> [checkpoint file]\n" +
				"Valid modes are 'check', 'track', and 'resume'.",
		)
	}
	mode, configFile := os.Args[1], os.Args[2]

	cfg, err := config.ReadFile(configFile)
	if err != nil {
		error.External("%v", err)
	}

	switch mode {
	case "check":
		Check(cfg)
	case "track":
		Track(cfg)
	case "resume":
		if len(os.Args) < 4 {
			error.External("The 'resume' mode needs a checkpoint file.")
		}
		Resume(cfg, os.Args[3])
	default:
		error.External(
			"You attempted to run ringtrack in the mode '%s', but the only "+
				"valid modes are 'check', 'track', and 'resume'.", mode,
		)
	}
}

// Check runs ringtrack's "check" mode, which tests for errors in the
// configuration and the lattice file without tracking anything.
func Check(cfg *config.File) {
	buildRun(cfg)
	fmt.Println("No errors detected.")
}

// Track runs ringtrack's "track" mode: build the tracker and the beam, run
// the configured request, and write the monitor recording (or, if a
// collective element held, a resumable session checkpoint).
func Track(cfg *config.File) {
	trk, e := buildRun(cfg)

	opts := trackOptions(cfg)
	sess, err := trk.Track(e, opts)
	if err != nil {
		error.External("%v", err)
	}

	if sess != nil {
		writeSessionCheckpoint(cfg.Track.Output, sess)
		turn, segment := sess.Position()
		fmt.Printf("Run held at turn %d, segment %d; session written to %s.\n",
			turn, segment, cfg.Track.Output)
		return
	}

	report(cfg, trk)
}

// Resume runs ringtrack's "resume" mode: load a session checkpoint, rebuild
// the session against a freshly built tracker over the same lattice, and
// continue the run.
func Resume(cfg *config.File, checkpointFile string) {
	trk, _ := buildRun(cfg)

	f, err := os.Open(checkpointFile)
	if err != nil {
		error.External("Could not open the checkpoint file: %v.", err)
	}
	st, err := checkpoint.LoadSession(f)
	f.Close()
	if err != nil {
		error.External("%v", err)
	}

	sess, err := trk.Restore(st)
	if err != nil {
		error.External("%v", err)
	}

	sess, err = trk.Resume(sess)
	if err != nil {
		error.External("%v", err)
	}
	if sess != nil {
		writeSessionCheckpoint(cfg.Track.Output, sess)
		fmt.Printf("Run held again; session written to %s.\n", cfg.Track.Output)
		return
	}

	report(cfg, trk)
}

// buildRun loads the lattice, builds the tracker, and generates the initial
// beam from the [beam] section. Failures exit through the error package.
func buildRun(cfg *config.File) (*tracker.Tracker, *particles.Ensemble) {
	f, err := os.Open(cfg.Track.Lattice)
	if err != nil {
		error.External("Could not open the lattice file: %v.", err)
	}
	defer f.Close()

	line, err := lattice.Load(f)
	if err != nil {
		error.External("%v", err)
	}

	trk, err := tracker.New(line)
	if err != nil {
		error.External("%v", err)
	}
	trk.ResetSAtEndTurn = cfg.Track.ResetS
	trk.EnableHold = true
	if cfg.Track.Threads > 0 {
		trk.Kernel().Threads = cfg.Track.Threads
	}
	if cfg.Time.Enable {
		trk.TimeVars = &tracker.TimeVars{
			Enabled:  true,
			T0:       cfg.Time.T0,
			DtUpdate: cfg.Time.DtUpdate,
		}
	}

	return trk, buildBeam(cfg)
}

// buildBeam reads the initial distribution from the configured beam file, or
// generates a Gaussian one when no file is given.
func buildBeam(cfg *config.File) *particles.Ensemble {
	if cfg.Beam.File != "" {
		f, err := os.Open(cfg.Beam.File)
		if err != nil {
			error.External("Could not open the beam file: %v.", err)
		}
		defer f.Close()
		e, err := beamio.Read(f, cfg.Beam.Beta0)
		if err != nil {
			error.External("%v", err)
		}
		return e
	}

	rng := rand.New(rand.NewSource(cfg.Beam.Seed))
	e := particles.New(cfg.Beam.Particles, cfg.Beam.Beta0)
	for i := 0; i < e.Capacity; i++ {
		e.X[i] = cfg.Beam.SigmaX * rng.NormFloat64()
		e.Y[i] = cfg.Beam.SigmaY * rng.NormFloat64()
	}
	return e
}

func trackOptions(cfg *config.File) tracker.Options {
	opts := tracker.Options{
		EleStart:    cfg.Track.StartElement,
		EleStop:     cfg.Track.StopElement,
		NumElements: cfg.Track.NumElements,
		Backtrack:   cfg.Track.Backtrack,
		Time:        true,
	}
	if cfg.Track.NumElements == 0 {
		opts.NumTurns = cfg.Track.Turns
	}
	if cfg.Track.Monitor {
		opts.MonitorMode = monitor.PerTurn
	}
	return opts
}

func writeSessionCheckpoint(path string, sess *tracker.Session) {
	if path == "" {
		error.External(
			"A collective element held, but the [track] section has no " +
				"'output' path to write the session to.",
		)
	}
	f, err := os.Create(path)
	if err != nil {
		error.External("Could not create the checkpoint file: %v.", err)
	}
	defer f.Close()
	if err := checkpoint.SaveSession(f, sess.State()); err != nil {
		error.External("%v", err)
	}
}

func report(cfg *config.File, trk *tracker.Tracker) {
	fmt.Printf("Tracking finished in %v.\n", trk.TimeLastTrack)

	rec := trk.RecordLastTrack
	if rec == nil {
		return
	}

	var keep map[int]bool
	if cfg.Track.ReportTurns != "" {
		turns, err := seqfmt.Expand(cfg.Track.ReportTurns)
		if err != nil {
			error.External("%v", err)
		}
		keep = map[int]bool{}
		for _, turn := range turns {
			keep[turn] = true
		}
	}

	for _, st := range rec.Stats() {
		if keep != nil && !keep[st.Turn] {
			continue
		}
		fmt.Printf(
			"turn %4d: alive %6d  <x> % .3e  sig_x % .3e  <y> % .3e  sig_y % .3e\n",
			st.Turn, st.NumAlive, st.MeanX, st.StdX, st.MeanY, st.StdY,
		)
	}

	if cfg.Track.Output != "" {
		f, err := os.Create(cfg.Track.Output)
		if err != nil {
			error.External("Could not create the output file: %v.", err)
		}
		defer f.Close()
		if err := checkpoint.SaveMonitor(f, rec.Snapshot()); err != nil {
			error.External("%v", err)
		}
		fmt.Printf("Monitor recording written to %s.\n", cfg.Track.Output)
	}
}
