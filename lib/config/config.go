/*package config parses ringtrack run configuration files. The format is
gcfg/ini: a [track] section for the tracking request, a [time] section for
time-dependent parameters, and a [beam] section describing the initial
particle distribution.*/
package config

import (
	"fmt"
	"os"

	"gopkg.in/gcfg.v1"

	"github.com/accelsim/ringtrack/lib/seqfmt"
)

// File is a parsed run configuration.
type File struct {
	Track struct {
		// Lattice is the path of the YAML beam-line description.
		Lattice string
		// Output is the path the monitor recording (or, on hold, the
		// session checkpoint) is written to.
		Output string

		Turns        int
		StartElement int
		StopElement  int
		NumElements  int

		Monitor   bool
		Backtrack bool
		ResetS    bool

		// ReportTurns is a sequence format (e.g. "0..100 - 63") selecting
		// which recorded turns the report prints. Empty prints all of them.
		ReportTurns string

		// Threads is the number of kernel lanes. -1 uses all cores.
		Threads int
	}

	Time struct {
		Enable   bool
		T0       float64
		DtUpdate float64
	}

	Beam struct {
		// File is the path of a column text file holding the initial
		// distribution. If empty, a Gaussian beam is generated instead.
		File string

		Particles int
		Beta0     float64
		SigmaX    float64
		SigmaY    float64
		Seed      int64
	}
}

func defaults() *File {
	f := &File{}
	f.Track.Turns = 1
	f.Track.Monitor = true
	f.Track.ResetS = true
	f.Track.Threads = -1
	f.Beam.Particles = 1000
	f.Beam.Beta0 = 1.0
	f.Beam.SigmaX = 1e-3
	f.Beam.SigmaY = 1e-3
	f.Beam.Seed = 1
	return f
}

// ReadFile parses the configuration file at path, applying defaults for
// everything the file leaves out.
func ReadFile(path string) (*File, error) {
	f := defaults()
	if err := gcfg.ReadFileInto(f, path); err != nil {
		return nil, fmt.Errorf(
			"Could not parse the configuration file '%s': %v", path, err,
		)
	}
	return f, f.check()
}

func (f *File) check() error {
	if f.Track.Lattice == "" {
		return fmt.Errorf("The [track] section needs a 'lattice' path.")
	}
	if _, err := os.Stat(f.Track.Lattice); err != nil {
		return fmt.Errorf(
			"The lattice file '%s' cannot be read: %v.", f.Track.Lattice, err,
		)
	}
	if f.Track.Turns < 1 {
		return fmt.Errorf(
			"The [track] section needs at least one turn, got %d.",
			f.Track.Turns,
		)
	}
	if f.Beam.File != "" {
		if _, err := os.Stat(f.Beam.File); err != nil {
			return fmt.Errorf(
				"The beam file '%s' cannot be read: %v.", f.Beam.File, err,
			)
		}
	} else if f.Beam.Particles < 1 {
		return fmt.Errorf(
			"The [beam] section needs at least one particle, got %d.",
			f.Beam.Particles,
		)
	}
	if f.Beam.Beta0 <= 0 || f.Beam.Beta0 > 1 {
		return fmt.Errorf(
			"The reference beta must be in (0, 1], got %g.", f.Beam.Beta0,
		)
	}
	if f.Track.ReportTurns != "" {
		if _, err := seqfmt.Expand(f.Track.ReportTurns); err != nil {
			return fmt.Errorf(
				"The 'ReportTurns' format '%s' is not valid: %v",
				f.Track.ReportTurns, err,
			)
		}
	}
	return nil
}
