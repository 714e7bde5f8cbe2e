/*package checkpoint writes and reads compressed checkpoint files: held
tracking sessions and monitor recordings. The payload is gob-encoded and
zstd-compressed; a fixed magic number and version guard against feeding the
reader something else.*/
package checkpoint

import (
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/DataDog/zstd"

	"github.com/accelsim/ringtrack/lib/monitor"
	"github.com/accelsim/ringtrack/lib/tracker"
)

// Magic identifies ringtrack checkpoint streams.
const Magic uint64 = 0x72696e6774726b01

// Version is bumped on breaking changes to the payload layout.
const Version uint32 = 1

type header struct {
	Magic   uint64
	Version uint32
	Kind    uint32
}

const (
	kindSession uint32 = iota + 1
	kindMonitor
)

func writePayload(w io.Writer, kind uint32, v interface{}) error {
	hd := header{Magic: Magic, Version: Version, Kind: kind}
	if err := binary.Write(w, binary.LittleEndian, hd); err != nil {
		return fmt.Errorf("Could not write the checkpoint header: %v.", err)
	}

	zw := zstd.NewWriter(w)
	if err := gob.NewEncoder(zw).Encode(v); err != nil {
		zw.Close()
		return fmt.Errorf("Could not encode the checkpoint payload: %v.", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("Could not flush the checkpoint stream: %v.", err)
	}
	return nil
}

func readPayload(r io.Reader, kind uint32, v interface{}) error {
	hd := header{}
	if err := binary.Read(r, binary.LittleEndian, &hd); err != nil {
		return fmt.Errorf("Could not read the checkpoint header: %v.", err)
	}
	if hd.Magic != Magic {
		return fmt.Errorf(
			"The stream does not start with the checkpoint magic number "+
				"(got %#x).", hd.Magic,
		)
	}
	if hd.Version != Version {
		return fmt.Errorf(
			"The checkpoint has version %d, but this build reads version %d.",
			hd.Version, Version,
		)
	}
	if hd.Kind != kind {
		return fmt.Errorf(
			"The checkpoint holds payload kind %d, not the requested kind %d.",
			hd.Kind, kind,
		)
	}

	zr := zstd.NewReader(r)
	defer zr.Close()
	if err := gob.NewDecoder(zr).Decode(v); err != nil {
		return fmt.Errorf("Could not decode the checkpoint payload: %v.", err)
	}
	return nil
}

// SaveSession writes a held session's state to w.
func SaveSession(w io.Writer, st *tracker.SessionState) error {
	return writePayload(w, kindSession, st)
}

// LoadSession reads a held session's state from r.
func LoadSession(r io.Reader) (*tracker.SessionState, error) {
	st := &tracker.SessionState{}
	if err := readPayload(r, kindSession, st); err != nil {
		return nil, err
	}
	return st, nil
}

// SaveMonitor writes a recorder snapshot to w.
func SaveMonitor(w io.Writer, s *monitor.Snapshot) error {
	return writePayload(w, kindMonitor, s)
}

// LoadMonitor reads a recorder snapshot from r.
func LoadMonitor(r io.Reader) (*monitor.Snapshot, error) {
	s := &monitor.Snapshot{}
	if err := readPayload(r, kindMonitor, s); err != nil {
		return nil, err
	}
	return s, nil
}
