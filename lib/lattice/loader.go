package lattice

/* This file parses beam-line description files. The format is a YAML list
of elements with a type tag; only element kinds that are fully described by
scalar parameters can be loaded (a PortExchange needs live channels and has
to be inserted programmatically). */

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

type lineFile struct {
	Elements []elementSpec `yaml:"elements"`
}

type elementSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	Length    float64   `yaml:"length"`
	Knl       []float64 `yaml:"knl"`
	Ksl       []float64 `yaml:"ksl"`
	Voltage   float64   `yaml:"voltage"`
	Frequency float64   `yaml:"frequency"`
	Lag       float64   `yaml:"lag"`
	PRef      float64   `yaml:"pref"`
	Matrix    []float64 `yaml:"matrix"`
	MinX      float64   `yaml:"min_x"`
	MaxX      float64   `yaml:"max_x"`
	MinY      float64   `yaml:"min_y"`
	MaxY      float64   `yaml:"max_y"`
	GainX     float64   `yaml:"gain_x"`
	GainY     float64   `yaml:"gain_y"`
}

// Load reads a YAML beam-line description and builds a Line from it.
func Load(r io.Reader) (*Line, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Could not read the lattice file: %v.", err)
	}

	file := lineFile{}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("Could not parse the lattice file: %v.", err)
	}
	if len(file.Elements) == 0 {
		return nil, fmt.Errorf("The lattice file contains no elements.")
	}

	elements := make([]Element, len(file.Elements))
	names := make([]string, len(file.Elements))
	for i, spec := range file.Elements {
		if spec.Name == "" {
			return nil, fmt.Errorf("Element %d has no name.", i)
		}
		el, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("Element '%s': %v", spec.Name, err)
		}
		elements[i] = el
		names[i] = spec.Name
	}

	return NewLine(elements, names)
}

func (spec elementSpec) build() (Element, error) {
	switch spec.Type {
	case "drift":
		return Drift{L: spec.Length}, nil
	case "multipole":
		return Multipole{Knl: spec.Knl, Ksl: spec.Ksl}, nil
	case "cavity":
		if spec.PRef == 0 {
			return nil, fmt.Errorf("a cavity needs a non-zero 'pref'.")
		}
		return Cavity{
			Voltage:   spec.Voltage,
			Frequency: spec.Frequency,
			Lag:       spec.Lag,
			PRef:      spec.PRef,
		}, nil
	case "linear_map":
		if len(spec.Matrix) != 36 {
			return nil, fmt.Errorf(
				"a linear map needs a 36-entry 'matrix', got %d entries.",
				len(spec.Matrix),
			)
		}
		return NewLinearMap(spec.Length, mat.NewDense(6, 6, spec.Matrix))
	case "limit_rect":
		return LimitRect{
			MinX: spec.MinX, MaxX: spec.MaxX,
			MinY: spec.MinY, MaxY: spec.MaxY,
		}, nil
	case "damper":
		return &Damper{GainX: spec.GainX, GainY: spec.GainY}, nil
	case "marker":
		return Marker{}, nil
	default:
		return nil, fmt.Errorf(
			"'%s' is not a known element type. Valid types are 'drift', "+
				"'multipole', 'cavity', 'linear_map', 'limit_rect', 'damper', "+
				"and 'marker'.", spec.Type,
		)
	}
}
