/*package beamio reads initial particle distributions from column text files.
A beam file is a plain whitespace-separated table, one particle per line,
with '#' comments. By default the columns are

  x px y py zeta delta

in that order; a comment of the form "# columns: x y delta" anywhere before
the first data line renames and reorders them. Coordinates the file does not
provide start at zero.*/
package beamio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/accelsim/ringtrack/lib/particles"
)

var defaultColumns = []string{"x", "px", "y", "py", "zeta", "delta"}

var knownColumns = map[string]bool{
	"x": true, "px": true, "y": true, "py": true,
	"zeta": true, "delta": true, "s": true,
}

// Read parses a beam file and builds an ensemble sized to the number of
// particle lines, all alive, with the given reference beta.
func Read(r io.Reader, beta0 float64) (*particles.Ensemble, error) {
	cols := defaultColumns
	rows := [][]float64{}

	sc := bufio.NewScanner(r)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := sc.Text()

		if i := strings.IndexByte(line, '#'); i >= 0 {
			comment := strings.TrimSpace(line[i+1:])
			line = line[:i]
			if rest, ok := strings.CutPrefix(comment, "columns:"); ok {
				if len(rows) > 0 {
					return nil, fmt.Errorf(
						"Line %d: the column header must come before the "+
							"first particle.", lineNum,
					)
				}
				cols = strings.Fields(rest)
				if err := checkColumns(cols, lineNum); err != nil {
					return nil, err
				}
			}
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(cols) {
			return nil, fmt.Errorf(
				"Line %d has %d values, but the file has %d columns (%s).",
				lineNum, len(fields), len(cols), strings.Join(cols, " "),
			)
		}

		row := make([]float64, len(fields))
		for j, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf(
					"Line %d, column '%s': '%s' is not a number.",
					lineNum, cols[j], field,
				)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("Could not read the beam file: %v.", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("The beam file contains no particles.")
	}

	e := particles.New(len(rows), beta0)
	targets := map[string][]float64{
		"x": e.X, "px": e.Px, "y": e.Y, "py": e.Py,
		"zeta": e.Zeta, "delta": e.Delta, "s": e.S,
	}
	for j, name := range cols {
		dst := targets[name]
		for i := range rows {
			dst[i] = rows[i][j]
		}
	}
	return e, nil
}

func checkColumns(cols []string, lineNum int) error {
	if len(cols) == 0 {
		return fmt.Errorf("Line %d: the column header is empty.", lineNum)
	}
	seen := map[string]bool{}
	for _, name := range cols {
		if !knownColumns[name] {
			return fmt.Errorf(
				"Line %d: '%s' is not a coordinate column. Valid columns "+
					"are 'x', 'px', 'y', 'py', 'zeta', 'delta', and 's'.",
				lineNum, name,
			)
		}
		if seen[name] {
			return fmt.Errorf(
				"Line %d: the column '%s' is given twice.", lineNum, name,
			)
		}
		seen[name] = true
	}
	return nil
}
