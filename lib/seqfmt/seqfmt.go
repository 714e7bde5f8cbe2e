/*package seqfmt implements the miniature sequence format used to pick out
turn numbers, e.g. in the report section of a run configuration:

  100
  0..100
  0..10 + 100
  0..100 - 63 - 10..20

A sequence format is a series of tokens joined by '+' and '-'. Each token is
either a single number or an inclusive range written as two numbers around
"..". Tokens after a '+' (or at the start) add numbers to the sequence,
tokens after a '-' remove them. Spaces around the operators are ignored.*/
package seqfmt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BigNumber caps the expanded sequence size; anything larger is assumed to
// be a malformed format string.
const BigNumber = 1 << 20

// Expand converts a sequence format string into a sorted slice of integers.
func Expand(format string) ([]int, error) {
	tok, err := tokenise(format)
	if err != nil {
		return nil, err
	}
	adds, subs, err := addsSubs(tok)
	if err != nil {
		return nil, err
	}

	m := map[int]bool{}
	for _, a := range adds {
		lo, hi := a.lo, a.hi
		if hi-lo+1 > BigNumber {
			return nil, fmt.Errorf(
				"The range %d..%d has %d elements, which is almost "+
					"certainly a bug.", lo, hi, hi-lo+1,
			)
		}
		for n := lo; n <= hi; n++ {
			if m[n] {
				return nil, fmt.Errorf(
					"The number %d is added more than once.", n,
				)
			}
			m[n] = true
		}
	}
	for _, s := range subs {
		for n := s.lo; n <= s.hi; n++ {
			if !m[n] {
				return nil, fmt.Errorf(
					"The number %d is removed without having been added.", n,
				)
			}
			delete(m, n)
		}
	}

	if len(m) > BigNumber {
		return nil, fmt.Errorf(
			"This sequence would have %d elements, which is almost "+
				"certainly a bug.", len(m),
		)
	}

	out := make([]int, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// span is one parsed token: an inclusive range of integers. Single numbers
// are stored as a one-element range.
type span struct {
	lo, hi int
}

func tokenise(format string) ([]string, error) {
	clean := strings.ReplaceAll(format, "+", " + ")
	clean = strings.ReplaceAll(clean, "-", " - ")

	tok := strings.Fields(clean)
	if len(tok) == 0 {
		return nil, fmt.Errorf("The format string is empty.")
	}
	return tok, nil
}

func addsSubs(tok []string) (adds, subs []span, err error) {
	start := 0
	if tok[0] != "+" && tok[0] != "-" {
		// The leading '+' may be dropped.
		s, err := parseToken(tok[0], 1)
		if err != nil {
			return nil, nil, err
		}
		adds = append(adds, s)
		start = 1
	}

	for i := start; i < len(tok); i += 2 {
		if tok[i] != "+" && tok[i] != "-" {
			return nil, nil, fmt.Errorf(
				"Element number %d, '%s', should be a '+' or '-', but isn't.",
				i+1, tok[i],
			)
		}
		if i+1 >= len(tok) {
			return nil, nil, fmt.Errorf(
				"The format string ends in a trailing '%s'.", tok[i],
			)
		}
		s, err := parseToken(tok[i+1], i+2)
		if err != nil {
			return nil, nil, err
		}
		if tok[i] == "+" {
			adds = append(adds, s)
		} else {
			subs = append(subs, s)
		}
	}
	return adds, subs, nil
}

func parseToken(tok string, position int) (span, error) {
	bounds := strings.Split(tok, "..")
	switch len(bounds) {
	case 1:
		n, err := strconv.Atoi(bounds[0])
		if err != nil {
			return span{}, fmt.Errorf(
				"Element number %d, '%s', is not an integer.", position, tok,
			)
		}
		return span{n, n}, nil
	case 2:
		lo, err1 := strconv.Atoi(bounds[0])
		hi, err2 := strconv.Atoi(bounds[1])
		if err1 != nil || err2 != nil {
			return span{}, fmt.Errorf(
				"Element number %d, '%s', is not a range of integers.",
				position, tok,
			)
		}
		if hi < lo {
			return span{}, fmt.Errorf(
				"Element number %d, '%s', has its lower bound above its "+
					"upper bound.", position, tok,
			)
		}
		return span{lo, hi}, nil
	}
	return span{}, fmt.Errorf(
		"Element number %d, '%s', has more than one '..'.", position, tok,
	)
}
