// Package runfile reads topic files and writes ranked runs in the
// six-column evaluation format.
package runfile

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"ranker/internal/domain"
)

const (
	DefaultPrecision = 4
	DefaultRunTag    = "myname"
)

// Formatter renders result lines as
// "<queryId> Q0 <name> <rank> <score> <runTag>".
type Formatter struct {
	precision int
	runTag    string
}

func NewFormatter(precision int, runTag string) *Formatter {
	if precision < 0 {
		precision = DefaultPrecision
	}
	if runTag == "" {
		runTag = DefaultRunTag
	}
	return &Formatter{precision: precision, runTag: runTag}
}

// Line formats one result; rank is 0-based.
func (f *Formatter) Line(queryID string, rank int, name string, score float64) string {
	return fmt.Sprintf("%s Q0 %s %d %s %s", queryID, name, rank, FormatScore(score, f.precision), f.runTag)
}

// Lines formats results, which must already be in rank order.
func (f *Formatter) Lines(queryID string, results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = f.Line(queryID, i, r.Name, r.Score)
	}
	return out
}

// FormatScore renders score with exactly precision fractional digits,
// rounding half up on the shortest decimal form of the value. Binary
// rounding would turn 0.00005 into 0.0000.
func FormatScore(score float64, precision int) string {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return strconv.FormatFloat(score, 'f', precision, 64)
	}

	intPart, frac, _ := strings.Cut(strconv.FormatFloat(math.Abs(score), 'f', -1, 64), ".")
	if len(frac) <= precision {
		frac += strings.Repeat("0", precision-len(frac))
	} else {
		digits := []byte(intPart + frac[:precision])
		if frac[precision] >= '5' {
			digits = incrementDecimal(digits)
		}
		intPart = string(digits[:len(digits)-precision])
		frac = string(digits[len(digits)-precision:])
	}

	out := intPart
	if precision > 0 {
		out += "." + frac
	}
	if score < 0 && strings.Trim(out, "0.") != "" {
		out = "-" + out
	}
	return out
}

func incrementDecimal(d []byte) []byte {
	for i := len(d) - 1; i >= 0; i-- {
		if d[i] < '9' {
			d[i]++
			return d
		}
		d[i] = '0'
	}
	return append([]byte{'1'}, d...)
}
