// Package metric computes the sinphase stability metric.
//
// sinphase = (present_artifact_count × passed) / (total × 10)
//
// Measure keeps the exact integer ratio. Tier bands and the threshold gate
// compare against Ratio.Exact, so a value just under a boundary is never
// rounded across it. Compute rounds half-up to four decimal places for
// reports, the ledger and the governance vector.
package metric

import (
	"fmt"
	"strconv"

	"github.com/roach88/govtag/internal/model"
)

// Precision is the number of decimal places sinphase is rounded to.
const Precision = 4

const scale = 10000 // 10^Precision

// Sinphase is the computed stability metric. Policy range is [0,1] but the
// formula is unbounded above when more than ten artifacts are declared.
type Sinphase float64

// String renders the metric with Precision decimals.
func (s Sinphase) String() string {
	return strconv.FormatFloat(float64(s), 'f', Precision, 64)
}

// Ratio is sinphase as the exact fraction Num/Den.
type Ratio struct {
	Num int64
	Den int64
}

// Exact returns Num/Den as the nearest float64. Use it for comparisons.
func (r Ratio) Exact() float64 {
	return float64(r.Num) / float64(r.Den)
}

// Rounded returns the ratio rounded half-up to Precision decimals.
func (r Ratio) Rounded() Sinphase {
	q := (r.Num*2*scale + r.Den) / (2 * r.Den)
	return Sinphase(float64(q) / scale)
}

// Measure returns the exact sinphase ratio for the given artifact count and
// test summary.
//
// Returns NO_TEST_DATA when total is zero and TEST_SUMMARY_PARSE_ERROR when
// the summary violates 0 <= passed <= total.
func Measure(presentCount int, summary model.TestSummary) (Ratio, error) {
	if presentCount < 0 {
		return Ratio{}, fmt.Errorf("metric: negative artifact count %d", presentCount)
	}
	if summary.Total == 0 {
		return Ratio{}, model.NewError(model.ErrCodeNoTestData, "test summary has total = 0; cannot compute sinphase").
			WithDetail("passed", strconv.Itoa(summary.Passed)).
			WithDetail("total", "0")
	}
	if err := summary.Validate(); err != nil {
		return Ratio{}, err
	}
	return Ratio{
		Num: int64(presentCount) * int64(summary.Passed),
		Den: int64(summary.Total) * 10,
	}, nil
}

// Compute returns sinphase rounded to Precision decimals.
func Compute(presentCount int, summary model.TestSummary) (Sinphase, error) {
	r, err := Measure(presentCount, summary)
	if err != nil {
		return 0, err
	}
	return r.Rounded(), nil
}
