package ops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/javajack/gridcore"
	"github.com/javajack/gridcore/circular"
	"github.com/javajack/gridcore/engine"
)

// DefaultComputeTimeout bounds one compute operation's cycle scan plus
// evaluation pass.
const DefaultComputeTimeout = 30 * time.Second

// newComputer builds the default ComputeFunc: pre-flight cycle scan, then
// evaluation on an isolated worker under the deadline. Tests and the
// simulation layer substitute their own via WithComputer.
func newComputer(timeout time.Duration) ComputeFunc {
	return func(wb *gridcore.Workbook, provenance string) (int, []string, error) {
		res, det, err := circular.ComputeWithTimeout(context.Background(), wb, timeout,
			engine.WithProvenance(provenance))
		if err != nil {
			if det != nil && det.HasCycles {
				chains := make([]string, 0, len(det.Cycles))
				for _, c := range det.Cycles {
					chains = append(chains, strings.Join(c.Chain, " -> "))
				}
				return 0, nil, fmt.Errorf("%w: %s", err, strings.Join(chains, "; "))
			}
			return 0, nil, err
		}
		msgs := make([]string, 0, len(res.Errors))
		for _, ce := range res.Errors {
			msgs = append(msgs, ce.String())
		}
		return res.UpdatedCells, msgs, nil
	}
}
