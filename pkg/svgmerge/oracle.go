package svgmerge

import (
	"fmt"
	"sync/atomic"
	"time"
)

// IDOracle hands out identifiers that are unique within some identifier
// space. base is the identifier being replaced; oracles may use it as a
// readable hint or ignore it.
type IDOracle interface {
	UniqueID(base string) string
}

// OracleFunc adapts a function to IDOracle.
type OracleFunc func(base string) string

// UniqueID implements IDOracle.
func (f OracleFunc) UniqueID(base string) string { return f(base) }

// idCounter is shared by every CounterOracle in the process.
var idCounter atomic.Uint64

// CounterOracle combines a render timestamp with a process-wide
// monotonically increasing counter. Identifiers have the form
// "<prefix>-<stamp>-<n>" and never repeat within a process.
type CounterOracle struct {
	prefix string
	stamp  int64
}

// NewCounterOracle creates an oracle stamped with the current time.
// prefix must start with a letter or underscore so results are valid XML ids.
func NewCounterOracle(prefix string) *CounterOracle {
	return &CounterOracle{prefix: prefix, stamp: time.Now().UnixMilli()}
}

// UniqueID implements IDOracle.
func (o *CounterOracle) UniqueID(string) string {
	return fmt.Sprintf("%s-%d-%d", o.prefix, o.stamp, idCounter.Add(1))
}
