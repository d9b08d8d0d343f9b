// Package classify turns task outcomes and the files a test binary left
// behind into a single verdict per binary.
package classify

// Category is the verdict class of one test binary.
type Category string

// Categories in precedence order, most severe first.
const (
	Interrupted Category = "INTERRUPTED"
	Fail        Category = "FAIL"
	Timeout     Category = "TIMEOUT"
	CoreDump    Category = "CORE-DUMP"
	Abort       Category = "ABORT"
	NonZeroExit Category = "NONZERO-EXIT"
	MemError    Category = "MEM-ERROR"
	MemLeak     Category = "MEM-LEAK"
	Pass        Category = "PASS"
)

// Categories lists every category in precedence order.
var Categories = []Category{Interrupted, Fail, Timeout, CoreDump, Abort, NonZeroExit, MemError, MemLeak, Pass}

// Failed reports whether the category should fail the run.
func (c Category) Failed() bool {
	return c != Pass
}

func (c Category) String() string {
	return string(c)
}
