// Package assert holds internal consistency checks that are compiled in only
// with the magtrack_debug build tag.
package assert

import "fmt"

// Failure is the panic value raised by a failed check.
type Failure struct {
	Kind    string
	Message string
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s failed: %s", f.Kind, f.Message)
}

// Expect checks a precondition.
func Expect(cond bool, format string, args ...any) {
	if Enabled && !cond {
		panic(Failure{Kind: "precondition", Message: fmt.Sprintf(format, args...)})
	}
}

// Ensure checks a postcondition.
func Ensure(cond bool, format string, args ...any) {
	if Enabled && !cond {
		panic(Failure{Kind: "postcondition", Message: fmt.Sprintf(format, args...)})
	}
}

// That checks an internal invariant.
func That(cond bool, format string, args ...any) {
	if Enabled && !cond {
		panic(Failure{Kind: "assertion", Message: fmt.Sprintf(format, args...)})
	}
}
