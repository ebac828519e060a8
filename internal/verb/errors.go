package verb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownVerb is returned when a verb name has no registration.
var ErrUnknownVerb = errors.New("unknown verb")

// ArgErrorKind classifies an argument problem.
type ArgErrorKind int

const (
	ArgMissing ArgErrorKind = iota
	ArgUnknown
	ArgInvalid
)

// ArgError reports a verb argument that does not fit the verb's signature.
// Missing arguments are reported together: Args lists every missing key in
// sorted order and Arg is the first of them.
type ArgError struct {
	Kind    ArgErrorKind
	Verb    string
	Arg     string
	Args    []string
	Message string
}

func (e *ArgError) Error() string {
	if len(e.Args) > 1 {
		quoted := make([]string, len(e.Args))
		for i, a := range e.Args {
			quoted[i] = strconv.Quote(a)
		}
		return fmt.Sprintf("%s: arguments %s: %s", e.Verb, strings.Join(quoted, ", "), e.Message)
	}
	return fmt.Sprintf("%s: argument %q: %s", e.Verb, e.Arg, e.Message)
}
