package types

import "fmt"

// Warning records a per-file problem that was skipped rather than failing the build
type Warning struct {
	Path   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Reason)
}
