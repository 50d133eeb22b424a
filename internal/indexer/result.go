package indexer

import (
	"time"

	"github.com/dshills/codeindex/pkg/types"
)

// State is a step of the index state machine
type State string

const (
	StateIdle              State = "idle"
	StateLoadSnapshot      State = "load_snapshot"
	StateBuildTree         State = "build_tree"
	StateDiff              State = "diff"
	StateChunkChangedFiles State = "chunk_changed_files"
	StateObfuscate         State = "obfuscate_if_enabled"
	StateEmitChunks        State = "emit_chunks"
	StatePersistSnapshot   State = "persist_snapshot"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// Transition records one state change of a run
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Result describes one index run
type Result struct {
	BuildID     string
	Collection  string
	State       State
	Transitions []Transition

	Changes     *types.ChangeSet
	NoChanges   bool // prior snapshot matched; nothing was chunked or emitted
	FullRebuild bool // no usable prior snapshot, or a full rebuild was forced
	RootHash    types.Digest

	FilesChunked  int
	ChunksEmitted int
	Batches       int
	Warnings      []types.Warning

	// Stale is set when the sink may hold output newer than the persisted
	// snapshot, i.e. the run failed after emission started
	Stale    bool
	Duration time.Duration
}

// States returns the sequence of states the run passed through
func (r *Result) States() []State {
	out := []State{StateIdle}
	for _, t := range r.Transitions {
		out = append(out, t.To)
	}
	return out
}
