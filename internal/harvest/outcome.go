package harvest

import "fmt"

// Stage names the step at which an item was dropped.
type Stage string

// Pipeline stages.
const (
	StageDispatch Stage = "dispatch"
	StageFetch    Stage = "fetch"
	StageAnalyze  Stage = "analyze"
	StageStore    Stage = "store"
	StagePanic    Stage = "panic"
)

// OutcomeKind classifies how a worker finished an item.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeStored    OutcomeKind = "stored"
	OutcomeDuplicate OutcomeKind = "duplicate"
	OutcomeDropped   OutcomeKind = "dropped"
)

// Outcome is the explicit per-item result interpreted by the worker loop.
type Outcome struct {
	Kind    OutcomeKind
	Stage   Stage
	Err     error
	StoreID int64
}

// Stored reports a successful store.
func Stored(id int64) Outcome {
	return Outcome{Kind: OutcomeStored, StoreID: id}
}

// Duplicate reports that the Store already held the article.
func Duplicate(id int64) Outcome {
	return Outcome{Kind: OutcomeDuplicate, StoreID: id}
}

// Dropped reports a terminal per-item failure at stage.
func Dropped(stage Stage, err error) Outcome {
	return Outcome{Kind: OutcomeDropped, Stage: stage, Err: err}
}

// IsDropped reports whether the item was dropped.
func (o Outcome) IsDropped() bool {
	return o.Kind == OutcomeDropped
}

func (o Outcome) String() string {
	if o.Kind == OutcomeDropped {
		return fmt.Sprintf("dropped at %s: %v", o.Stage, o.Err)
	}
	return string(o.Kind)
}
