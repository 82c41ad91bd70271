// Package progress defines the events emitted by the scrape pipeline and a
// hub that fans them out to sinks.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Kind denotes the milestone an Event represents.
type Kind string

// Supported event kinds.
const (
	KindRunStart   Kind = "RUN_START"
	KindRunDone    Kind = "RUN_DONE"
	KindRunError   Kind = "RUN_ERROR"
	KindStageStart Kind = "STAGE_START"
	KindStageDone  Kind = "STAGE_DONE"
	KindFetchStart Kind = "FETCH_START"
	KindFetchDone  Kind = "FETCH_DONE"
)

// Stage names the pipeline phase an event belongs to.
type Stage string

// Pipeline stages.
const (
	StageSearchPages     Stage = "search_pages"
	StageCourseDetails   Stage = "course_details"
	StageInstructorPages Stage = "instructor_pages"
)

// FetchStatus classifies a completed fetch.
type FetchStatus string

// Fetch outcomes tracked by sinks.
const (
	FetchOK     FetchStatus = "ok"
	FetchFailed FetchStatus = "failed"
)

// Event captures a single pipeline milestone.
type Event struct {
	// RunID identifies the pipeline run the event belongs to.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Kind is the milestone type.
	Kind Kind
	// Stage scopes stage and fetch events to a pipeline phase.
	Stage Stage
	// URL is set on fetch events.
	URL string
	// Index is the slot position of a fetch within its batch.
	Index int
	// Status classifies fetch completions.
	Status FetchStatus
	// Count carries a record count for stage completions.
	Count int
	// Dur is the elapsed time for completions.
	Dur time.Duration
	// Note holds low-volume context such as error text.
	Note string
}

// Validate performs coarse validation before an event enters the hub.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindRunStart, KindRunDone, KindRunError:
	case KindStageStart, KindStageDone, KindFetchStart:
		if e.Stage == "" {
			return fmt.Errorf("%s requires a stage", e.Kind)
		}
	case KindFetchDone:
		if e.Stage == "" {
			return fmt.Errorf("%s requires a stage", e.Kind)
		}
		if e.Status == "" {
			return errors.New("fetch done requires a status")
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
