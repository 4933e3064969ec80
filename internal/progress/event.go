// Package progress defines the lifecycle events emitted while analyses run.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageAnalysisStart Stage = "ANALYSIS_START"
	StageAnalysisDone  Stage = "ANALYSIS_DONE"
	StageAnalysisError Stage = "ANALYSIS_ERROR"
	StageFetchDone     Stage = "FETCH_DONE"
	StageSectionDone   Stage = "SECTION_DONE"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of one analysis run.
type Event struct {
	// SessionID identifies the run the event belongs to.
	SessionID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Site optionally scopes the event to a host label.
	Site string
	// URL is the analyzed page URL; it should not contain credentials.
	URL string
	// Section names the generated section for SECTION_DONE events.
	Section string
	// StatusClass groups the fetch HTTP response code.
	StatusClass StatusClass
	// Bytes carries the fetched markup size for FETCH_DONE events.
	Bytes int64
	// Dur captures execution latency for fetches, sections, and runs.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == "" {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageAnalysisStart, StageAnalysisDone, StageAnalysisError:
	case StageFetchDone:
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	case StageSectionDone:
		if e.Section == "" {
			return errors.New("section done requires section")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
