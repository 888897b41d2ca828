package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageRunDone     Stage = "RUN_DONE"
	StageAuthorStart Stage = "AUTHOR_START"
	StageAuthorDone  Stage = "AUTHOR_DONE"
	StageAuthorError Stage = "AUTHOR_ERROR"
	StageProfile     Stage = "PROFILE_LOADED"
	StageFetchDone   Stage = "FETCH_DONE"
	StageEscalation  Stage = "TIER_ESCALATION"
	StageBlocked     Stage = "BLOCK_DETECTED"
	StagePause       Stage = "BREAKER_PAUSE"
)

// Outcome labels for FETCH_DONE and AUTHOR_DONE events.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Event captures a single milestone of scrape progress.
type Event struct {
	// RunID uniquely identifies a scrape run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle, fetch, or block milestone occurred.
	Stage Stage
	// Author scopes author-level and fetch-level stages to a Scholar user ID.
	Author string
	// URL is the optional page URL; it should not contain credentials.
	URL string
	// Tier names the fetch mechanism (fast, heavy, sequential) for fetch stages.
	Tier string
	// Block carries the block classification label for BLOCK_DETECTED.
	Block string
	// Outcome is ok or error for FETCH_DONE and AUTHOR_DONE.
	Outcome string
	// Count carries a stage-specific tally, such as publications found.
	Count int64
	// Dur captures execution latency for fetches and completed authors.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StagePause:
	case StageAuthorStart, StageAuthorDone, StageAuthorError, StageProfile:
		if e.Author == "" {
			return fmt.Errorf("%s requires author", e.Stage)
		}
	case StageFetchDone:
		if e.Tier == "" {
			return errors.New("fetch done requires tier")
		}
		if e.Outcome == "" {
			return errors.New("fetch done requires outcome")
		}
	case StageEscalation:
		if e.Tier == "" {
			return errors.New("escalation requires target tier")
		}
	case StageBlocked:
		if e.Block == "" {
			return errors.New("block detected requires block kind")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID back to its uuid.UUID form.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
