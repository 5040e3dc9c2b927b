package models

import (
	"fmt"
	"time"
)

// SyncState is a state of the sync job state machine.
type SyncState int

const (
	Idle SyncState = iota
	Fetching
	Matching
	Transferring
	Completed
	Failed
)

func (s SyncState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Matching:
		return "matching"
	case Transferring:
		return "transferring"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func (s SyncState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SyncState) UnmarshalText(text []byte) error {
	for v := Idle; v <= Failed; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown sync state %q", text)
}

// Terminal reports whether no further transition can happen.
func (s SyncState) Terminal() bool {
	return s == Completed || s == Failed
}

// FailureReason explains a [Failed] job.
type FailureReason string

const (
	EmptySource       FailureReason = "EmptySource"
	SourceUnavailable FailureReason = "SourceUnavailable"
	Cancelled         FailureReason = "Cancelled"
)

// OutcomeKind discriminates [SyncOutcome].
type OutcomeKind int

const (
	OutcomePending OutcomeKind = iota
	OutcomeMatched
	OutcomeCreated
	OutcomeUnmatched
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePending:
		return "pending"
	case OutcomeMatched:
		return "matched"
	case OutcomeCreated:
		return "created"
	case OutcomeUnmatched:
		return "unmatched"
	case OutcomeError:
		return "error"
	default:
		return ""
	}
}

func (k OutcomeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *OutcomeKind) UnmarshalText(text []byte) error {
	for v := OutcomePending; v <= OutcomeError; v++ {
		if v.String() == string(text) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// SyncOutcome is the result of syncing one song into one target.
//
// ExternalID is set for Matched and Created, Reason for Error.
type SyncOutcome struct {
	Kind       OutcomeKind `json:"kind"`
	ExternalID string      `json:"external_id,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// Matched builds a Matched(existingExternalId) outcome.
func Matched(id string) SyncOutcome { return SyncOutcome{Kind: OutcomeMatched, ExternalID: id} }

// Created builds a Created(newExternalId) outcome.
func Created(id string) SyncOutcome { return SyncOutcome{Kind: OutcomeCreated, ExternalID: id} }

// Unmatched builds an Unmatched outcome.
func Unmatched() SyncOutcome { return SyncOutcome{Kind: OutcomeUnmatched} }

// Errored builds an Error(reason) outcome.
func Errored(reason string) SyncOutcome { return SyncOutcome{Kind: OutcomeError, Reason: reason} }

// Transferable reports whether the song has a target id to transfer.
func (o SyncOutcome) Transferable() bool {
	return o.Kind == OutcomeMatched || o.Kind == OutcomeCreated
}

func (o SyncOutcome) String() string {
	switch o.Kind {
	case OutcomeMatched, OutcomeCreated:
		return fmt.Sprintf("%s(%s)", o.Kind, o.ExternalID)
	case OutcomeError:
		return fmt.Sprintf("error(%s)", o.Reason)
	default:
		return o.Kind.String()
	}
}

// TransferPolicy is how matched songs reach a target.
type TransferPolicy string

const (
	// PolicyCreate creates a new playlist holding every transferable song in source order.
	PolicyCreate TransferPolicy = "create"
	// PolicyAdd adds every transferable song to an existing playlist or the user library.
	PolicyAdd TransferPolicy = "add"
)

// SongResult is one source song and its outcome on every target. Index is the song's
// position in the source playlist, so duplicated songs keep distinct results.
type SongResult struct {
	Index    int                        `json:"index"`
	Song     Song                       `json:"song"`
	Outcomes map[ProviderID]SyncOutcome `json:"outcomes"`
}

// Summary counts outcomes for one target.
type Summary struct {
	Matched   int `json:"matched"`
	Created   int `json:"created"`
	Unmatched int `json:"unmatched"`
	Errors    int `json:"errors"`
}

// Add counts o.
func (s *Summary) Add(o SyncOutcome) {
	switch o.Kind {
	case OutcomeMatched:
		s.Matched++
	case OutcomeCreated:
		s.Created++
	case OutcomeUnmatched:
		s.Unmatched++
	case OutcomeError:
		s.Errors++
	}
}

// TargetResult is the outcome of a sync job on one target.
//
// PlaylistID is the created playlist for [PolicyCreate] and the target context for [PolicyAdd]
// (empty meaning the user library).
type TargetResult struct {
	Provider   ProviderID     `json:"provider"`
	Policy     TransferPolicy `json:"policy"`
	PlaylistID string         `json:"playlist_id,omitempty"`
	Summary    Summary        `json:"summary"`
	Error      string         `json:"error,omitempty"`
}

// SyncResult is the terminal report of a sync job.
type SyncResult struct {
	JobID      string         `json:"job_id"`
	Source     ProviderID     `json:"source"`
	PlaylistID string         `json:"playlist_id"`
	Title      string         `json:"title"`
	State      SyncState      `json:"state"`
	Reason     FailureReason  `json:"reason,omitempty"`
	Err        error          `json:"-"`
	Songs      []SongResult   `json:"songs"`
	Targets    []TargetResult `json:"targets"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Target returns the result for id.
func (r *SyncResult) Target(id ProviderID) (TargetResult, bool) {
	for _, t := range r.Targets {
		if t.Provider == id {
			return t, true
		}
	}
	return TargetResult{}, false
}
