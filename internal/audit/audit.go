// Package audit ties a profile, a target and a collector together into one
// compliance run, and runs many of them with bounded concurrency.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/khanhnv2901/tlsprofiler/internal/compliance"
	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/probe"
	"github.com/khanhnv2901/tlsprofiler/internal/profile"
	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

// ProfileLoader resolves profiles by name. *profile.Store implements it.
type ProfileLoader interface {
	Load(ctx context.Context, name string) (profile.Profile, error)
}

// Collector produces the snapshot for one target. *collector.Collector
// implements it.
type Collector interface {
	Collect(ctx context.Context, target probe.Target) (*observation.Snapshot, error)
}

// Result is one completed audit.
type Result struct {
	ID        uuid.UUID             `json:"id"`
	Target    string                `json:"target"`
	Profile   string                `json:"profile"`
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration"`
	Report    *compliance.Report    `json:"report"`
	Snapshot  *observation.Snapshot `json:"snapshot"`
}

// Audit evaluates one target against one profile.
type Audit struct {
	target    probe.Target
	profile   profile.Profile
	collector Collector
}

// New resolves the profile up front, so an unknown profile or an
// unavailable profile source fails here, before anything is scanned.
func New(ctx context.Context, store ProfileLoader, target probe.Target, profileName string, collector Collector) (*Audit, error) {
	p, err := store.Load(ctx, profileName)
	if err != nil {
		return nil, err
	}
	return newAudit(target, p, collector), nil
}

func newAudit(target probe.Target, p profile.Profile, collector Collector) *Audit {
	return &Audit{target: target, profile: p, collector: collector}
}

// Run collects observations and evaluates them. An unreachable target
// returns the collector's connectivity error and no result.
func (a *Audit) Run(ctx context.Context) (*Result, error) {
	started := time.Now().UTC()

	snap, err := a.collector.Collect(ctx, a.target)
	if err != nil {
		return nil, err
	}

	return &Result{
		ID:        uuid.New(),
		Target:    a.target.String(),
		Profile:   a.profile.Name,
		StartedAt: started,
		Duration:  time.Since(started),
		Report:    compliance.Evaluate(snap, a.profile),
		Snapshot:  snap,
	}, nil
}

// Status values for an Outcome.
const (
	StatusOK          = "ok"
	StatusNotOK       = "not_ok"
	StatusIncomplete  = "incomplete"
	StatusUnreachable = "unreachable"
	StatusError       = "error"
)

// Outcome is the result of auditing one target in a batch.
type Outcome struct {
	Target string
	Result *Result
	Err    error
}

// Status summarises the outcome. A clean report is only ok when every
// measurement was taken; skipped measurements make it incomplete.
func (o Outcome) Status() string {
	switch {
	case errors.Is(o.Err, sharedErrors.ErrTargetUnreachable):
		return StatusUnreachable
	case o.Err != nil || o.Result == nil:
		return StatusError
	case o.Result.Report.AllOK && o.Result.Snapshot != nil && len(o.Result.Snapshot.Skipped) > 0:
		return StatusIncomplete
	case o.Result.Report.AllOK:
		return StatusOK
	default:
		return StatusNotOK
	}
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", o.Target, o.Status(), o.Err)
	}
	return fmt.Sprintf("%s: %s", o.Target, o.Status())
}
