// Package livetest provides a Publisher that records what it is given.
package livetest

import (
	"context"
	"sync"

	"github.com/joshu-sajeev/jobtracker/internal/models"
)

// Recorder collects published job snapshots in order.
type Recorder struct {
	mu   sync.Mutex
	jobs []models.Job
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(_ context.Context, job models.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of every snapshot published so far.
func (r *Recorder) Jobs() []models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Job(nil), r.jobs...)
}

// Statuses returns the status of each snapshot, in publish order.
func (r *Recorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.jobs))
	for i, j := range r.jobs {
		out[i] = j.Status
	}
	return out
}

// Len returns the number of snapshots recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = nil
}
