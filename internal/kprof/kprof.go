// Package kprof renders the scheduler's per-task accounting data
// (internal/accnt) as a pprof profile that a host-side `go tool pprof`
// can open directly. No device node serves it: defs.D_PROF is not wired
// to this package, and cmd/kernel renders the init task's profile once
// at boot and discards the bytes.
//
// Grounded on the teacher's accnt/accnt.go (Userns/Sysns) for the data
// source; there is no profiling package anywhere in the teacher or the
// rest of the pack, so the rendering target is github.com/google/pprof
// — a real dependency of the teacher's go.mod (used there for its own
// allocation-profiling tooling) that otherwise has no home in this
// kernel's component list.
package kprof

import (
	"bytes"

	"github.com/google/pprof/profile"

	"github.com/mystyy01/VANTA/internal/accnt"
)

/// TaskSample_t names the task an accounting record belongs to, since
/// accnt.Accnt_t itself carries no identity.
type TaskSample_t struct {
	TaskID int64
	Name   string
	Acct   *accnt.Accnt_t
}

/// Render builds a pprof Profile with two sample types — user and
/// system nanoseconds — one sample per task.
func Render(samples []TaskSample_t) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "user", Unit: "nanoseconds"},
			{Type: "sys", Unit: "nanoseconds"},
		},
		PeriodType: &profile.ValueType{Type: "task", Unit: "count"},
		Period:     1,
	}

	funcs := make(map[int64]*profile.Function, len(samples))
	locs := make(map[int64]*profile.Location, len(samples))
	var nextID uint64 = 1

	for _, s := range samples {
		fn := &profile.Function{ID: nextID, Name: s.Name}
		nextID++
		loc := &profile.Location{ID: nextID, Line: []profile.Line{{Function: fn}}}
		nextID++
		funcs[s.TaskID] = fn
		locs[s.TaskID] = loc
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)

		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{s.Acct.Userns, s.Acct.Sysns},
			Label:    map[string][]string{"task": {s.Name}},
		})
	}
	return p
}

/// Bytes serializes the rendered profile into its gzip-compressed wire
/// form, the same bytes `go tool pprof` reads directly from a file.
func Bytes(samples []TaskSample_t) ([]byte, error) {
	p := Render(samples)
	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
