package uplink

import (
	"context"

	"github.com/sweeney/carpi-telemetry/internal/report"
)

// Batch is one recorded Send call.
type Batch struct {
	Path    string
	Reports []report.Report
}

// FakeSender records sent batches for test assertions.
type FakeSender struct {
	// Batches contains every batch that was accepted.
	Batches []Batch

	// Attempts counts every Send call, accepted or not.
	Attempts int

	// SendError, if set, is returned by Send and nothing is recorded.
	SendError error
}

// NewFakeSender creates a FakeSender for testing.
func NewFakeSender() *FakeSender {
	return &FakeSender{}
}

// Send records the batch unless SendError is set.
func (f *FakeSender) Send(ctx context.Context, path string, batch []report.Report) error {
	f.Attempts++
	if f.SendError != nil {
		return f.SendError
	}
	f.Batches = append(f.Batches, Batch{
		Path:    path,
		Reports: append([]report.Report(nil), batch...),
	})
	return nil
}

// Reports returns every delivered report in delivery order.
func (f *FakeSender) Reports() []report.Report {
	var out []report.Report
	for _, b := range f.Batches {
		out = append(out, b.Reports...)
	}
	return out
}

// Reset clears recorded batches and errors.
func (f *FakeSender) Reset() {
	f.Batches = nil
	f.Attempts = 0
	f.SendError = nil
}
