package application

import (
	"context"

	"home-setup/internal/domain"
)

// FloorplanRead is the pending outcome of a background floorplan read.
type FloorplanRead struct {
	done      chan struct{}
	floorplan *domain.Floorplan
	err       error
}

func newFloorplanRead() *FloorplanRead {
	return &FloorplanRead{done: make(chan struct{})}
}

func (r *FloorplanRead) resolve(fp *domain.Floorplan, err error) {
	r.floorplan = fp
	r.err = err
	close(r.done)
}

// Done is closed once the read has finished.
func (r *FloorplanRead) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the read finishes or ctx ends. Giving up on the wait
// does not stop the read.
func (r *FloorplanRead) Wait(ctx context.Context) (*domain.Floorplan, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return r.floorplan, r.err
	}
}
