package application

import (
	"context"
	"io"

	"home-setup/internal/domain"
)

// IdentityStore supplies the signed-in identity. The wizard only reads it.
type IdentityStore interface {
	Current(ctx context.Context) (*domain.Identity, error)
}

type SetupSubmitter interface {
	SubmitSetup(ctx context.Context, identity domain.Identity, payload domain.SetupPayload) (*domain.SetupReceipt, error)
}

type ProfileSource interface {
	FetchProfile(ctx context.Context, identity domain.Identity) (*domain.Profile, error)
}

// FloorplanFile is an upload candidate. Size and ContentType are what the
// client declared; Open yields the bytes.
type FloorplanFile interface {
	Name() string
	Size() int64
	ContentType() string
	Open() (io.ReadCloser, error)
}

type FileReader interface {
	ReadFloorplan(ctx context.Context, file FloorplanFile) (*domain.Floorplan, error)
}
