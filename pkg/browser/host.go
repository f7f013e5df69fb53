package browser

import (
	"context"

	"github.com/go-rod/rod/lib/proto"
)

// Host is the port implemented by rendering host adapters. It provisions
// display surfaces and targets and opens remote-debugging channels on them.
type Host interface {
	CreateSurface(ctx context.Context, opts SurfaceOptions) (SurfaceID, error)
	ListTargets(ctx context.Context, surface SurfaceID) ([]TargetInfo, error)
	CreateTarget(ctx context.Context, surface SurfaceID, url string, background bool) (TargetID, error)
	NavigateTarget(ctx context.Context, target TargetID, url string) error
	ActivateTarget(ctx context.Context, target TargetID) error
	CloseTargets(ctx context.Context, targets []TargetID) error
	RemoveSurface(ctx context.Context, surface SurfaceID) error
	Attach(ctx context.Context, target TargetID) (Conn, error)
	Close() error
}

// Conn is an open remote-debugging channel on a single target. Commands are
// issued through the embedded proto.Client using SessionID.
type Conn interface {
	proto.Client
	SessionID() proto.TargetSessionID
	Detach(ctx context.Context) error
}
