package servicemanager

import "context"

// Service is a long running component owned by the ServiceManager.
type Service interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	Init(ctx context.Context) error
	// Start blocks until ctx is done or the service fails. readyCh is closed once the service
	// is serving.
	Start(ctx context.Context, readyCh chan<- struct{}) error
	Stop(ctx context.Context) error
}
