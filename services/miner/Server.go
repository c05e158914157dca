package miner

import (
	"context"

	"github.com/bundleminer/bundleminer/errors"
)

// Server runs the miner as a managed service until its context is cancelled.
type Server struct {
	miner   *Miner
	threads int
}

func NewServer(m *Miner, threads int) *Server {
	return &Server{miner: m, threads: threads}
}

func (s *Server) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	return s.miner.Health(ctx, checkLiveness)
}

func (s *Server) Init(_ context.Context) error {
	if s.threads < 1 {
		return errors.NewInvalidArgumentError("[Miner] threads must be at least 1, got %d", s.threads)
	}

	return nil
}

// Start reports ready immediately; readiness of the mining loop itself is exposed by Health.
func (s *Server) Start(ctx context.Context, readyCh chan<- struct{}) error {
	close(readyCh)

	return s.miner.Mine(ctx, s.threads)
}

func (s *Server) Stop(_ context.Context) error {
	return nil
}
