package miner

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestServerInitRejectsThreads(t *testing.T) {
	h := newHarness(t, 1, nil)

	err := NewServer(h.miner, 0).Init(context.Background())
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestServerStartRunsMiner(t *testing.T) {
	h := newHarness(t, 1, nil)
	h.defaults()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h.cancel = cancel
	h.succeed("bundle-srv")

	srv := NewServer(h.miner, 1)
	require.NoError(t, srv.Init(ctx))

	readyCh := make(chan struct{})

	require.NoError(t, srv.Start(ctx, readyCh))

	select {
	case <-readyCh:
	default:
		t.Fatal("ready channel not closed")
	}

	require.NoError(t, srv.Stop(context.Background()))
	h.engine.AssertNumberOfCalls(t, "SendBundle", 1)

	status, _, err := srv.Health(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	h.ledger.AssertNotCalled(t, "Health", mock.Anything, mock.Anything)
}
