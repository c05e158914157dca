package blockengine

import (
	"context"
	"net"
	"net/http"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/pkg/solana"
	"github.com/bundleminer/bundleminer/settings"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/bundleminer/bundleminer/util"
	"github.com/bundleminer/bundleminer/util/tracing"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

// MaxBundleTransactions is the most transactions the block engine accepts in one bundle.
const MaxBundleTransactions = 5

type Option func(*util.ConnectionOptions)

// WithDialer replaces the network dialer, e.g. with an in-process listener.
func WithDialer(dialer func(context.Context, string) (net.Conn, error)) Option {
	return func(o *util.ConnectionOptions) {
		o.Dialer = dialer
	}
}

type Client struct {
	logger   ulogger.Logger
	settings *settings.Settings
	auth     AuthProvider
	conn     *grpc.ClientConn
	tracer   *tracing.UTracer
}

// NewClient creates the channel to the block engine. The connection is established lazily on
// the first call and reused for every bundle.
func NewClient(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, auth AuthProvider, opts ...Option) (*Client, error) {
	if auth == nil {
		return nil, errors.NewConfigurationError("[BlockEngine] auth provider is required")
	}

	connectionOptions := &util.ConnectionOptions{
		MaxMessageSize:    tSettings.BlockEngine.MaxMessageSize,
		MaxRetries:        3,
		PrometheusMetrics: tSettings.BlockEngine.UsePrometheusGRPC,
		UserAgent:         tSettings.ClientName,
		Codec:             codec{},
	}

	for _, opt := range opts {
		opt(connectionOptions)
	}

	conn, err := util.GetGRPCClient(ctx, tSettings.BlockEngine.URL, connectionOptions)
	if err != nil {
		return nil, errors.NewServiceError("[BlockEngine] failed to create client for %s", tSettings.BlockEngine.URL, err)
	}

	return &Client{
		logger:   logger,
		settings: tSettings,
		auth:     auth,
		conn:     conn,
		tracer:   tracing.Tracer("blockengine"),
	}, nil
}

func (c *Client) Health(_ context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	switch state := c.conn.GetState(); state {
	case connectivity.TransientFailure, connectivity.Shutdown:
		return http.StatusServiceUnavailable, state.String(), nil
	default:
		return http.StatusOK, state.String(), nil
	}
}

// SendBundle submits the transactions, in order, as one bundle and returns the bundle id.
func (c *Client) SendBundle(ctx context.Context, txs []*solana.Transaction) (bundleID string, err error) {
	ctx, _, endSpan := c.tracer.Start(ctx, "SendBundle")
	defer func() {
		endSpan(err)
	}()

	if len(txs) == 0 {
		return "", errors.NewInvalidArgumentError("[SendBundle] bundle is empty")
	}

	if len(txs) > MaxBundleTransactions {
		return "", errors.NewSigningConstraintError("[SendBundle] bundle has %d transactions, limit is %d", len(txs), MaxBundleTransactions)
	}

	req := &sendBundleRequest{Bundle: &bundle{Packets: make([]*packet, 0, len(txs))}}

	for i, tx := range txs {
		data, err := tx.MarshalBinary()
		if err != nil {
			return "", errors.NewSigningConstraintError("[SendBundle] failed to serialize transaction %d", i, err)
		}

		req.Bundle.Packets = append(req.Bundle.Packets, &packet{
			Data: data,
			Meta: &packetMeta{Size: uint64(len(data))},
		})
	}

	if c.settings.BlockEngine.RequestTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.settings.BlockEngine.RequestTimeout)
		defer cancel()
	}

	creds, err := c.auth.Authenticate(ctx, c.conn)
	if err != nil {
		return "", err
	}

	resp := &sendBundleResponse{}

	if err = c.conn.Invoke(ctx, methodSendBundle, req, resp, grpc.PerRPCCredentials(creds)); err != nil {
		err = errors.FromGRPC(err, "[SendBundle] bundle of %d transactions failed", len(txs))

		if errors.Is(err, errors.ErrAuthentication) {
			c.auth.Invalidate()
		}

		return "", err
	}

	if resp.UUID == "" {
		return "", errors.NewInvalidResponseError("[SendBundle] block engine returned no bundle id")
	}

	c.logger.Debugf("[SendBundle] bundle %s accepted with %d transactions", resp.UUID, len(txs))

	return resp.UUID, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
