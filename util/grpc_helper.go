package util

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/util/tracing"
	"github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	prometheusgolang "github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

const (
	defaultMaxMessageSize = 4 * 1024 * 1024
	defaultRetryBackoff   = 100 * time.Millisecond
)

// HeaderCredentials sends its entries as request metadata on every call.
type HeaderCredentials map[string]string

func (hc HeaderCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return hc, nil
}

// RequireTransportSecurity is false so that plaintext test endpoints can carry credentials.
func (HeaderCredentials) RequireTransportSecurity() bool {
	return false
}

type ConnectionOptions struct {
	MaxMessageSize    int                                             // Max message size in bytes
	Credentials       credentials.PerRPCCredentials                   // Per-call credentials (optional)
	MaxRetries        int                                             // Retries for Unavailable errors, 0 disables
	RetryBackoff      time.Duration                                   // Backoff between retries
	PrometheusMetrics bool                                            // Record client handling time histograms
	UserAgent         string                                          // Optional user agent
	Codec             encoding.Codec                                  // Forced codec, used for hand-encoded messages
	Dialer            func(context.Context, string) (net.Conn, error) // Custom dialer, used by in-process tests
}

// ParseEndpoint turns a URL such as https://host or http://host:1234 into a dial target and
// reports whether the transport must be encrypted. A bare host:port is treated as plaintext.
func ParseEndpoint(endpoint string) (string, bool, error) {
	if endpoint == "" {
		return "", false, errors.NewConfigurationError("endpoint is required")
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		// host:port without a scheme
		if _, _, splitErr := net.SplitHostPort(endpoint); splitErr == nil {
			return endpoint, false, nil
		}

		if err != nil {
			return "", false, errors.NewConfigurationError("invalid endpoint %q", endpoint, err)
		}

		return "", false, errors.NewConfigurationError("invalid endpoint %q", endpoint)
	}

	secure := false

	switch u.Scheme {
	case "https", "grpcs":
		secure = true
	case "http", "grpc":
	default:
		return "", false, errors.NewConfigurationError("unsupported endpoint scheme %q", u.Scheme)
	}

	host := u.Host
	if u.Port() == "" {
		if secure {
			host = net.JoinHostPort(u.Hostname(), "443")
		} else {
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}

	return host, secure, nil
}

var (
	prometheusClientMetrics      *prometheus.ClientMetrics
	prometheusRegisterClientOnce sync.Once
)

func clientMetrics() *prometheus.ClientMetrics {
	prometheusRegisterClientOnce.Do(func() {
		prometheusClientMetrics = prometheus.NewClientMetrics(
			prometheus.WithClientHandlingTimeHistogram(),
		)

		prometheusgolang.MustRegister(prometheusClientMetrics)
	})

	return prometheusClientMetrics
}

// GetGRPCClient creates a client connection for the endpoint URL. TLS with the system roots is
// used for https endpoints. The caller closes the connection.
func GetGRPCClient(_ context.Context, endpoint string, connectionOptions *ConnectionOptions) (*grpc.ClientConn, error) {
	target, secure, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	if connectionOptions == nil {
		connectionOptions = &ConnectionOptions{}
	}

	if connectionOptions.MaxMessageSize == 0 {
		connectionOptions.MaxMessageSize = defaultMaxMessageSize
	}

	callOpts := []grpc.CallOption{
		grpc.MaxCallSendMsgSize(connectionOptions.MaxMessageSize),
		grpc.MaxCallRecvMsgSize(connectionOptions.MaxMessageSize),
	}

	if connectionOptions.Codec != nil {
		callOpts = append(callOpts, grpc.ForceCodec(connectionOptions.Codec))
	}

	opts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(callOpts...),
	}

	if secure {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	if connectionOptions.Dialer != nil {
		target = "passthrough:///" + target
		opts = append(opts, grpc.WithContextDialer(connectionOptions.Dialer))
	}

	if connectionOptions.UserAgent != "" {
		opts = append(opts, grpc.WithUserAgent(connectionOptions.UserAgent))
	}

	if connectionOptions.Credentials != nil {
		opts = append(opts, grpc.WithPerRPCCredentials(connectionOptions.Credentials))
	}

	unaryClientInterceptors := make([]grpc.UnaryClientInterceptor, 0, 2)

	if connectionOptions.PrometheusMetrics {
		unaryClientInterceptors = append(unaryClientInterceptors, clientMetrics().UnaryClientInterceptor())
	}

	if connectionOptions.MaxRetries > 0 {
		if connectionOptions.RetryBackoff == 0 {
			connectionOptions.RetryBackoff = defaultRetryBackoff
		}

		unaryClientInterceptors = append(unaryClientInterceptors, retryInterceptor(connectionOptions.MaxRetries, connectionOptions.RetryBackoff))
	}

	if len(unaryClientInterceptors) > 0 {
		opts = append(opts, grpc.WithChainUnaryInterceptor(unaryClientInterceptors...))
	}

	opts = tracing.GetGRPCClientTracerOptions(opts)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, errors.NewNetworkError("error dialing grpc service at %s", endpoint, err)
	}

	return conn, nil
}

// retryInterceptor retries calls that failed with codes.Unavailable, which is what a dropped
// connection surfaces as before the request reached the server.
func retryInterceptor(maxRetries int, retryBackoff time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		var err error

		for i := 0; i < maxRetries; i++ {
			err = invoker(ctx, method, req, reply, cc, opts...)
			if err == nil || status.Code(err) != codes.Unavailable {
				return err
			}

			select {
			case <-ctx.Done():
				return err
			case <-time.After(retryBackoff):
			}
		}

		return err
	}
}
