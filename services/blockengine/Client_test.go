package blockengine

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/pkg/solana"
	"github.com/bundleminer/bundleminer/settings"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// testEngine is an in-process block engine serving the auth and searcher services.
type testEngine struct {
	mu          sync.Mutex
	accessTTL   time.Duration
	challenge   string
	accessToken string
	challenges  int
	refreshes   int
	rejectNext  bool
	authErr     error
	sendErr     error
	bundles     [][]*packet
}

func (e *testEngine) issueAccessToken(ttl time.Duration) *token {
	e.accessToken = fmt.Sprintf("access-%d-%d", e.challenges, e.refreshes)
	return &token{Value: e.accessToken, ExpiresAtUTC: newTimestamp(time.Now().Add(ttl))}
}

func (e *testEngine) generateAuthChallenge(req *generateAuthChallengeRequest) (*generateAuthChallengeResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.authErr != nil {
		return nil, e.authErr
	}

	if req.Role != RoleSearcher || len(req.Pubkey) != solana.PublicKeyLength {
		return nil, status.Error(codes.InvalidArgument, "bad challenge request")
	}

	e.challenges++
	e.challenge = fmt.Sprintf("challenge%d", e.challenges)

	return &generateAuthChallengeResponse{Challenge: e.challenge}, nil
}

func (e *testEngine) generateAuthTokens(req *generateAuthTokensRequest) (*generateAuthTokensResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pubkey, err := solana.PublicKeyFromBytes(req.ClientPubkey)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "bad pubkey")
	}

	if req.Challenge != pubkey.String()+"-"+e.challenge {
		return nil, status.Error(codes.PermissionDenied, "wrong challenge")
	}

	var sig solana.Signature
	copy(sig[:], req.SignedChallenge)

	if !solana.Verify(pubkey, []byte(req.Challenge), sig) {
		return nil, status.Error(codes.PermissionDenied, "bad signature")
	}

	return &generateAuthTokensResponse{
		AccessToken:  e.issueAccessToken(e.accessTTL),
		RefreshToken: &token{Value: "refresh", ExpiresAtUTC: newTimestamp(time.Now().Add(time.Hour))},
	}, nil
}

func (e *testEngine) refreshAccessToken(req *refreshAccessTokenRequest) (*refreshAccessTokenResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req.RefreshToken != "refresh" {
		return nil, status.Error(codes.Unauthenticated, "bad refresh token")
	}

	e.refreshes++

	return &refreshAccessTokenResponse{AccessToken: e.issueAccessToken(e.accessTTL)}, nil
}

func (e *testEngine) sendBundle(ctx context.Context, req *sendBundleRequest) (*sendBundleResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	md, _ := metadata.FromIncomingContext(ctx)
	if auth := md.Get("authorization"); len(auth) != 1 || auth[0] != "Bearer "+e.accessToken || e.rejectNext {
		e.rejectNext = false
		return nil, status.Error(codes.Unauthenticated, "token expired")
	}

	if e.sendErr != nil {
		return nil, e.sendErr
	}

	e.bundles = append(e.bundles, req.Bundle.Packets)

	return &sendBundleResponse{UUID: fmt.Sprintf("bundle-%d", len(e.bundles))}, nil
}

func unary[Req protoMessage](name string, newReq func() Req, fn func(context.Context, Req) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			req := newReq()
			if err := dec(req); err != nil {
				return nil, err
			}

			return fn(ctx, req)
		},
	}
}

func (e *testEngine) serve(t *testing.T) *bufconn.Listener {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.ForceServerCodec(codec{}))

	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "auth.AuthService",
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			unary("GenerateAuthChallenge", func() *generateAuthChallengeRequest { return &generateAuthChallengeRequest{} },
				func(_ context.Context, req *generateAuthChallengeRequest) (any, error) {
					return e.generateAuthChallenge(req)
				}),
			unary("GenerateAuthTokens", func() *generateAuthTokensRequest { return &generateAuthTokensRequest{} },
				func(_ context.Context, req *generateAuthTokensRequest) (any, error) { return e.generateAuthTokens(req) }),
			unary("RefreshAccessToken", func() *refreshAccessTokenRequest { return &refreshAccessTokenRequest{} },
				func(_ context.Context, req *refreshAccessTokenRequest) (any, error) { return e.refreshAccessToken(req) }),
		},
	}, e)

	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "searcher.SearcherService",
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			unary("SendBundle", func() *sendBundleRequest { return &sendBundleRequest{} },
				func(ctx context.Context, req *sendBundleRequest) (any, error) { return e.sendBundle(ctx, req) }),
		},
	}, e)

	go func() {
		_ = server.Serve(lis)
	}()

	t.Cleanup(server.Stop)

	return lis
}

func newTestClient(t *testing.T, engine *testEngine, margin time.Duration) (*Client, *solana.Keypair) {
	t.Helper()

	lis := engine.serve(t)

	authKeypair, err := solana.NewKeypair()
	require.NoError(t, err)

	tSettings := &settings.Settings{
		ClientName: "bundleminer-test",
		BlockEngine: settings.BlockEngineSettings{
			URL:            "http://bufnet",
			RequestTimeout: 5 * time.Second,
		},
	}

	auth := NewChallengeAuthProvider(ulogger.TestLogger{}, authKeypair, margin)

	client, err := NewClient(context.Background(), ulogger.TestLogger{}, tSettings, auth, WithDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, authKeypair
}

func testTransactions(t *testing.T, n int) []*solana.Transaction {
	t.Helper()

	payer, err := solana.NewKeypair()
	require.NoError(t, err)

	txs := make([]*solana.Transaction, n)

	for i := range txs {
		ix := solana.TransferInstruction(payer.PublicKey(), solana.SystemProgramID, uint64(i+1))

		tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{byte(i)}, payer.PublicKey())
		require.NoError(t, err)
		require.NoError(t, tx.Sign(payer))

		txs[i] = tx
	}

	return txs
}

func TestSendBundle(t *testing.T) {
	engine := &testEngine{accessTTL: time.Hour}
	client, _ := newTestClient(t, engine, 30*time.Second)

	txs := testTransactions(t, 2)

	bundleID, err := client.SendBundle(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, "bundle-1", bundleID)

	require.Len(t, engine.bundles, 1)
	require.Len(t, engine.bundles[0], 2)

	for i, p := range engine.bundles[0] {
		expected, err := txs[i].MarshalBinary()
		require.NoError(t, err)

		assert.Equal(t, expected, p.Data, "packet %d out of order or altered", i)
		assert.Equal(t, uint64(len(expected)), p.Meta.Size)
	}

	// token is reused while it is valid
	_, err = client.SendBundle(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.challenges)
	assert.Equal(t, 0, engine.refreshes)
}

func TestShortLivedTokenIsRefreshed(t *testing.T) {
	engine := &testEngine{accessTTL: 10 * time.Second}
	client, _ := newTestClient(t, engine, 30*time.Second)

	txs := testTransactions(t, 1)

	for i := 0; i < 3; i++ {
		_, err := client.SendBundle(context.Background(), txs)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, engine.challenges)
	assert.Equal(t, 2, engine.refreshes)
}

func TestRejectedTokenTriggersNewChallenge(t *testing.T) {
	engine := &testEngine{accessTTL: time.Hour}
	client, _ := newTestClient(t, engine, time.Second)

	txs := testTransactions(t, 1)

	_, err := client.SendBundle(context.Background(), txs)
	require.NoError(t, err)

	engine.mu.Lock()
	engine.rejectNext = true
	engine.mu.Unlock()

	_, err = client.SendBundle(context.Background(), txs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAuthentication))
	assert.True(t, errors.IsRetryableError(err))

	_, err = client.SendBundle(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, 2, engine.challenges)
}

func TestAuthHandshakeErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   *errors.Error
		category string
	}{
		{"unavailable", status.Error(codes.Unavailable, "connection refused"), errors.ErrNetwork, "transport"},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), errors.ErrNetworkTimeout, "transport"},
		{"permission denied", status.Error(codes.PermissionDenied, "keypair not allowed"), errors.ErrAuthentication, "authentication"},
		{"rejected", status.Error(codes.InvalidArgument, "bad challenge request"), errors.ErrAuthentication, "authentication"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &testEngine{accessTTL: time.Hour, authErr: tt.err}
			client, _ := newTestClient(t, engine, time.Second)

			_, err := client.SendBundle(context.Background(), testTransactions(t, 1))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
			assert.Equal(t, tt.category, errors.GetErrorCategory(err))

			if tt.target != errors.ErrAuthentication {
				assert.False(t, errors.Is(err, errors.ErrAuthentication), "got %v", err)
			}

			assert.Empty(t, engine.bundles)
		})
	}
}

func TestSendBundleErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target *errors.Error
	}{
		{"stale", status.Error(codes.Internal, "Transaction simulation failed: custom program error: 0x3"), errors.ErrStaleState},
		{"rejected", status.Error(codes.InvalidArgument, "bundle contains an already processed transaction"), errors.ErrSubmissionRejected},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), errors.ErrNetworkTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &testEngine{accessTTL: time.Hour, sendErr: tt.err}
			client, _ := newTestClient(t, engine, time.Second)

			_, err := client.SendBundle(context.Background(), testTransactions(t, 1))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestSendBundleRejectsBadSizes(t *testing.T) {
	client, _ := newTestClient(t, &testEngine{accessTTL: time.Hour}, time.Second)

	_, err := client.SendBundle(context.Background(), nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = client.SendBundle(context.Background(), testTransactions(t, MaxBundleTransactions+1))
	assert.True(t, errors.Is(err, errors.ErrSigningConstraint))
}

func TestNewClientRequiresAuth(t *testing.T) {
	_, err := NewClient(context.Background(), ulogger.TestLogger{}, &settings.Settings{}, nil)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	known, err := (&sendBundleResponse{UUID: "abc"}).MarshalProto()
	require.NoError(t, err)

	// field 7 varint, field 9 bytes
	b := append([]byte{7 << 3, 42, 9<<3 | 2, 2, 'x', 'y'}, known...)

	resp := &sendBundleResponse{}
	require.NoError(t, resp.UnmarshalProto(b))
	assert.Equal(t, "abc", resp.UUID)

	err = resp.UnmarshalProto([]byte{1<<3 | 2, 10, 'a'})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "malformed"))
}
