package blockengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/pkg/solana"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/bundleminer/bundleminer/util"
	"github.com/jellydator/ttlcache/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

const (
	accessTokenKey  = "access"
	refreshTokenKey = "refresh"
)

// AuthProvider produces the per-call credentials for the searcher service.
type AuthProvider interface {
	// Authenticate returns credentials for calls on conn, running the challenge-response
	// exchange when no valid token is cached.
	Authenticate(ctx context.Context, conn grpc.ClientConnInterface) (credentials.PerRPCCredentials, error)

	// Invalidate drops cached tokens after the server rejected them.
	Invalidate()
}

// ChallengeAuthProvider signs the block engine's auth challenge with the auth keypair and
// caches the resulting tokens until shortly before they expire.
type ChallengeAuthProvider struct {
	logger  ulogger.Logger
	keypair *solana.Keypair
	margin  time.Duration
	tokens  *ttlcache.Cache[string, string]
	mu      sync.Mutex
	now     func() time.Time
}

func NewChallengeAuthProvider(logger ulogger.Logger, keypair *solana.Keypair, margin time.Duration) *ChallengeAuthProvider {
	return &ChallengeAuthProvider{
		logger:  logger,
		keypair: keypair,
		margin:  margin,
		tokens:  ttlcache.New[string, string](ttlcache.WithDisableTouchOnHit[string, string]()),
		now:     time.Now,
	}
}

func bearer(accessToken string) credentials.PerRPCCredentials {
	return util.HeaderCredentials{"authorization": "Bearer " + accessToken}
}

func (a *ChallengeAuthProvider) Authenticate(ctx context.Context, conn grpc.ClientConnInterface) (credentials.PerRPCCredentials, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if item := a.tokens.Get(accessTokenKey); item != nil {
		return bearer(item.Value()), nil
	}

	if item := a.tokens.Get(refreshTokenKey); item != nil {
		accessToken, err := a.refresh(ctx, conn, item.Value())
		if err == nil {
			return bearer(accessToken), nil
		}

		a.logger.Warnf("[Auth][%s] refresh failed, running full challenge: %v", a.keypair.PublicKey(), err)
		a.tokens.Delete(refreshTokenKey)
	}

	accessToken, err := a.authenticate(ctx, conn)
	if err != nil {
		return nil, err
	}

	return bearer(accessToken), nil
}

func (a *ChallengeAuthProvider) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tokens.DeleteAll()
}

// cache stores a token until margin before its expiry. Tokens that are already inside the
// margin are used once and not cached.
func (a *ChallengeAuthProvider) cache(key string, t *token) {
	if t == nil || t.ExpiresAtUTC == nil {
		return
	}

	ttl := t.ExpiresAtUTC.Time().Sub(a.now()) - a.margin
	if ttl <= 0 {
		return
	}

	a.tokens.Set(key, t.Value, ttl)
}

func (a *ChallengeAuthProvider) authenticate(ctx context.Context, conn grpc.ClientConnInterface) (string, error) {
	pubkey := a.keypair.PublicKey()

	challengeResp := &generateAuthChallengeResponse{}

	err := conn.Invoke(ctx, methodGenerateAuthChallenge, &generateAuthChallengeRequest{
		Role:   RoleSearcher,
		Pubkey: pubkey.Bytes(),
	}, challengeResp)
	if err != nil {
		return "", handshakeError(err, "[Auth][%s] failed to get auth challenge", pubkey)
	}

	challenge := fmt.Sprintf("%s-%s", pubkey, challengeResp.Challenge)
	signature := a.keypair.Sign([]byte(challenge))

	tokensResp := &generateAuthTokensResponse{}

	err = conn.Invoke(ctx, methodGenerateAuthTokens, &generateAuthTokensRequest{
		Challenge:       challenge,
		ClientPubkey:    pubkey.Bytes(),
		SignedChallenge: signature[:],
	}, tokensResp)
	if err != nil {
		return "", handshakeError(err, "[Auth][%s] failed to get auth tokens", pubkey)
	}

	if tokensResp.AccessToken == nil || tokensResp.AccessToken.Value == "" {
		return "", errors.NewAuthenticationError("[Auth][%s] block engine returned no access token", pubkey)
	}

	a.cache(accessTokenKey, tokensResp.AccessToken)
	a.cache(refreshTokenKey, tokensResp.RefreshToken)

	a.logger.Debugf("[Auth][%s] authenticated with block engine", pubkey)

	return tokensResp.AccessToken.Value, nil
}

// handshakeError keeps transport and timeout failures as they are. Any other status from the
// auth service is a rejection of this keypair.
func handshakeError(err error, message string, params ...interface{}) error {
	gErr := errors.FromGRPC(err, message, params...)
	if errors.Is(gErr, errors.ErrSubmissionRejected) {
		return errors.NewAuthenticationError(message, append(params, err)...)
	}

	return gErr
}

func (a *ChallengeAuthProvider) refresh(ctx context.Context, conn grpc.ClientConnInterface, refreshToken string) (string, error) {
	resp := &refreshAccessTokenResponse{}

	if err := conn.Invoke(ctx, methodRefreshAccessToken, &refreshAccessTokenRequest{RefreshToken: refreshToken}, resp); err != nil {
		return "", errors.FromGRPC(err, "RefreshAccessToken")
	}

	if resp.AccessToken == nil || resp.AccessToken.Value == "" {
		return "", errors.NewAuthenticationError("block engine returned no access token on refresh")
	}

	a.cache(accessTokenKey, resp.AccessToken)

	return resp.AccessToken.Value, nil
}
