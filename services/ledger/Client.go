package ledger

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
	"github.com/bundleminer/bundleminer/pkg/ore"
	"github.com/bundleminer/bundleminer/pkg/solana"
	"github.com/bundleminer/bundleminer/settings"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/bundleminer/bundleminer/util"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

const (
	// CommitmentProcessed is used for account state so rounds see the newest balances.
	CommitmentProcessed = "processed"
	// CommitmentConfirmed is used for blockhashes so bundles are not built on a dropped fork.
	CommitmentConfirmed = "confirmed"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *rpcError           `json:"error"`
}

type accountInfo struct {
	Data     []string `json:"data"`
	Lamports uint64   `json:"lamports"`
	Owner    string   `json:"owner"`
}

type accountInfoResult struct {
	Value *accountInfo `json:"value"`
}

type multipleAccountsResult struct {
	Value []*accountInfo `json:"value"`
}

type balanceResult struct {
	Value uint64 `json:"value"`
}

type blockhashResult struct {
	Value struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// Client is a rate limited JSON-RPC client for the ledger.
type Client struct {
	logger     ulogger.Logger
	settings   *settings.Settings
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	requestID  atomic.Uint64
}

func NewClient(logger ulogger.Logger, tSettings *settings.Settings) (*Client, error) {
	u, err := url.Parse(tSettings.RPC.URL)
	if err != nil {
		return nil, errors.NewConfigurationError("[Ledger] invalid rpc_url %q", tSettings.RPC.URL, err)
	}

	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.NewConfigurationError("[Ledger] rpc_url %q must be an http or https url", tSettings.RPC.URL)
	}

	limit := rate.Inf
	if tSettings.RPC.RequestsPerSecond > 0 {
		limit = rate.Limit(tSettings.RPC.RequestsPerSecond)
	}

	burst := int(tSettings.RPC.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		logger:     logger,
		settings:   tSettings,
		url:        u.String(),
		httpClient: &http.Client{Timeout: tSettings.RPC.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}, nil
}

func (c *Client) call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.NewContextCanceledError("[%s] rate limiter wait aborted", method, err)
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Inc(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.NewProcessingError("[%s] failed to encode request", method, err)
	}

	b, err := util.DoHTTPRequest(ctx, c.httpClient, c.url, body)
	if err != nil {
		// a missing account is a null result, never an HTTP status
		if errors.Is(err, errors.ErrNotFound) {
			return errors.NewServiceError("[%s] rpc endpoint not found: %s", method, err.Error())
		}

		return err
	}

	var resp rpcResponse
	if err = json.Unmarshal(b, &resp); err != nil {
		return errors.NewInvalidResponseError("[%s] failed to decode response", method, err)
	}

	if resp.Error != nil {
		if strings.Contains(resp.Error.Message, errors.StaleStateSignature) {
			return errors.NewStaleStateError("[%s] rpc error %d: %s", method, resp.Error.Code, resp.Error.Message)
		}

		return errors.NewServiceError("[%s] rpc error %d: %s", method, resp.Error.Code, resp.Error.Message)
	}

	if len(resp.Result) == 0 {
		return errors.NewInvalidResponseError("[%s] response has no result", method)
	}

	if err = json.Unmarshal(resp.Result, result); err != nil {
		return errors.NewInvalidResponseError("[%s] failed to decode result", method, err)
	}

	return nil
}

func accountOptions() map[string]string {
	return map[string]string{"encoding": "base64", "commitment": CommitmentProcessed}
}

func decodeAccountData(address solana.PublicKey, info *accountInfo) ([]byte, error) {
	if info == nil {
		return nil, errors.NewNotFoundError("account %s not found", address)
	}

	if len(info.Data) == 0 {
		return nil, errors.NewInvalidResponseError("account %s has no data field", address)
	}

	data, err := base64.StdEncoding.DecodeString(info.Data[0])
	if err != nil {
		return nil, errors.NewInvalidResponseError("account %s data is not base64", address, err)
	}

	return data, nil
}

func (c *Client) getAccountData(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	var result accountInfoResult

	if err := c.call(ctx, "getAccountInfo", &result, address.String(), accountOptions()); err != nil {
		return nil, err
	}

	return decodeAccountData(address, result.Value)
}

func (c *Client) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	var result string

	if err := c.call(ctx, "getHealth", &result); err != nil {
		return http.StatusServiceUnavailable, "RPC not healthy", err
	}

	if result != "ok" {
		return http.StatusServiceUnavailable, result, nil
	}

	return http.StatusOK, "OK", nil
}

func (c *Client) GetTreasury(ctx context.Context) (*ore.Treasury, error) {
	data, err := c.getAccountData(ctx, ore.TreasuryAddress())
	if err != nil {
		return nil, errors.NewServiceError("[GetTreasury] failed to read treasury", err)
	}

	return ore.DecodeTreasury(data)
}

func (c *Client) GetChainState(ctx context.Context) (*model.ChainState, error) {
	treasury, err := c.GetTreasury(ctx)
	if err != nil {
		return nil, err
	}

	return treasury.ChainState(), nil
}

func (c *Client) GetBus(ctx context.Context, id uint64) (*model.Bus, error) {
	if id >= model.BusCount {
		return nil, errors.NewInvalidArgumentError("[GetBus] bus id %d out of range", id)
	}

	data, err := c.getAccountData(ctx, ore.BusAddress(id))
	if err != nil {
		return nil, errors.NewServiceError("[GetBus] failed to read bus %d", id, err)
	}

	return ore.DecodeBus(data)
}

// GetBusses reads all reward pools in one request.
func (c *Client) GetBusses(ctx context.Context) ([]*model.Bus, error) {
	addresses := ore.BusAddresses()

	keys := make([]string, len(addresses))
	for i, a := range addresses {
		keys[i] = a.String()
	}

	var result multipleAccountsResult

	if err := c.call(ctx, "getMultipleAccounts", &result, keys, accountOptions()); err != nil {
		return nil, errors.NewServiceError("[GetBusses] failed to read busses", err)
	}

	if len(result.Value) != len(addresses) {
		return nil, errors.NewInvalidResponseError("[GetBusses] expected %d accounts, got %d", len(addresses), len(result.Value))
	}

	busses := make([]*model.Bus, len(addresses))

	for i, info := range result.Value {
		data, err := decodeAccountData(addresses[i], info)
		if err != nil {
			return nil, err
		}

		if busses[i], err = ore.DecodeBus(data); err != nil {
			return nil, err
		}
	}

	return busses, nil
}

func (c *Client) GetProof(ctx context.Context, authority solana.PublicKey) (*model.Proof, error) {
	address, _, err := ore.ProofAddress(authority)
	if err != nil {
		return nil, err
	}

	data, err := c.getAccountData(ctx, address)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFoundError("[GetProof] wallet %s is not registered", authority, err)
		}

		return nil, errors.NewServiceError("[GetProof] failed to read proof for %s", authority, err)
	}

	return ore.DecodeProof(data)
}

func (c *Client) GetClock(ctx context.Context) (time.Time, error) {
	data, err := c.getAccountData(ctx, solana.SysvarClockID)
	if err != nil {
		return time.Time{}, errors.NewServiceError("[GetClock] failed to read clock sysvar", err)
	}

	return ore.DecodeClock(data)
}

func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	var result blockhashResult

	if err := c.call(ctx, "getLatestBlockhash", &result, map[string]string{"commitment": CommitmentConfirmed}); err != nil {
		return solana.Hash{}, errors.NewServiceError("[GetRecentBlockhash] failed to read blockhash", err)
	}

	return solana.HashFromBase58(result.Value.Blockhash)
}

func (c *Client) AccountExists(ctx context.Context, address solana.PublicKey) (bool, error) {
	var result accountInfoResult

	if err := c.call(ctx, "getAccountInfo", &result, address.String(), accountOptions()); err != nil {
		return false, err
	}

	return result.Value != nil, nil
}

// GetBalance returns the lamport balance of an account; a missing account has balance 0.
func (c *Client) GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	var result balanceResult

	if err := c.call(ctx, "getBalance", &result, address.String(), map[string]string{"commitment": CommitmentConfirmed}); err != nil {
		return 0, errors.NewServiceError("[GetBalance] failed to read balance of %s", address, err)
	}

	return result.Value, nil
}
