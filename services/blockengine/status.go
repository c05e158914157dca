package blockengine

import (
	"context"
	"net/http"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/settings"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/bundleminer/bundleminer/util"
	jsoniter "github.com/json-iterator/go"
)

// MaxStatusBatch is the most bundle ids getBundleStatuses accepts per request.
const MaxStatusBatch = 5

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BundleStatus is the engine's view of a bundle that landed. Bundles the engine does not know
// about, or that have not landed, are absent from the result.
type BundleStatus struct {
	BundleID           string              `json:"bundle_id"`
	Transactions       []string            `json:"transactions"`
	Slot               uint64              `json:"slot"`
	ConfirmationStatus string              `json:"confirmation_status"`
	Err                jsoniter.RawMessage `json:"err"`
}

// Failed reports whether the bundle landed with an execution error.
func (s *BundleStatus) Failed() bool {
	if len(s.Err) == 0 {
		return false
	}

	var result map[string]interface{}
	if err := json.Unmarshal(s.Err, &result); err != nil {
		return false
	}

	_, ok := result["Ok"]

	return !ok
}

type StatusClient struct {
	logger     ulogger.Logger
	url        string
	httpClient *http.Client
}

func NewStatusClient(logger ulogger.Logger, tSettings *settings.Settings) (*StatusClient, error) {
	if tSettings.BlockEngine.StatusURL == "" {
		return nil, errors.NewConfigurationError("[StatusClient] block_engine_status_url is not set")
	}

	return &StatusClient{
		logger:     logger,
		url:        tSettings.BlockEngine.StatusURL,
		httpClient: &http.Client{Timeout: tSettings.RPC.Timeout},
	}, nil
}

type bundleStatusesResponse struct {
	Result *struct {
		Value []*BundleStatus `json:"value"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GetBundleStatuses looks up at most MaxStatusBatch bundles.
func (s *StatusClient) GetBundleStatuses(ctx context.Context, bundleIDs []string) ([]*BundleStatus, error) {
	if len(bundleIDs) == 0 {
		return nil, nil
	}

	if len(bundleIDs) > MaxStatusBatch {
		return nil, errors.NewInvalidArgumentError("[GetBundleStatuses] %d ids requested, limit is %d", len(bundleIDs), MaxStatusBatch)
	}

	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "getBundleStatuses",
		"params":  []interface{}{bundleIDs},
	})
	if err != nil {
		return nil, errors.NewProcessingError("[GetBundleStatuses] failed to encode request", err)
	}

	b, err := util.DoHTTPRequest(ctx, s.httpClient, s.url, body)
	if err != nil {
		return nil, err
	}

	var resp bundleStatusesResponse
	if err = json.Unmarshal(b, &resp); err != nil {
		return nil, errors.NewInvalidResponseError("[GetBundleStatuses] failed to decode response", err)
	}

	if resp.Error != nil {
		return nil, errors.NewServiceError("[GetBundleStatuses] rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	if resp.Result == nil {
		return nil, errors.NewInvalidResponseError("[GetBundleStatuses] response has no result")
	}

	statuses := make([]*BundleStatus, 0, len(resp.Result.Value))

	for _, status := range resp.Result.Value {
		if status != nil {
			statuses = append(statuses, status)
		}
	}

	return statuses, nil
}
