package blockengine

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/settings"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStatusURL = "https://engine.test/api/v1/bundles"

func newTestStatusClient(t *testing.T) *StatusClient {
	t.Helper()

	s, err := NewStatusClient(ulogger.TestLogger{}, &settings.Settings{
		BlockEngine: settings.BlockEngineSettings{StatusURL: testStatusURL},
		RPC:         settings.RPCSettings{Timeout: time.Second},
	})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(s.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return s
}

func TestGetBundleStatuses(t *testing.T) {
	s := newTestStatusClient(t)

	var requested []interface{}

	httpmock.RegisterResponder(http.MethodPost, testStatusURL, func(req *http.Request) (*http.Response, error) {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}

		var r struct {
			Method string          `json:"method"`
			Params [][]interface{} `json:"params"`
		}

		if err = json.Unmarshal(b, &r); err != nil || r.Method != "getBundleStatuses" {
			return httpmock.NewStringResponse(http.StatusBadRequest, "bad request"), nil
		}

		requested = r.Params[0]

		return httpmock.NewStringResponse(http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":10},"value":[
			{"bundle_id":"a","transactions":["sig1"],"slot":9,"confirmation_status":"finalized","err":{"Ok":null}},
			null,
			{"bundle_id":"c","transactions":["sig3"],"slot":9,"confirmation_status":"confirmed","err":{"InstructionError":[0,{"Custom":3}]}}
		]}}`), nil
	})

	statuses, err := s.GetBundleStatuses(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, []interface{}{"a", "b", "c"}, requested)
	require.Len(t, statuses, 2)

	assert.Equal(t, "a", statuses[0].BundleID)
	assert.Equal(t, "finalized", statuses[0].ConfirmationStatus)
	assert.False(t, statuses[0].Failed())

	assert.Equal(t, "c", statuses[1].BundleID)
	assert.True(t, statuses[1].Failed())
}

func TestGetBundleStatusesErrors(t *testing.T) {
	s := newTestStatusClient(t)

	statuses, err := s.GetBundleStatuses(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, statuses)

	_, err = s.GetBundleStatuses(context.Background(), make([]string, MaxStatusBatch+1))
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	httpmock.RegisterResponder(http.MethodPost, testStatusURL,
		httpmock.NewStringResponder(http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"bundle ids are invalid"}}`))

	_, err = s.GetBundleStatuses(context.Background(), []string{"x"})
	assert.True(t, errors.Is(err, errors.ErrServiceError))

	httpmock.RegisterResponder(http.MethodPost, testStatusURL, httpmock.NewStringResponder(http.StatusTooManyRequests, "slow down"))

	_, err = s.GetBundleStatuses(context.Background(), []string{"x"})
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))
}

func TestNewStatusClientRequiresURL(t *testing.T) {
	_, err := NewStatusClient(ulogger.TestLogger{}, &settings.Settings{})
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
