package journal

import (
	"context"
	"net/url"
	"testing"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	for _, raw := range []string{"null:///", "sqlitememory:///journal"} {
		t.Run(raw, func(t *testing.T) {
			storeURL, err := url.Parse(raw)
			require.NoError(t, err)

			s, err := NewStore(ulogger.TestLogger{}, storeURL, t.TempDir())
			require.NoError(t, err)

			_, err = s.RecordSubmission(context.Background(), &model.Submission{RoundID: "r", Kind: model.SubmissionMine, Status: model.SubmissionRejected})
			require.NoError(t, err)

			_, err = s.Pending(context.Background(), 1)
			require.NoError(t, err)
			require.NoError(t, s.Close())
		})
	}

	storeURL, err := url.Parse("redis://localhost")
	require.NoError(t, err)

	_, err = NewStore(ulogger.TestLogger{}, storeURL, t.TempDir())
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
