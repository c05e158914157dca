package mocklogger

import (
	"sync"
	"testing"

	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/stretchr/testify/assert"
)

func TestRecordsCallsAndMessages(t *testing.T) {
	logger := NewTestLogger()

	logger.Debugf("debug")
	logger.Infof("bundle %s accepted", "abc")
	logger.Infof("round %d", 2)
	logger.Errorf("auth failed %d times", 3)

	logger.AssertNumberOfCalls(t, "Debugf", 1)
	logger.AssertNumberOfCalls(t, "Infof", 2)
	logger.AssertNumberOfCalls(t, "Warnf", 0)
	assert.True(t, logger.Contains("Infof", "bundle abc accepted"))
	assert.True(t, logger.Contains("Errorf", "3 times"))
	assert.False(t, logger.Contains("Warnf", "anything"))

	logger.Reset()
	logger.AssertNumberOfCalls(t, "Infof", 0)
	assert.False(t, logger.Contains("Infof", "bundle"))
}

func TestNewAndDuplicate(t *testing.T) {
	logger := NewTestLogger()

	child := logger.New("miner", ulogger.WithLevel("DEBUG"))
	child.Infof("child")
	logger.AssertNumberOfCalls(t, "Infof", 0)

	dup := logger.Duplicate(ulogger.WithLevel("DEBUG"))
	dup.Infof("dup")
	logger.AssertNumberOfCalls(t, "Infof", 1)
}

func TestConcurrentAccess(t *testing.T) {
	logger := NewTestLogger()

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 10; j++ {
				logger.Warnf("hash rate %d", j)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 500, logger.Calls("Warnf"))
}
