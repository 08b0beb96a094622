package internal

import (
	"bytes"
	"context"
	"log"
	"sync"
	"testing"

	"bno1/cflist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, config Config) (*Runner, *EventBuffer[[]byte], *bytes.Buffer) {
	t.Helper()

	var reports bytes.Buffer

	events := NewEventBuffer[[]byte](64)
	runner := NewRunner(NewVersionedBox(&config), events, log.New(&reports, "", 0))

	return runner, events, &reports
}

func TestRunAllScenarios(t *testing.T) {
	runner, events, reports := newTestRunner(t, DefaultConfig)

	report, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)

	for _, result := range report.Results {
		assert.True(t, result.Passed, "%s: %s", result.Scenario, result.Detail)
	}

	assert.Len(t, report.Results, len(ScenarioNames()))
	assert.Equal(t, len(report.Results), report.Passed)
	assert.Zero(t, report.Failed)

	// One event per result plus the closing report
	assert.EqualValues(t, len(report.Results)+1, events.Published())
	assert.Contains(t, reports.String(), "insert_erase: pass")
	assert.Contains(t, reports.String(), "run 1: 10 passed, 0 failed")

	stats := runner.Stats()
	assert.EqualValues(t, 1, stats.Runs)
	assert.EqualValues(t, report.Passed, stats.Passed)
}

func TestRunConcurrentWorkers(t *testing.T) {
	config := DefaultConfig
	config.InitialSize = 2000
	config.PopTimes = 1000
	config.PushTimes = 1000
	config.InsertTimes = 1000
	config.EraseTimes = 1000
	config.Workers = 4
	config.Rounds = 2

	runner, _, _ := newTestRunner(t, config)

	report, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)

	for _, result := range report.Results {
		assert.True(t, result.Passed, "round %d %s: %s",
			result.Round, result.Scenario, result.Detail)
	}

	assert.Len(t, report.Results, 2*len(ScenarioNames()))
}

func TestRunSelectedScenarios(t *testing.T) {
	runner, _, _ := newTestRunner(t, DefaultConfig)

	report, err := runner.Run(context.Background(), []string{"clear", " push_front"})
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, "push_front", report.Results[0].Scenario)
	assert.Equal(t, "clear", report.Results[1].Scenario)
}

func TestRunUnknownScenario(t *testing.T) {
	runner, _, _ := newTestRunner(t, DefaultConfig)

	_, err := runner.Run(context.Background(), []string{"push_front", "shuffle"})
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestRunInvalidConfig(t *testing.T) {
	config := DefaultConfig
	config.PopTimes = config.InitialSize * 2

	runner, _, _ := newTestRunner(t, config)

	_, err := runner.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunOneAtATime(t *testing.T) {
	runner, _, _ := newTestRunner(t, DefaultConfig)
	runner.running.Store(true)

	_, err := runner.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestRunCancelled(t *testing.T) {
	runner, _, _ := newTestRunner(t, DefaultConfig)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, runner.running.Load())
}

func TestGuardRecoversInvariantError(t *testing.T) {
	err := guard(func() error {
		panic(&cflist.InvariantError{Op: "pop_front"})
	})()

	assert.ErrorIs(t, err, cflist.ErrDoubleDelete)
	assert.ErrorContains(t, err, "invariant violated")
}

func TestGuardRepanicsOthers(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		guard(func() error { panic("boom") })()
	})
}

func TestScenarioFailureIsReported(t *testing.T) {
	broken := Scenario{
		Name: "broken",
		Run: func(ctx context.Context, list *cflist.List[int], config *Config) error {
			panic(&cflist.InvariantError{Op: "erase_after"})
		},
	}

	config := DefaultConfig
	result := runScenario(context.Background(), broken, cflist.New[int](), &config)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Detail, "erase_after")
}

func TestRunnersShareNothing(t *testing.T) {
	wg := sync.WaitGroup{}

	for i := 0; i < 4; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			runner, _, _ := newTestRunner(t, DefaultConfig)
			report, err := runner.Run(context.Background(), nil)
			assert.NoError(t, err)
			assert.Zero(t, report.Failed)
		}()
	}

	wg.Wait()
}
