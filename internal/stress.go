package internal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"bno1/cflist"

	"golang.org/x/sync/errgroup"
)

var (
	ErrRunInProgress   = errors.New("a run is already in progress")
	ErrUnknownScenario = errors.New("unknown scenario")
)

// Scenario exercises a list and returns an error describing the first
// property that did not hold.
type Scenario struct {
	Name string
	Run  func(ctx context.Context, list *cflist.List[int], config *Config) error
}

type Result struct {
	Scenario string        `json:"scenario"`
	Round    uint          `json:"round"`
	Passed   bool          `json:"passed"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

type Report struct {
	Run     uint64   `json:"run"`
	Results []Result `json:"results"`
	Passed  int      `json:"passed"`
	Failed  int      `json:"failed"`
}

var scenarios = []Scenario{
	{"push_front", scenarioPushFront},
	{"pop_front", scenarioPopFront},
	{"push_parallel", scenarioPushParallel},
	{"push_pop", scenarioPushPop},
	{"insert_after", scenarioInsertAfter},
	{"erase_after", scenarioEraseAfter},
	{"erase_race", scenarioEraseRace},
	{"stale_iterator", scenarioStaleIterator},
	{"insert_erase", scenarioInsertErase},
	{"clear", scenarioClear},
}

func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		names = append(names, s.Name)
	}

	return names
}

// selectScenarios keeps the order of the registry, not of names.
func selectScenarios(names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return scenarios, nil
	}

	known := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		known[s.Name] = true
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if !known[name] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
		}

		wanted[name] = true
	}

	selected := make([]Scenario, 0, len(wanted))
	for _, s := range scenarios {
		if wanted[s.Name] {
			selected = append(selected, s)
		}
	}

	return selected, nil
}

// ValidateStress checks that the stress parameters describe runs that can
// terminate: every required pop and erase must find a node to remove.
func (config *Config) ValidateStress() error {
	if config.InitialSize < 2 {
		return fmt.Errorf("InitialSize must be at least 2, got %d",
			config.InitialSize)
	}

	if config.PopTimes > config.InitialSize {
		return fmt.Errorf("PopTimes %d exceeds InitialSize %d",
			config.PopTimes, config.InitialSize)
	}

	if config.EraseTimes+2 > config.InitialSize {
		return fmt.Errorf("EraseTimes %d leaves fewer than 2 of %d nodes",
			config.EraseTimes, config.InitialSize)
	}

	if config.Workers == 0 {
		return fmt.Errorf("Workers must be positive")
	}

	return nil
}

// Runner executes scenarios one run at a time and publishes every result to
// the event buffer as an encoded frame.
type Runner struct {
	configBox    *VersionedBox[*Config]
	events       *EventBuffer[[]byte]
	reportLogger *log.Logger

	running atomic.Bool
	runs    atomic.Uint64
	passed  atomic.Uint64
	failed  atomic.Uint64
}

func NewRunner(
	configBox *VersionedBox[*Config],
	events *EventBuffer[[]byte],
	reportLogger *log.Logger,
) *Runner {
	return &Runner{
		configBox:    configBox,
		events:       events,
		reportLogger: reportLogger,
	}
}

type RunnerStats struct {
	Runs   uint64 `json:"runs"`
	Passed uint64 `json:"passed"`
	Failed uint64 `json:"failed"`
}

func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Runs:   r.runs.Load(),
		Passed: r.passed.Load(),
		Failed: r.failed.Load(),
	}
}

// Run executes the named scenarios, all of them if names is empty, Rounds
// times on a fresh list each round.
func (r *Runner) Run(ctx context.Context, names []string) (*Report, error) {
	selected, err := selectScenarios(names)
	if err != nil {
		return nil, err
	}

	config := r.configBox.Value()

	err = config.ValidateStress()
	if err != nil {
		return nil, fmt.Errorf("invalid stress config: %w", err)
	}

	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	report := &Report{Run: r.runs.Add(1)}

	for round := uint(1); round <= config.Rounds; round++ {
		list := cflist.New[int]()

		for _, s := range selected {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}

			result := runScenario(ctx, s, list, config)
			result.Round = round

			r.record(report, result)
		}
	}

	frame, err := NewReportMessage(report)
	if err != nil {
		log.Printf("error: %v", err)
	} else {
		r.events.Put(frame)
	}

	r.reportLogger.Printf("run %d: %d passed, %d failed",
		report.Run, report.Passed, report.Failed)

	return report, nil
}

func (r *Runner) record(report *Report, result Result) {
	report.Results = append(report.Results, result)

	status := "pass"
	if result.Passed {
		report.Passed++
		r.passed.Add(1)
	} else {
		report.Failed++
		r.failed.Add(1)
		status = "FAIL: " + result.Detail
	}

	r.reportLogger.Printf("run %d round %d %s: %s (%v)",
		report.Run, result.Round, result.Scenario, status, result.Duration)

	frame, err := NewEventMessage(NewEvent(report.Run, result))
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	r.events.Put(frame)
}

func runScenario(
	ctx context.Context,
	s Scenario,
	list *cflist.List[int],
	config *Config,
) Result {
	start := time.Now()

	err := guard(func() error {
		return s.Run(ctx, list, config)
	})()

	result := Result{
		Scenario: s.Name,
		Passed:   err == nil,
		Duration: time.Since(start),
	}

	if err != nil {
		result.Detail = err.Error()
	}

	return result
}

// guard turns a broken list invariant raised inside f into an error. Any
// other panic is not ours to handle and keeps unwinding.
func guard(f func() error) func() error {
	return func() (err error) {
		defer recoverInvariant(&err)
		return f()
	}
}

func recoverInvariant(err *error) {
	r := recover()
	if r == nil {
		return
	}

	ierr, ok := r.(*cflist.InvariantError)
	if !ok {
		panic(r)
	}

	*err = fmt.Errorf("invariant violated: %w", ierr)
}

func refill(list *cflist.List[int], n int) {
	list.Clear()

	for i := 1; i <= n; i++ {
		list.PushFront(i)
	}
}

// refillAscending leaves 0..n-1 in order from the head.
func refillAscending(list *cflist.List[int], n int) {
	list.Clear()

	for i := n - 1; i >= 0; i-- {
		list.PushFront(i)
	}
}

func expectLen(list *cflist.List[int], expected int) error {
	if actual := list.Len(); actual != expected {
		return fmt.Errorf("expected %d nodes, found %d", expected, actual)
	}

	return nil
}

func scenarioPushFront(ctx context.Context, list *cflist.List[int], config *Config) error {
	n := int(config.InitialSize)
	refill(list, n)

	sum := 0
	for it := list.CBegin(); !it.IsEnd(); it = it.Next() {
		if !it.Valid() {
			return fmt.Errorf("position of %d is not valid", it.Value())
		}

		sum += it.Value()
	}

	if expected := n * (n + 1) / 2; sum != expected {
		return fmt.Errorf("expected sum %d, got %d", expected, sum)
	}

	return nil
}

func scenarioPopFront(ctx context.Context, list *cflist.List[int], config *Config) error {
	n := int(config.InitialSize)
	refill(list, n)

	if !list.PopFront() {
		return fmt.Errorf("pop_front on a list of %d returned false", n)
	}

	front, ok := list.Front()
	if !ok || front != n-1 {
		return fmt.Errorf("expected front %d after pop, got %d", n-1, front)
	}

	list.PushFront(n)

	return expectLen(list, n)
}

func scenarioPushParallel(ctx context.Context, list *cflist.List[int], config *Config) error {
	workers := int(config.Workers) * 2
	perWorker := int(config.InitialSize)

	list.Clear()

	g, ctx := errgroup.WithContext(ctx)
	start := make(chan struct{})

	for w := 0; w < workers; w++ {
		first := w * perWorker

		g.Go(guard(func() error {
			<-start

			for i := first; i < first+perWorker; i++ {
				list.PushFront(i)
			}

			return ctx.Err()
		}))
	}

	close(start)

	err := g.Wait()
	if err != nil {
		return err
	}

	seen := make([]bool, workers*perWorker)
	count := 0

	for v := range list.All() {
		if v < 0 || v >= len(seen) {
			return fmt.Errorf("unexpected value %d", v)
		}

		if seen[v] {
			return fmt.Errorf("value %d found twice", v)
		}

		seen[v] = true
		count++
	}

	if count != len(seen) {
		return fmt.Errorf("expected %d values, found %d", len(seen), count)
	}

	return nil
}

func scenarioPushPop(ctx context.Context, list *cflist.List[int], config *Config) error {
	n := int(config.InitialSize)
	refill(list, n)

	var popTimes, pushTimes atomic.Int64
	popTimes.Store(int64(config.PopTimes))
	pushTimes.Store(int64(config.PushTimes))

	expected := n - int(config.PopTimes) + int(config.PushTimes)

	g, ctx := errgroup.WithContext(ctx)

	for w := uint(0); w < config.Workers; w++ {
		g.Go(guard(func() error {
			for popTimes.Add(-1) >= 0 {
				if !list.PopFront() {
					return fmt.Errorf("pop_front found an empty list")
				}

				if ctx.Err() != nil {
					return ctx.Err()
				}
			}

			return nil
		}))

		g.Go(guard(func() error {
			for {
				i := pushTimes.Add(-1)
				if i < 0 {
					return nil
				}

				list.PushFront(int(i))

				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
		}))
	}

	err := g.Wait()
	if err != nil {
		return err
	}

	return expectLen(list, expected)
}

func scenarioInsertAfter(ctx context.Context, list *cflist.List[int], config *Config) error {
	n := int(config.InitialSize)

	list.Clear()
	list.PushFront(0)

	pos := list.CBegin()
	for i := 1; i < n; i++ {
		if !list.InsertAfter(pos, i) {
			return fmt.Errorf("insert_after failed at %d", i)
		}

		pos = pos.Next()
	}

	it := list.CBegin()
	for i := 0; i < n; i++ {
		if it.IsEnd() {
			return fmt.Errorf("list ended after %d values", i)
		}

		if v := it.Advance().Value(); v != i {
			return fmt.Errorf("expected %d at position %d, got %d", i, i, v)
		}
	}

	return expectLen(list, n)
}

func scenarioEraseAfter(ctx context.Context, list *cflist.List[int], config *Config) error {
	n := int(config.InitialSize)
	refillAscending(list, n)

	begin := list.CBegin()
	for i := 1; i < n; i++ {
		if !list.EraseAfter(begin) {
			return fmt.Errorf("erase_after failed at %d", i)
		}
	}

	if v := begin.Value(); v != 0 {
		return fmt.Errorf("expected front 0, got %d", v)
	}

	if list.EraseAfter(begin) {
		return fmt.Errorf("erase_after succeeded on the last node")
	}

	return expectLen(list, 1)
}

// Two goroutines erase after the same node of a two node list: exactly one
// of them may win.
func scenarioEraseRace(ctx context.Context, list *cflist.List[int], config *Config) error {
	for round := uint(0); round < config.InitialSize; round++ {
		refill(list, 2)

		var erased atomic.Int32

		g := errgroup.Group{}
		start := make(chan struct{})
		pos := list.CBegin()

		for i := 0; i < 2; i++ {
			g.Go(guard(func() error {
				<-start

				if list.EraseAfter(pos) {
					erased.Add(1)
				}

				return nil
			}))
		}

		close(start)

		err := g.Wait()
		if err != nil {
			return err
		}

		if erased.Load() != 1 {
			return fmt.Errorf("%d erasures of a single successor", erased.Load())
		}

		err = expectLen(list, 1)
		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return nil
}

func scenarioStaleIterator(ctx context.Context, list *cflist.List[int], config *Config) error {
	refillAscending(list, 3)

	begin := list.Begin()
	victim := begin.Next()

	if !list.EraseAfter(begin) {
		return fmt.Errorf("erase_after failed")
	}

	if victim.Valid() {
		return fmt.Errorf("iterator to an erased node is still valid")
	}

	if v := victim.Value(); v != 1 {
		return fmt.Errorf("erased node reads %d, expected 1", v)
	}

	if list.InsertAfter(victim, 42) {
		return fmt.Errorf("insert_after succeeded on an erased node")
	}

	return expectLen(list, 2)
}

func scenarioInsertErase(ctx context.Context, list *cflist.List[int], config *Config) error {
	refillAscending(list, int(config.InitialSize))

	expected := list.Len() + int(config.InsertTimes) - int(config.EraseTimes)

	var insertTimes, eraseTimes atomic.Int64
	insertTimes.Store(int64(config.InsertTimes))
	eraseTimes.Store(int64(config.EraseTimes))

	g, ctx := errgroup.WithContext(ctx)

	for w := uint(0); w < config.Workers; w++ {
		g.Go(guard(func() error {
			for eraseTimes.Add(-1) >= 0 {
				for !list.EraseAfter(list.CBegin()) {
					if ctx.Err() != nil {
						return ctx.Err()
					}
				}
			}

			return nil
		}))

		g.Go(guard(func() error {
			for {
				i := insertTimes.Add(-1)
				if i < 0 {
					return nil
				}

				for !list.InsertAfter(list.CBegin().Next(), int(i)) {
					if ctx.Err() != nil {
						return ctx.Err()
					}
				}
			}
		}))
	}

	err := g.Wait()
	if err != nil {
		return err
	}

	return expectLen(list, expected)
}

func scenarioClear(ctx context.Context, list *cflist.List[int], config *Config) error {
	if list.Empty() {
		refill(list, int(config.InitialSize))
	}

	list.Clear()

	if !list.Empty() {
		return fmt.Errorf("list not empty after clear")
	}

	return expectLen(list, 0)
}
