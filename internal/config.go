package internal

type Config struct {
	// Number of nodes pushed before the scenarios that need a filled list
	InitialSize uint `section:"Stress"`

	// How many push_front calls race the poppers in push_pop
	PushTimes uint `section:"Stress"`

	// How many pop_front calls race the pushers in push_pop
	PopTimes uint `section:"Stress"`

	// Successful insert_after calls required in insert_erase
	InsertTimes uint `section:"Stress"`

	// Successful erase_after calls required in insert_erase
	EraseTimes uint `section:"Stress"`

	// Goroutines on each side of a concurrent scenario
	Workers uint `section:"Stress"`

	// How many times a run repeats the selected scenarios
	Rounds uint `section:"Stress"`

	// Address the HTTP server listens on
	ListenAddr string `section:"Server"`

	// Max websocket message length
	MaxSocketMessageLen uint64 `section:"Server"`

	// Max number of runs per second a watcher can request
	MaxRunsPerSec float64 `section:"Server"`

	// Max number of runs a watcher can request faster than MaxRunsPerSec
	// before MaxRunsPerSec kicks in.
	MaxRunsBurst uint `section:"Server"`

	// Max number of runs per second accepted on POST /run from all clients
	HTTPRunsPerSec float64 `section:"Server"`

	// How many past events are replayed to a new watcher. Values larger than
	// the event buffer size have no effect.
	BacklogLength uint `section:"Server"`

	// How often closed watchers are unlinked from the watcher list
	SweepIntervalMs uint `section:"Server"`

	// Files with one IP or CIDR per line, '#' starts a comment
	BlacklistPath string `section:"Access"`
	WhitelistPath string `section:"Access"`

	// Log files, empty means stdout
	ErrorLog  string `section:"Logging"`
	ReportLog string `section:"Logging"`
}

var DefaultConfig = Config{
	// Stress
	InitialSize: 100,
	PushTimes:   10,
	PopTimes:    20,
	InsertTimes: 30,
	EraseTimes:  20,
	Workers:     1,
	Rounds:      1,

	// Server
	ListenAddr:          ":8000",
	MaxSocketMessageLen: 4096,
	MaxRunsPerSec:       0.2,
	MaxRunsBurst:        2,
	HTTPRunsPerSec:      1.0,
	BacklogLength:       20,
	SweepIntervalMs:     1000,
}
