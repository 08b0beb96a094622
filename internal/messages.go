package internal

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	ANY_MESSAGE    = ""
	RUN_MESSAGE    = "run"
	EVENT_MESSAGE  = "event"
	REPORT_MESSAGE = "report"
	ERROR_MESSAGE  = "error"
	HELLO_MESSAGE  = "hello"
)

type Frame struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// Run request sent by a watcher. No scenarios means all of them.
type RunMessage struct {
	Scenarios []string `json:"scenarios"`
}

// Outcome of one scenario in one round of a run
type Event struct {
	// Unix Timestamp
	Timestamp  uint64 `json:"timestamp"`
	Run        uint64 `json:"run"`
	Round      uint   `json:"round"`
	Scenario   string `json:"scenario"`
	Passed     bool   `json:"passed"`
	Detail     string `json:"detail,omitempty"`
	DurationUs int64  `json:"duration_us"`
}

// Summary sent after the last event of a run
type ReportMessage struct {
	Run    uint64 `json:"run"`
	Passed int    `json:"passed"`
	Failed int    `json:"failed"`
}

type ErrorMessage struct {
	Error string `json:"error"`
}

type HelloMessage struct {
	Watchers int    `json:"watchers"`
	Runs     uint64 `json:"runs"`
}

func ParseMessage(data []byte, expected string) (msgType string, msg interface{}, err error) {
	var frame Frame

	err = json.Unmarshal(data, &frame)
	if err != nil {
		return
	}

	msgType = frame.Type

	if expected != ANY_MESSAGE && frame.Type != expected {
		err = fmt.Errorf(
			"Expected message of type \"%s\" but got a message of type \"%s\"",
			expected, frame.Type)
		return
	}

	var m interface{}

	switch frame.Type {
	case RUN_MESSAGE:
		m = new(RunMessage)

	case EVENT_MESSAGE:
		m = new(Event)

	case REPORT_MESSAGE:
		m = new(ReportMessage)

	case ERROR_MESSAGE:
		m = new(ErrorMessage)

	case HELLO_MESSAGE:
		m = new(HelloMessage)

	default:
		err = fmt.Errorf("Unknown message type \"%s\"", frame.Type)
		return
	}

	if len(frame.Message) > 0 {
		err = json.Unmarshal(frame.Message, m)
		if err != nil {
			return
		}
	}

	msg = m

	return
}

func newFrame(msgType string, msg interface{}) ([]byte, error) {
	var frame Frame
	var err error

	frame.Type = msgType
	frame.Message, err = json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	return json.Marshal(frame)
}

func NewEvent(run uint64, result Result) Event {
	return Event{
		Timestamp:  uint64(time.Now().Unix()),
		Run:        run,
		Round:      result.Round,
		Scenario:   result.Scenario,
		Passed:     result.Passed,
		Detail:     result.Detail,
		DurationUs: result.Duration.Microseconds(),
	}
}

func NewEventMessage(event Event) ([]byte, error) {
	return newFrame(EVENT_MESSAGE, event)
}

func NewReportMessage(report *Report) ([]byte, error) {
	return newFrame(REPORT_MESSAGE, ReportMessage{
		Run:    report.Run,
		Passed: report.Passed,
		Failed: report.Failed,
	})
}

func NewHelloMessage(watchers int, runs uint64) ([]byte, error) {
	return newFrame(HELLO_MESSAGE, HelloMessage{
		Watchers: watchers,
		Runs:     runs,
	})
}

func NewErrorMessage(message string) ([]byte, error) {
	return newFrame(ERROR_MESSAGE, ErrorMessage{
		Error: message,
	})
}
