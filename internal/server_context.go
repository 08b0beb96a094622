package internal

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bno1/cflist"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const writeTimeout = 10 * time.Second

type Watcher struct {
	conn *websocket.Conn

	writeLock sync.Mutex
	closed    atomic.Bool
	onceClose sync.Once
}

func (w *Watcher) write(frame []byte) error {
	w.writeLock.Lock()
	defer w.writeLock.Unlock()

	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	return w.conn.WriteMessage(websocket.TextMessage, frame)
}

type ServerContext struct {
	configBox *VersionedBox[*Config]
	aclBox    *VersionedBox[*AccessList]
	events    *EventBuffer[[]byte]
	runner    *Runner

	watchers  cflist.List[*Watcher] // every connected watcher, closed ones until swept
	nWatchers atomic.Int32          // open watchers

	httpLimiter *rate.Limiter
	upgrader    websocket.Upgrader

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewServerContext(
	configBox *VersionedBox[*Config],
	aclBox *VersionedBox[*AccessList],
	events *EventBuffer[[]byte],
	runner *Runner,
) *ServerContext {
	config := configBox.Value()

	baseCtx, cancel := context.WithCancel(context.Background())

	return &ServerContext{
		configBox: configBox,
		aclBox:    aclBox,
		events:    events,
		runner:    runner,

		httpLimiter: rate.NewLimiter(rate.Limit(config.HTTPRunsPerSec), 1),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},

		baseCtx: baseCtx,
		cancel:  cancel,
	}
}

// NotifyConfigUpdate applies the server-wide parts of a reloaded config.
// Watchers pick up their own parts through their config handles.
func (ctx *ServerContext) NotifyConfigUpdate() {
	config := ctx.configBox.Value()

	ctx.httpLimiter.SetLimit(rate.Limit(config.HTTPRunsPerSec))
}

func (ctx *ServerContext) closeWatcher(watcher *Watcher) {
	watcher.onceClose.Do(func() {
		watcher.closed.Store(true)
		ctx.events.WakeListeners()

		watcher.conn.Close()

		ctx.nWatchers.Add(-1)
	})
}

func (ctx *ServerContext) sendError(watcher *Watcher, message string) {
	frame, err := NewErrorMessage(message)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	err = watcher.write(frame)
	if err != nil {
		log.Printf("error: %v", err)
	}
}

// pump copies published frames to the watcher, starting at cursor.
func (ctx *ServerContext) pump(watcher *Watcher, cursor uint64) {
	defer ctx.wg.Done()
	defer ctx.closeWatcher(watcher)

	for {
		seq, frame, ok := ctx.events.Get(cursor, &watcher.closed)
		if !ok {
			return
		}

		cursor = seq + 1

		err := watcher.write(frame)
		if err != nil {
			if !watcher.closed.Load() {
				log.Printf("error: %v", err)
			}

			return
		}
	}
}

func (ctx *ServerContext) startRun(watcher *Watcher, names []string) {
	defer ctx.wg.Done()

	_, err := ctx.runner.Run(ctx.baseCtx, names)
	if err != nil {
		log.Printf("run requested by watcher failed: %v", err)
		ctx.sendError(watcher, err.Error())
	}
}

func (ctx *ServerContext) HandleConnection(ws *websocket.Conn) {
	watcher := &Watcher{conn: ws}

	configHandle := ctx.configBox.GetHandle()
	config, _ := configHandle.GetValue()

	ws.SetReadLimit(int64(config.MaxSocketMessageLen))

	bucket, err := NewTokenBucket(
		config.MaxRunsBurst,
		config.MaxRunsBurst,
		config.MaxRunsPerSec,
		time.Now())
	if err != nil {
		log.Printf("error %v", err)
		ws.Close()
		return
	}

	ctx.nWatchers.Add(1)
	defer ctx.closeWatcher(watcher)

	ctx.watchers.PushFront(watcher)

	hello, err := NewHelloMessage(int(ctx.nWatchers.Load()), ctx.runner.Stats().Runs)
	if err == nil {
		err = watcher.write(hello)
	}

	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	ctx.wg.Add(1)
	go ctx.pump(watcher, ctx.events.BacklogCursor(uint64(config.BacklogLength)))

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("connection closed: %v", err)
			}

			return
		}

		config, changed := configHandle.GetValue()
		if changed {
			ws.SetReadLimit(int64(config.MaxSocketMessageLen))
			bucket.UpdateParams(config.MaxRunsBurst, config.MaxRunsPerSec)
		}

		_, msg, err := ParseMessage(data, RUN_MESSAGE)
		if err != nil {
			ctx.sendError(watcher, err.Error())
			continue
		}

		if !bucket.Allow(time.Now()) {
			ctx.sendError(watcher, "Please wait before requesting another run")
			continue
		}

		ctx.wg.Add(1)
		go ctx.startRun(watcher, msg.(*RunMessage).Scenarios)
	}
}

// SweepClosed unlinks closed watchers and returns how many it removed. A
// closed watcher at the head of the list stays until a newer watcher is
// pushed in front of it, since only successors can be erased.
func (ctx *ServerContext) SweepClosed() int {
	removed := 0

	prev := ctx.watchers.Begin()
	if prev.IsEnd() {
		return 0
	}

	for {
		next := prev.Next()
		if next.IsEnd() {
			return removed
		}

		if !next.Value().closed.Load() {
			prev = next
			continue
		}

		if !ctx.watchers.EraseAfter(prev) {
			// Only the sweeper erases, so prev itself cannot be gone.
			return removed
		}

		removed++
	}
}

func (ctx *ServerContext) sweepLoop() {
	defer ctx.wg.Done()

	configHandle := ctx.configBox.GetHandle()
	config, _ := configHandle.GetValue()

	ticker := time.NewTicker(sweepInterval(config))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.baseCtx.Done():
			return
		case <-ticker.C:
		}

		if n := ctx.SweepClosed(); n > 0 {
			log.Printf("swept %d closed watchers", n)
		}

		if config, changed := configHandle.GetValue(); changed {
			ticker.Reset(sweepInterval(config))
		}
	}
}

func sweepInterval(config *Config) time.Duration {
	if config.SweepIntervalMs == 0 {
		return time.Second
	}

	return time.Duration(config.SweepIntervalMs) * time.Millisecond
}

type Stats struct {
	RunnerStats

	Watchers int32  `json:"watchers"`
	Listed   int    `json:"listed"`
	Events   uint64 `json:"events"`
}

func (ctx *ServerContext) GetStats() ([]byte, error) {
	return json.Marshal(Stats{
		RunnerStats: ctx.runner.Stats(),
		Watchers:    ctx.nWatchers.Load(),
		Listed:      ctx.watchers.Len(),
		Events:      ctx.events.Published(),
	})
}

func (ctx *ServerContext) checkAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acl := ctx.aclBox.Value()

		allowed, err := acl.Permits(ClientIP(r))
		if err != nil {
			log.Printf("error: %v", err)
		}

		if !allowed {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, msg []byte) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(msg)
}

func (ctx *ServerContext) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade initial GET request to a websocket
	ws, err := ctx.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("error %v", err)
		return
	}

	ctx.HandleConnection(ws)
}

func (ctx *ServerContext) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	msg, err := ctx.GetStats()
	if err != nil {
		log.Printf("Error: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (ctx *ServerContext) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !ctx.httpLimiter.Allow() {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	var names []string
	if param := r.URL.Query().Get("scenarios"); param != "" {
		names = strings.Split(param, ",")
	}

	report, err := ctx.runner.Run(r.Context(), names)

	status := http.StatusOK
	switch {
	case errors.Is(err, ErrRunInProgress):
		status = http.StatusConflict
	case errors.Is(err, ErrUnknownScenario):
		status = http.StatusBadRequest
	case err != nil:
		status = http.StatusInternalServerError
	}

	var msg []byte
	if err != nil {
		msg, err = json.Marshal(ErrorMessage{Error: err.Error()})
	} else {
		msg, err = json.Marshal(report)
	}

	if err != nil {
		log.Printf("Error: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, status, msg)
}

func (ctx *ServerContext) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/", http.FileServer(AssetFile()))
	mux.HandleFunc("/ws", ctx.handleWebsocket)
	mux.HandleFunc("/stats", ctx.handleStats)
	mux.HandleFunc("/run", ctx.handleRun)

	return ctx.checkAccess(mux)
}

func (ctx *ServerContext) Start() {
	ctx.wg.Add(1)
	go ctx.sweepLoop()
}

// Shutdown closes every watcher and waits for pumps, runs and the sweeper.
func (ctx *ServerContext) Shutdown() {
	ctx.cancel()

	ctx.watchers.Range(func(it cflist.Iterator[*Watcher]) bool {
		ctx.closeWatcher(it.Value())
		return true
	})

	ctx.wg.Wait()

	ctx.watchers.Clear()
}
