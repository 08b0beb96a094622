package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	. "bno1/cflist/internal"
)

type void struct{}

const defaultConfigFilePath = "config.ini"

type Context struct {
	configFilePath      string
	configBox           *VersionedBox[*Config]
	aclBox              *VersionedBox[*AccessList]
	logConfig           *LogConfiguration
	signalChannel       chan os.Signal
	reloadConfigChannel chan void

	serverCtx *ServerContext
}

func (ctx *Context) handleSignals(server *http.Server) {
	for {
		sig := <-ctx.signalChannel

		switch sig {
		case syscall.SIGUSR1:
			// Reload config
			ctx.reloadConfigChannel <- void{}

		case syscall.SIGINT, syscall.SIGTERM:
			log.Printf("got %v, shutting down", sig)

			shutdownCtx, cancel := context.WithTimeout(
				context.Background(), 5*time.Second)
			server.Shutdown(shutdownCtx)
			cancel()

			return
		}
	}
}

func (ctx *Context) reloadConfig() {
	config, err := ReadConfig(ctx.configFilePath, &DefaultConfig)
	if err != nil {
		log.Printf("Failed to reload config: %v", err)
		return
	}

	err = config.ValidateStress()
	if err != nil {
		log.Printf("Rejected config: %v", err)
		return
	}

	log.Printf("Got config: %+v", config)

	ctx.configBox.UpdateValue(&config)
	ctx.logConfig.Update()

	acl, err := LoadAccessList(config.BlacklistPath, config.WhitelistPath)
	if err != nil {
		log.Printf("Failed to load access lists: %v", err)
		return
	}

	log.Printf("Got access lists: %d denied, %d allowed ranges",
		acl.Deny.Len(), acl.Allow.Len())

	ctx.aclBox.UpdateValue(&acl)

	if ctx.serverCtx != nil {
		ctx.serverCtx.NotifyConfigUpdate()
	}
}

func (ctx *Context) handleConfigUpdates() {
	for {
		<-ctx.reloadConfigChannel
		ctx.reloadConfig()
	}
}

// runOnce prints one line per scenario the way the smoke test did and
// reports whether all of them passed.
func runOnce(runner *Runner, names []string) bool {
	report, err := runner.Run(context.Background(), names)
	if err != nil {
		log.Printf("error: %v", err)
		return false
	}

	for _, result := range report.Results {
		if result.Passed {
			fmt.Printf("%s: pass\n", result.Scenario)
		} else {
			fmt.Printf("%s: FAIL: %s\n", result.Scenario, result.Detail)
		}
	}

	return report.Failed == 0
}

func main() {
	configPath := flag.String("config", defaultConfigFilePath,
		"INI or YAML config file")
	once := flag.Bool("once", false,
		"run the scenarios once, print the results and exit")
	scenarioList := flag.String("scenarios", "",
		"with -once, comma separated scenarios to run, all if empty: "+
			strings.Join(ScenarioNames(), ","))
	flag.Parse()

	var names []string
	if *scenarioList != "" {
		names = strings.Split(*scenarioList, ",")
	}

	defaultConfig := DefaultConfig
	emptyACL := EmptyAccessList()

	ctx := Context{
		configFilePath:      *configPath,
		configBox:           NewVersionedBox(&defaultConfig),
		aclBox:              NewVersionedBox(&emptyACL),
		signalChannel:       make(chan os.Signal, 10),
		reloadConfigChannel: make(chan void),
	}

	ctx.logConfig = NewLogConfiguration(ctx.configBox.GetHandle())
	defer ctx.logConfig.Close()

	// Load configuration
	if _, err := os.Stat(ctx.configFilePath); err == nil {
		ctx.reloadConfig()
	} else {
		log.Printf("No config at %s, using defaults", ctx.configFilePath)
		ctx.logConfig.Update()
	}

	events := NewEventBuffer[[]byte](256)
	runner := NewRunner(ctx.configBox, events, ctx.logConfig.ReportLogger)

	if *once {
		if !runOnce(runner, names) {
			ctx.logConfig.Close()
			os.Exit(1)
		}

		return
	}

	ctx.serverCtx = NewServerContext(ctx.configBox, ctx.aclBox, events, runner)

	server := &http.Server{
		Addr:    ctx.configBox.Value().ListenAddr,
		Handler: ctx.serverCtx.Handler(),
	}

	signal.Notify(ctx.signalChannel, syscall.SIGUSR1, syscall.SIGINT, syscall.SIGTERM)

	// Start config updater
	go ctx.handleConfigUpdates()

	// Start signal handler
	go ctx.handleSignals(server)

	ctx.serverCtx.Start()

	log.Printf("http server started on %s", server.Addr)
	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("ListenAndServe: ", err)
	}

	ctx.serverCtx.Shutdown()
}
