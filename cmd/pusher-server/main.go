// Command pusher-server is the process entrypoint: it loads configuration,
// builds the logger, wires the reactor/pool/client-engine/command-table
// composition root and runs the event loop until a termination signal
// arrives, matching main()'s role in server.c.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FX-HAO/pusher/internal/config"
	"github.com/FX-HAO/pusher/internal/logx"
	"github.com/FX-HAO/pusher/internal/server"
)

const version = "0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("pusher-server", flag.ContinueOnError)
	var (
		configPath  string
		port        int
		showVersion bool
	)
	fs.StringVar(&configPath, "config", "", "configuration file path (YAML)")
	fs.IntVar(&port, "port", 0, "listen port, overrides the config file's port when non-zero")
	fs.BoolVar(&showVersion, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}
	if showVersion {
		fmt.Println("pusher-server " + version)
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pusher-server: loading config: %v\n", err)
		return 1
	}
	if port != 0 {
		cfg.Port = port
	}

	log := logx.New(time.Minute, 1)

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Warning("startup failed: %v", err)
		return 1
	}
	defer srv.Close()

	if err := srv.Listen(); err != nil {
		log.Warning("listen failed: %v", err)
		return 1
	}

	installSignalHandlers(srv, log)

	log.Notice("pusher-server %s ready", version)
	srv.Loop().Main()
	return 0
}

// installSignalHandlers ignores SIGHUP and SIGPIPE (a detached daemon has no
// controlling terminal to hang up on, and a client resetting its connection
// must not kill the process) and wires SIGINT/SIGTERM to log and request a
// graceful Loop.Stop, matching initServer's sigaction setup and
// sigShutdownHandler's log-before-exit behavior.
func installSignalHandlers(srv *server.Server, log *logx.Logger) {
	signal.Ignore(syscall.SIGHUP, syscall.SIGPIPE)

	term := make(chan os.Signal, 1)
	signal.Notify(term, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-term
		log.Warning("received signal %s, scheduling shutdown", sig)
		srv.Loop().Stop()
	}()
}
