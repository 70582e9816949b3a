// playspace-mover lets the user drag their VR playspace around by holding a
// controller button and moving the hand, the way one would grab and pull the
// world. It talks to the tracking runtime and a device offset injection
// service, and can serve a small status page and keep a grab journal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/pflag"

	"github.com/banshee-data/playspace-mover/internal/api"
	"github.com/banshee-data/playspace-mover/internal/config"
	"github.com/banshee-data/playspace-mover/internal/journal"
	"github.com/banshee-data/playspace-mover/internal/monitoring"
	"github.com/banshee-data/playspace-mover/internal/playspace"
	"github.com/banshee-data/playspace-mover/internal/sim"
	"github.com/banshee-data/playspace-mover/internal/timeutil"
	"github.com/banshee-data/playspace-mover/internal/version"
	"github.com/banshee-data/playspace-mover/internal/vr"
)

const programName = "playspace-mover"

// cliOptions holds parsed command line flags. Flags that were not given on
// the command line leave the config file values alone.
type cliOptions struct {
	configPath string
	leftMask   uint64
	rightMask  uint64
	sim        bool
	scenario   string
	listen     string
	journal    string
	verbose    bool
	help       bool
	version    bool

	flags *pflag.FlagSet
}

func newFlagSet(opts *cliOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Uint64VarP(&opts.leftMask, "leftButtonMask", "l", config.DefaultButtonMask, "left controller button mask that grabs the playspace")
	fs.Uint64VarP(&opts.rightMask, "rightButtonMask", "r", config.DefaultButtonMask, "right controller button mask that grabs the playspace")
	fs.BoolVarP(&opts.help, "help", "h", false, "print help")
	fs.BoolVarP(&opts.version, "version", "v", false, "print version information")
	fs.StringVar(&opts.configPath, "config", "", "path to a JSON config file")
	fs.BoolVar(&opts.sim, "sim", false, "run against the built-in simulated headset")
	fs.StringVar(&opts.scenario, "scenario", "", "YAML scenario for --sim (default: built-in)")
	fs.StringVar(&opts.listen, "listen", "", "status server address, e.g. localhost:8090")
	fs.StringVar(&opts.journal, "journal", "", "sqlite file for the grab journal")
	fs.BoolVar(&opts.verbose, "verbose", false, "log every frame")
	return fs
}

func parseArgs(args []string) (*cliOptions, error) {
	opts := &cliOptions{}
	opts.flags = newFlagSet(opts)
	if err := opts.flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.help = true
			return opts, nil
		}
		return nil, err
	}
	if rest := opts.flags.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, nil
}

// resolveConfig loads the config file, if any, and lays explicit flags over
// it.
func resolveConfig(opts *cliOptions) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.flags.Changed("leftButtonMask") {
		cfg.LeftButtonMask = &opts.leftMask
	}
	if opts.flags.Changed("rightButtonMask") {
		cfg.RightButtonMask = &opts.rightMask
	}
	if opts.flags.Changed("listen") {
		cfg.Listen = &opts.listen
	}
	if opts.flags.Changed("journal") {
		cfg.JournalPath = &opts.journal
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newBackend returns the collaborators the mover drives.
func newBackend(opts *cliOptions, clock timeutil.Clock) (vr.Backend, error) {
	if !opts.sim {
		// Only the simulator ships; a native backend implements vr.Backend.
		return nil, errors.New("no native tracking runtime backend in this build; run with --sim")
	}
	sc := sim.DefaultScenario()
	if opts.scenario != "" {
		var err error
		if sc, err = sim.LoadScenario(opts.scenario); err != nil {
			return nil, err
		}
	}
	s, err := sc.Build(clock)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	s.SetAutoFrames(true)
	log.Printf("using simulated headset (scenario %q, %d devices)", sc.Name, len(sc.Devices))
	return s, nil
}

// app is a started mover with its observers and HTTP surface.
type app struct {
	cfg     *config.Config
	mover   *playspace.Mover
	status  *api.Server
	journal *journal.Journal
	handler http.Handler
}

func newApp(ctx context.Context, cfg *config.Config, backend vr.Backend, clock timeutil.Clock) (*app, error) {
	log.Print("Looking for the tracking runtime and the offset injection service...")
	session, err := playspace.Startup(ctx, clock, backend, cfg.GetRetryInterval())
	if err != nil {
		return nil, err
	}

	opts := playspace.OptionsFromConfig(cfg)
	opts.Clock = clock
	a := &app{
		cfg:    cfg,
		mover:  playspace.NewFromSession(session, opts),
		status: api.NewServer(clock, cfg.GetHistorySize()),
	}
	log.Printf("chaperone standing origin at %v", session.Chaperone.Translation())
	a.status.Version = version.Version
	a.mover.AddObserver(a.status)

	mux := a.status.ServeMux()
	a.status.AttachAdminRoutes(mux)

	if path := cfg.GetJournalPath(); path != "" {
		j, err := journal.Open(path)
		if err != nil {
			return nil, err
		}
		a.journal = j
		a.mover.AddObserver(j)
		j.AttachRoutes(mux)
		if err := j.AttachAdminRoutes(mux); err != nil {
			j.Close()
			return nil, err
		}
		log.Printf("grab journal at %s", path)
	}

	a.handler = api.LoggingMiddleware(mux)
	return a, nil
}

// Close flushes and closes the journal.
func (a *app) Close() error {
	if a.journal == nil {
		return nil
	}
	err := a.journal.Close()
	if n := a.journal.Dropped(); n > 0 {
		log.Printf("grab journal dropped %d sessions", n)
	}
	return err
}

// run drives the frame loop and, when an address is configured, the status
// server until ctx is done or the loop fails.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var loopErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				sentry.CurrentHub().Recover(r)
				loopErr = fmt.Errorf("frame loop panic: %v", r)
			}
			log.Print("frame loop terminated")
		}()
		if err := a.mover.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			loopErr = err
		}
	}()

	if addr := a.cfg.GetListen(); addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.serve(ctx, addr)
		}()
	}

	wg.Wait()
	return loopErr
}

func (a *app) serve(ctx context.Context, addr string) {
	server := &http.Server{
		Addr:    addr,
		Handler: a.handler,
	}

	go func() {
		log.Printf("status server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
}

func initSentry(dsn string) (flush func(), err error) {
	if dsn == "" {
		return func() {}, nil
	}
	err = sentry.Init(sentry.ClientOptions{
		Dsn:     dsn,
		Release: programName + "@" + version.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if opts.help {
		printHelp(stdout, opts.flags)
		return nil
	}
	if opts.version {
		fmt.Fprintln(stdout, version.String(programName))
		return nil
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	monitoring.SetVerbose(opts.verbose)

	flush, err := initSentry(cfg.GetSentryDSN())
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := timeutil.RealClock{}
	backend, err := newBackend(opts, clock)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, backend, clock)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("closing journal: %v", err)
		}
	}()

	err = a.run(ctx)
	log.Printf("Graceful shutdown complete")
	return err
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
