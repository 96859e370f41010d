package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/btcsuite/btcd/btcec/v2"
	"go.uber.org/zap"

	"github.com/calderaledger/caldera/app/services/node/handlers"
	"github.com/calderaledger/caldera/foundation/blockchain/archive"
	"github.com/calderaledger/caldera/foundation/blockchain/peer"
	"github.com/calderaledger/caldera/foundation/blockchain/signature"
	"github.com/calderaledger/caldera/foundation/blockchain/state"
	"github.com/calderaledger/caldera/foundation/blockchain/worker"
	"github.com/calderaledger/caldera/foundation/events"
	"github.com/calderaledger/caldera/foundation/logger"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		}
		State struct {
			NodeID      string   `conf:"default:node1"`
			KeyPath     string   `conf:"default:zblock/keys/miner.key"`
			ArchivePath string   `conf:"default:zblock/archive.db"`
			KnownPeers  []string `conf:"default:0.0.0.0:9080;0.0.0.0:9180"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	fmt.Println(`   ____    _    _     ____  _____ ____      _    `)
	fmt.Println(`  / ___|  / \  | |   |  _ \| ____|  _ \    / \   `)
	fmt.Println(` | |     / _ \ | |   | | | |  _| | |_) |  / _ \  `)
	fmt.Println(` | |___ / ___ \| |___| |_| | |___|  _ <  / ___ \ `)
	fmt.Println(`  \____/_/   \_\_____|____/|_____|_| \_\/_/   \_\`)
	fmt.Print("\n")

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Blockchain Support

	// Load the private key for the configured miner so the address can be
	// credited with rewards and fees. A missing key file gets a fresh key
	// so a new node can start cold.
	privateKey, err := loadOrCreateKey(cfg.State.KeyPath)
	if err != nil {
		return fmt.Errorf("unable to load private key for node: %w", err)
	}
	minerAddress := signature.PublicKeyToAddress(privateKey.PubKey())
	log.Infow("startup", "status", "miner address", "address", minerAddress)

	// A peer set is a collection of known nodes in the network so
	// transactions and blocks can be shared.
	peerSet := peer.NewSet()
	for _, host := range cfg.State.KnownPeers {
		peerSet.Add(peer.New(host))
	}

	// The blockchain packages accept a function of this signature to allow
	// the application to log. These raw messages are also sent to any
	// websocket client connected through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The archive persists finalized blocks off the critical path for
	// query and analytics.
	if err := os.MkdirAll(filepath.Dir(cfg.State.ArchivePath), 0o755); err != nil {
		return fmt.Errorf("unable to create archive folder: %w", err)
	}
	arc, err := archive.New(cfg.State.ArchivePath, ev)
	if err != nil {
		return fmt.Errorf("unable to open archive: %w", err)
	}
	defer arc.Close()

	// The state value represents the blockchain node: it manages the
	// chain, the unspent output set, and the mempool, and provides an API
	// for application support.
	st, err := state.New(state.Config{
		MinerAddress: minerAddress,
		NodeID:       cfg.State.NodeID,
		Host:         cfg.Web.PrivateHost,
		KnownPeers:   peerSet,
		Archive:      arc,
		EvHandler:    ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	// The worker package implements the different workflows such as
	// mining, transaction peer sharing, and peer updates. The worker will
	// register itself with the state.
	worker.Run(st, ev)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, handlers.DebugMux()); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Evts:     evts,
	})

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	privateMux := handlers.PrivateMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
	})

	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      privateMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPrv := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPrv()

		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// loadOrCreateKey reads the hex encoded miner key, generating and saving
// a fresh one when the file does not exist yet.
func loadOrCreateKey(path string) (*btcec.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return signature.PrivateKeyFromHex(strings.TrimSpace(string(data)))
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	privateKey, err := signature.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(signature.PrivateKeyToHex(privateKey)), 0o600); err != nil {
		return nil, err
	}

	return privateKey, nil
}
