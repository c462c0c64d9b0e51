// Command node runs one peer-to-peer blockchain node: an HTTP server
// speaking the endpoints in spec.md §6, a proof-of-work consensus
// engine, and the periodic overlay/propagation/sync workers that keep it
// talking to the rest of the network.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/overlaychain/node/app/services/node/handlers"
	"github.com/overlaychain/node/foundation/blockchain/database"
	"github.com/overlaychain/node/foundation/blockchain/genesis"
	"github.com/overlaychain/node/foundation/blockchain/identity"
	"github.com/overlaychain/node/foundation/blockchain/overlay"
	"github.com/overlaychain/node/foundation/blockchain/propagator"
	"github.com/overlaychain/node/foundation/blockchain/state"
	"github.com/overlaychain/node/foundation/blockchain/worker"
	"github.com/overlaychain/node/foundation/events"
	"github.com/overlaychain/node/foundation/ipdiscovery"
	"github.com/overlaychain/node/foundation/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var build = "develop"

// cliFlags holds the identity-facing CLI surface, parsed by cobra since
// conf's flag model has no support for a positional argument.
type cliFlags struct {
	peer      string
	peers     string
	localhost bool
	stateFile string
	logLevel  string
}

func main() {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:          "node <port>",
		Short:        "run a peer-to-peer blockchain node",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], flags)
		},
	}

	root.Flags().StringVar(&flags.peer, "peer", "", "single bootstrap peer, ip:port")
	root.Flags().StringVar(&flags.peers, "peers", "", "comma-separated bootstrap peers, ip:port,ip:port")
	root.Flags().BoolVar(&flags.localhost, "localhost", false, "advertise 127.0.0.1 instead of discovering a public IP")
	root.Flags().StringVar(&flags.stateFile, "state-file", "zblock/peers.json", "known-peer snapshot path, empty disables snapshotting")
	root.Flags().StringVar(&flags.logLevel, "log-level", "info", "log level (accepted but not applied; the logger's level is fixed)")

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// nodeConfig holds the tunable internals, loaded with conf/v3 under the
// NODE prefix, separate from the identity-facing cobra flags.
type nodeConfig struct {
	conf.Version
	Genesis genesis.Genesis
	Web     struct {
		ReadTimeout     time.Duration `conf:"default:5s"`
		WriteTimeout    time.Duration `conf:"default:10s"`
		IdleTimeout     time.Duration `conf:"default:120s"`
		ShutdownTimeout time.Duration `conf:"default:2s"`
		DebugHost       string        `conf:"default:"`
	}
}

func run(portArg string, flags *cliFlags) error {
	log, err := logger.New("NODE")
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer log.Sync()

	cfg := nodeConfig{
		Version: conf.Version{Build: build, Desc: "overlay blockchain node"},
		Genesis: genesis.Default(),
	}

	help, err := conf.Parse("NODE", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	port := portArg
	if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("invalid port %q: %w", port, err)
	}

	ip, err := resolveIP(flags.localhost)
	if err != nil {
		log.Errorw("startup", "ERROR", err)
		return fmt.Errorf("determining public ip: %w", err)
	}

	nodeID := identity.New()

	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "nodeId", nodeID)
		evts.Send(s)
	}

	store := database.New(cfg.Genesis, ev)
	ov := overlay.New(nodeID, ev)
	st := state.New(nodeID, ip, port, store, ov, ev)
	prop := propagator.New(ov, ev)
	wkr := worker.New(st, prop, flags.stateFile)

	bootstrapAddrs := collectBootstrapAddrs(flags)

	if err := bootstrap(st, bootstrapAddrs, log); err != nil {
		log.Errorw("startup", "status", "bootstrap failed entirely, continuing standalone", "ERROR", err)
	}

	if len(bootstrapAddrs) == 0 && !st.Store.HasGenesis() {
		genBlock, err := database.NewGenesisBlock(nodeID)
		if err != nil {
			return fmt.Errorf("constructing genesis block: %w", err)
		}
		if _, err := st.Store.AddBlock(genBlock); err != nil {
			return fmt.Errorf("adding genesis block: %w", err)
		}
		log.Infow("startup", "status", "genesis block created", "hash", genBlock.Hash)
	}

	wkr.Start()
	defer wkr.Stop()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	apiMux := handlers.APIMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Evts:     evts,
		Worker:   wkr,
	})

	apiServer := http.Server{
		Addr:         ":" + port,
		Handler:      apiMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infow("startup", "status", "api server started", "addr", apiServer.Addr)
		serverErrors <- apiServer.ListenAndServe()
	}()

	if cfg.Web.DebugHost != "" {
		debugMux := handlers.DebugMux(build, log)
		go func() {
			if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
				log.Errorw("shutdown", "status", "debug server closed", "ERROR", err)
			}
		}()
	}

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete")

		evts.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(ctx); err != nil {
			apiServer.Close()
			return fmt.Errorf("could not stop api server gracefully: %w", err)
		}
	}

	return nil
}

func resolveIP(localhost bool) (string, error) {
	if localhost {
		return "127.0.0.1", nil
	}

	return ipdiscovery.Discover(context.Background(), "")
}

func collectBootstrapAddrs(flags *cliFlags) []string {
	var addrs []string

	if flags.peer != "" {
		addrs = append(addrs, flags.peer)
	}

	if flags.peers != "" {
		for _, addr := range strings.Split(flags.peers, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				addrs = append(addrs, addr)
			}
		}
	}

	return addrs
}

func bootstrap(st *state.State, addrs []string, log *zap.SugaredLogger) error {
	if len(addrs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), overlay.RequestTimeout*time.Duration(len(addrs)))
	defer cancel()

	result := st.Overlay.Bootstrap(ctx, addrs, st.IP, st.Port)

	var added int
	for _, b := range result.Blocks {
		if res, err := st.Store.AddBlock(b); err == nil && res == database.Added {
			added++
		}
	}
	for _, tx := range result.Transactions {
		st.Store.AddTransaction(tx)
	}

	log.Infow("startup", "status", "bootstrap complete", "peers", len(st.Overlay.KnownPeers()), "blocksAdded", added)

	if len(st.Overlay.KnownPeers()) == 0 {
		return errors.New("no bootstrap peer responded")
	}

	return nil
}
