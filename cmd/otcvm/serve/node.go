// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	consensusctx "github.com/luxfi/consensus/context"
	consensuscore "github.com/luxfi/consensus/core"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	luxvm "github.com/luxfi/otcvm"
	"github.com/luxfi/otcvm/vms"
	"github.com/luxfi/otcvm/vms/otcvm"
	"github.com/luxfi/otcvm/vms/otcvm/config"
)

const (
	RPCPath     = "/ext/bc/otc"
	MetricsPath = "/ext/metrics"
	HealthPath  = "/ext/health"
)

var errNoRPCHandler = errors.New("VM serves no RPC handler")

// Node runs one VM, produces its blocks and serves its API.
type Node struct {
	cfg *NodeConfig
	log log.Logger

	vm       *otcvm.VM
	toEngine chan luxvm.Message

	listener net.Listener
	server   *http.Server
}

// NewNode initializes the VM and binds the API listener. Nothing is served
// until Run is called.
func NewNode(ctx context.Context, cfg *NodeConfig, logger log.Logger) (*Node, error) {
	genesisBytes, err := cfg.GenesisBytes()
	if err != nil {
		return nil, err
	}
	configBytes, err := cfg.VMConfigBytes()
	if err != nil {
		return nil, fmt.Errorf("encode vm config: %w", err)
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}

	n := &Node{
		cfg:      cfg,
		log:      logger,
		vm:       otcvm.New(config.DefaultConfig(), logger, registry),
		toEngine: make(chan luxvm.Message, 1),
	}

	err = n.vm.Initialize(
		ctx,
		&consensusctx.Context{ChainID: ids.ID(otcvm.VMID)},
		memdb.New(),
		genesisBytes,
		nil,
		configBytes,
		n.toEngine,
		nil,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("initialize vm: %w", err)
	}
	if err := n.vm.SetState(ctx, uint32(consensuscore.Ready)); err != nil {
		return nil, err
	}

	handlers, err := vms.DelegateHandlers(ctx, n.vm)
	if err != nil {
		return nil, err
	}
	rpcHandler, ok := handlers[""]
	if !ok {
		return nil, errNoRPCHandler
	}

	router := mux.NewRouter()
	router.Handle(RPCPath, rpcHandler).Methods(http.MethodPost)
	router.Handle(MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc(HealthPath, n.health).Methods(http.MethodGet)

	n.listener, err = net.Listen("tcp", cfg.HTTP.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTP.Address, err)
	}
	n.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}
	return n, nil
}

func (n *Node) Addr() string {
	return n.listener.Addr().String()
}

func (n *Node) VM() *otcvm.VM {
	return n.vm
}

// Run serves the API and produces blocks until [ctx] is cancelled, then
// shuts the VM down.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := n.server.Serve(n.listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), n.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return n.server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		n.produceBlocks(ctx)
		return nil
	})

	err := g.Wait()
	if shutdownErr := n.vm.Shutdown(context.Background()); err == nil {
		err = shutdownErr
	}
	return err
}

// produceBlocks waits for the VM to report pending transactions and builds
// a block on the next tick, so transactions issued within one interval
// share a block.
func (n *Node) produceBlocks(ctx context.Context) {
	ticker := time.NewTicker(n.vm.BlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.toEngine:
			if msg.Type != luxvm.PendingTxs {
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		res, err := n.vm.BuildBlock(ctx)
		switch {
		case errors.Is(err, otcvm.ErrNoPendingTxs):
		case err != nil:
			n.log.Error("failed to build block", "error", err)
		default:
			n.log.Info("built block",
				"height", res.Height,
				"txs", len(res.Txs),
				"stateRoot", res.StateRoot,
			)
		}
	}
}

func (n *Node) health(w http.ResponseWriter, r *http.Request) {
	report, err := n.vm.HealthCheck(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		n.log.Debug("failed to write health report", "error", err)
	}
}
