// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package otcvm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	consensusctx "github.com/luxfi/consensus/context"
	consensuscore "github.com/luxfi/consensus/core"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/version"

	luxvm "github.com/luxfi/otcvm"
	utiljson "github.com/luxfi/otcvm/utils/json"
	utilmetric "github.com/luxfi/otcvm/utils/metric"
	"github.com/luxfi/otcvm/utils/timer/mockable"
	"github.com/luxfi/otcvm/vms/otcvm/api"
	"github.com/luxfi/otcvm/vms/otcvm/bank"
	"github.com/luxfi/otcvm/vms/otcvm/config"
	"github.com/luxfi/otcvm/vms/otcvm/factory"
	"github.com/luxfi/otcvm/vms/otcvm/host"
	"github.com/luxfi/otcvm/vms/otcvm/market"
	"github.com/luxfi/otcvm/vms/otcvm/metrics"
	"github.com/luxfi/otcvm/vms/otcvm/state"
	"github.com/luxfi/otcvm/vms/otcvm/txs"
	"github.com/luxfi/otcvm/vms/otcvm/types"
)

const (
	MarketTemplateID  types.TemplateID = 1
	FactoryTemplateID types.TemplateID = 2

	factoryLabel     = "otc factory"
	metricsNamespace = "otcvm"
)

var (
	ErrNoPendingTxs = errors.New("no pending transactions")

	errUnknownState       = errors.New("unknown state")
	errNotInitialized     = errors.New("VM not initialized")
	errShutdown           = errors.New("VM is shutting down")
	errMempoolFull        = errors.New("mempool is full")
	errDuplicateTx        = errors.New("duplicate transaction")
	errUnexpectedHeight   = errors.New("unexpected block height")
	errTxResultNotIndexed = errors.New("transaction results are not indexed")

	chainPrefix   = []byte("chain")
	resultsPrefix = []byte("results")

	lastAccepted = state.NewItem[chainState]("last_accepted")
	processedTxs = state.NewMap[string, uint64]("processed", state.StringKey{})
	txResults    = state.NewMap[string, TxResult]("results", state.StringKey{})

	_ api.VM = (*VM)(nil)
)

// chainState is the record of the last processed block.
type chainState struct {
	Height    uint64 `json:"height"`
	Timestamp int64  `json:"timestamp"`
	StateRoot ids.ID `json:"stateRoot"`
}

// TxResult is the outcome of one transaction.
type TxResult = api.TxResult

// BlockResult represents the deterministic result of processing a block.
type BlockResult struct {
	Height    uint64
	Timestamp time.Time
	Txs       []TxResult
	// StateRoot commits to every key/value pair after the block
	StateRoot ids.ID
}

// VM runs the OTC factory and market contracts. Blocks are handed to
// ProcessBlock and each transaction in them is applied atomically: a failed
// transaction leaves no trace besides its result.
type VM struct {
	config.Config

	log  log.Logger
	lock sync.RWMutex

	consensusCtx *consensusctx.Context
	chainID      ids.ID

	baseDB database.Database
	db     *versiondb.Database

	clock mockable.Clock

	registerer     prometheus.Registerer
	metrics        *metrics.Metrics
	apiInterceptor utilmetric.APIInterceptor

	host *host.Host

	mempool    []*txs.Tx
	mempoolIDs map[ids.ID]struct{}

	// Channel for telling the block producer that txs are waiting
	toEngine chan<- luxvm.Message

	connectedPeers map[ids.NodeID]*version.Application

	last chainState

	bootstrapped  bool
	isInitialized bool
	shutdown      bool
}

// New returns an uninitialized VM. A nil registerer keeps metrics private
// to the VM.
func New(cfg config.Config, logger log.Logger, registerer prometheus.Registerer) *VM {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	return &VM{
		Config:     cfg,
		log:        logger,
		registerer: registerer,
	}
}

// Initialize sets up the VM with the provided context, database and
// genesis. Genesis is only applied to an empty database.
func (vm *VM) Initialize(
	_ context.Context,
	consensusCtx interface{},
	dbManager interface{},
	genesisBytes []byte,
	_ []byte,
	configBytes []byte,
	msgChan interface{},
	_ []interface{},
	_ interface{},
) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if ctx, ok := consensusCtx.(*consensusctx.Context); ok && ctx != nil {
		vm.consensusCtx = ctx
		vm.chainID = ctx.ChainID
	}

	db, ok := dbManager.(database.Database)
	if !ok {
		return fmt.Errorf("expected database.Database, got %T", dbManager)
	}
	vm.baseDB = db
	vm.db = versiondb.New(db)

	switch ch := msgChan.(type) {
	case chan luxvm.Message:
		vm.toEngine = ch
	case chan<- luxvm.Message:
		vm.toEngine = ch
	}

	if len(configBytes) > 0 {
		cfg, err := config.ParseConfig(configBytes)
		if err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		vm.Config = cfg
	}
	if err := vm.Config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	vm.host = host.New(vm.AddressHRP, vm.MaxCallDepth, vm.log)
	if err := registerTemplates(vm.host); err != nil {
		return err
	}

	var err error
	vm.metrics, err = metrics.New(metricsNamespace, vm.registerer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	vm.apiInterceptor, err = utilmetric.NewAPIInterceptor(metricsNamespace, vm.registerer)
	if err != nil {
		return fmt.Errorf("failed to register api metrics: %w", err)
	}

	vm.mempoolIDs = make(map[ids.ID]struct{})
	vm.connectedPeers = make(map[ids.NodeID]*version.Application)

	last, ok, err := lastAccepted.MayLoad(vm.chainDB())
	if err != nil {
		return err
	}
	if ok {
		vm.last = last
	} else if err := vm.applyGenesis(genesisBytes); err != nil {
		return fmt.Errorf("failed to apply genesis: %w", err)
	}

	vm.isInitialized = true
	vm.log.Info("OTC VM initialized",
		"chainID", vm.chainID,
		"height", vm.last.Height,
		"stateRoot", vm.last.StateRoot,
	)
	return nil
}

func registerTemplates(h *host.Host) error {
	for _, t := range []host.Template{
		{ID: MarketTemplateID, Name: market.ContractName, New: market.New},
		{ID: FactoryTemplateID, Name: factory.ContractName, New: factory.New},
	} {
		if err := h.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// applyGenesis mints the genesis balances, deploys the bootstrap factory
// and commits the result as height 0.
func (vm *VM) applyGenesis(genesisBytes []byte) error {
	g, err := ParseGenesis(genesisBytes, vm.host.Validator())
	if err != nil {
		return err
	}

	for _, a := range g.Balances {
		if err := bank.Mint(host.BankDB(vm.db), a.Address, a.Coins); err != nil {
			return fmt.Errorf("failed to mint to %s: %w", a.Address, err)
		}
	}

	block := types.BlockInfo{Height: 0, Time: g.Time()}
	if g.Factory != nil {
		msg, err := json.Marshal(factory.InstantiateMsg{
			Owner:            g.Factory.Owner,
			MarketTemplateID: MarketTemplateID,
			FeeCollector:     g.Factory.FeeCollector,
		})
		if err != nil {
			return err
		}
		addr, _, err := vm.host.Instantiate(vm.db, block, g.Factory.Owner, types.Instantiate{
			TemplateID: FactoryTemplateID,
			Msg:        msg,
			Label:      factoryLabel,
			Admin:      g.Factory.Owner,
		})
		if err != nil {
			return fmt.Errorf("failed to instantiate factory: %w", err)
		}
		vm.log.Info("genesis factory deployed",
			"address", addr,
			"owner", g.Factory.Owner,
		)
	}

	return vm.accept(block)
}

// accept records [block] as the last processed block and flushes all
// pending writes to the base database.
func (vm *VM) accept(block types.BlockInfo) error {
	root, err := vm.computeStateRoot()
	if err != nil {
		return err
	}
	last := chainState{
		Height:    block.Height,
		Timestamp: block.Time.Unix(),
		StateRoot: root,
	}
	if err := lastAccepted.Save(vm.chainDB(), last); err != nil {
		return err
	}
	if err := vm.db.Commit(); err != nil {
		return fmt.Errorf("failed to commit block %d: %w", block.Height, err)
	}
	vm.last = last
	return nil
}

func (vm *VM) chainDB() database.Database {
	return prefixdb.New(chainPrefix, vm.db)
}

func (vm *VM) resultsDB() database.Database {
	return prefixdb.New(resultsPrefix, vm.db)
}

// SetState transitions the VM between bootstrapping and normal operation.
func (vm *VM) SetState(_ context.Context, stateNum uint32) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	switch consensuscore.State(stateNum) {
	case consensuscore.Bootstrapping:
		vm.log.Info("OTC VM entering bootstrap state")
		vm.bootstrapped = false
		return nil
	case consensuscore.Ready:
		vm.log.Info("OTC VM entering ready state")
		vm.bootstrapped = true
		return nil
	default:
		return fmt.Errorf("%w: %d", errUnknownState, stateNum)
	}
}

// IssueTx verifies [txBytes] and adds the transaction to the mempool.
func (vm *VM) IssueTx(txBytes []byte) (ids.ID, error) {
	tx, err := txs.Parse(txBytes)
	if err != nil {
		return ids.Empty, err
	}

	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.usable(); err != nil {
		return ids.Empty, err
	}
	if err := tx.Verify(vm.AddressHRP); err != nil {
		return ids.Empty, err
	}

	txID := tx.ID()
	if _, ok := vm.mempoolIDs[txID]; ok {
		return ids.Empty, fmt.Errorf("%w: %s", errDuplicateTx, txID)
	}
	processed, err := processedTxs.Has(vm.resultsDB(), txID.String())
	if err != nil {
		return ids.Empty, err
	}
	if processed {
		return ids.Empty, fmt.Errorf("%w: %s", errDuplicateTx, txID)
	}
	if len(vm.mempool) >= vm.MempoolSize {
		return ids.Empty, errMempoolFull
	}

	vm.mempool = append(vm.mempool, tx)
	vm.mempoolIDs[txID] = struct{}{}
	vm.metrics.SetMempoolSize(len(vm.mempool))
	vm.notifyPendingTxs()

	vm.log.Debug("transaction issued",
		"txID", txID,
		"kind", tx.Kind,
	)
	return txID, nil
}

func (vm *VM) notifyPendingTxs() {
	if vm.toEngine == nil {
		return
	}
	select {
	case vm.toEngine <- luxvm.Message{Type: luxvm.PendingTxs}:
	default:
	}
}

// PendingTxs returns up to [limit] mempool transactions in issue order.
func (vm *VM) PendingTxs(limit int) [][]byte {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	n := min(limit, len(vm.mempool))
	pending := make([][]byte, 0, n)
	for _, tx := range vm.mempool[:n] {
		pending = append(pending, tx.Bytes())
	}
	return pending
}

// BuildBlock processes the next block out of the mempool at the current
// local time.
func (vm *VM) BuildBlock(ctx context.Context) (*BlockResult, error) {
	pending := vm.PendingTxs(vm.MaxTxsPerBlock)
	if len(pending) == 0 {
		return nil, ErrNoPendingTxs
	}

	vm.lock.RLock()
	height := vm.last.Height + 1
	vm.lock.RUnlock()

	return vm.ProcessBlock(ctx, height, vm.clock.Time(), pending)
}

// ProcessBlock applies [txBytes] in order on top of the last processed
// block. Individual tx failures don't fail the block.
func (vm *VM) ProcessBlock(_ context.Context, height uint64, blockTime time.Time, txBytes [][]byte) (*BlockResult, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.usable(); err != nil {
		return nil, err
	}
	if height != vm.last.Height+1 {
		return nil, fmt.Errorf("%w: expected %d, got %d", errUnexpectedHeight, vm.last.Height+1, height)
	}

	block := types.BlockInfo{Height: height, Time: blockTime}
	result := &BlockResult{
		Height:    height,
		Timestamp: blockTime,
		Txs:       make([]TxResult, 0, len(txBytes)),
	}
	for _, b := range txBytes {
		res := vm.processTx(block, b)
		if res.Status == api.TxFailed {
			vm.log.Warn("transaction failed",
				"txID", res.TxID,
				"error", res.Error,
			)
		}
		vm.metrics.TxProcessed(res.Kind, res.Status)
		result.Txs = append(result.Txs, res)
	}

	if err := vm.accept(block); err != nil {
		vm.db.Abort()
		return nil, err
	}
	result.StateRoot = vm.last.StateRoot

	vm.removeFromMempool(result.Txs)
	vm.metrics.BlockProcessed(height, len(txBytes))
	if len(vm.mempool) > 0 {
		vm.notifyPendingTxs()
	}

	vm.log.Debug("block processed",
		"height", height,
		"txs", len(result.Txs),
		"stateRoot", result.StateRoot,
	)
	return result, nil
}

// processTx applies one transaction and records its outcome. Replays of a
// processed transaction fail without touching the earlier outcome.
func (vm *VM) processTx(block types.BlockInfo, b []byte) TxResult {
	res := TxResult{
		TxID:   ids.ID(sha256.Sum256(b)),
		Height: block.Height,
		Kind:   "unknown",
		Status: api.TxFailed,
	}

	resultsDB := vm.resultsDB()
	key := res.TxID.String()
	processed, err := processedTxs.Has(resultsDB, key)
	switch {
	case err != nil:
		res.Error = err.Error()
		return res
	case processed:
		res.Error = errDuplicateTx.Error()
		return res
	}

	vm.applyTx(block, b, &res)

	if err := processedTxs.Save(resultsDB, key, block.Height); err != nil {
		vm.log.Error("failed to record transaction",
			"txID", res.TxID,
			"error", err,
		)
	}
	if vm.IndexTxResults {
		if err := txResults.Save(resultsDB, key, res); err != nil {
			vm.log.Error("failed to index transaction result",
				"txID", res.TxID,
				"error", err,
			)
		}
	}
	return res
}

// applyTx runs the transaction in its own view of the state. The view is
// only committed if the transaction succeeds.
func (vm *VM) applyTx(block types.BlockInfo, b []byte, res *TxResult) {
	tx, err := txs.Parse(b)
	if err != nil {
		res.Error = err.Error()
		return
	}
	res.Kind = tx.Kind.String()

	if err := tx.Verify(vm.AddressHRP); err != nil {
		res.Error = err.Error()
		return
	}

	view := versiondb.New(vm.db)
	addr, events, err := vm.executeTx(view, block, tx)
	if err != nil {
		view.Abort()
		res.Error = err.Error()
		return
	}
	if err := view.Commit(); err != nil {
		res.Error = err.Error()
		return
	}
	res.Status = api.TxAccepted
	res.ContractAddress = addr
	res.Events = events
}

func (vm *VM) executeTx(db database.Database, block types.BlockInfo, tx *txs.Tx) (string, []types.Event, error) {
	sender, err := tx.Sender()
	if err != nil {
		return "", nil, err
	}

	switch tx.Kind {
	case txs.KindSend:
		if err := bank.Send(host.BankDB(db), sender, tx.To, tx.Funds); err != nil {
			return "", nil, err
		}
		return "", []types.Event{transferEvent(sender, tx.To, tx.Funds)}, nil
	case txs.KindInstantiate:
		return vm.host.Instantiate(db, block, sender, types.Instantiate{
			TemplateID: tx.TemplateID,
			Msg:        tx.Msg,
			Funds:      tx.Funds,
			Label:      tx.Label,
			Admin:      tx.Admin,
		})
	case txs.KindExecute:
		events, err := vm.host.Execute(db, block, sender, tx.Contract, tx.Funds, tx.Msg)
		return "", events, err
	default:
		return "", nil, fmt.Errorf("%w: %d", txs.ErrInvalidTxKind, tx.Kind)
	}
}

func transferEvent(from, to string, coins types.Coins) types.Event {
	amounts := make([]string, 0, len(coins))
	for _, c := range coins {
		amounts = append(amounts, c.String())
	}
	return types.Event{
		Type: "transfer",
		Attributes: []types.Attribute{
			{Key: "sender", Value: from},
			{Key: "recipient", Value: to},
			{Key: "amount", Value: strings.Join(amounts, ",")},
		},
	}
}

func (vm *VM) removeFromMempool(results []TxResult) {
	included := make(map[ids.ID]struct{}, len(results))
	for _, r := range results {
		included[r.TxID] = struct{}{}
	}

	remaining := vm.mempool[:0]
	for _, tx := range vm.mempool {
		if _, ok := included[tx.ID()]; ok {
			delete(vm.mempoolIDs, tx.ID())
			continue
		}
		remaining = append(remaining, tx)
	}
	clear(vm.mempool[len(remaining):])
	vm.mempool = remaining
	vm.metrics.SetMempoolSize(len(vm.mempool))
}

// computeStateRoot hashes every key/value pair in ascending key order. Keys
// and values are length prefixed.
func (vm *VM) computeStateRoot() (ids.ID, error) {
	iter := vm.db.NewIterator()
	defer iter.Release()

	h := sha256.New()
	var size [binary.MaxVarintLen64]byte
	for iter.Next() {
		for _, b := range [][]byte{iter.Key(), iter.Value()} {
			n := binary.PutUvarint(size[:], uint64(len(b)))
			_, _ = h.Write(size[:n])
			_, _ = h.Write(b)
		}
	}
	if err := iter.Error(); err != nil {
		return ids.Empty, err
	}

	var root ids.ID
	copy(root[:], h.Sum(nil))
	return root, nil
}

func (vm *VM) usable() error {
	switch {
	case vm.shutdown:
		return errShutdown
	case !vm.isInitialized:
		return errNotInitialized
	default:
		return nil
	}
}

func (vm *VM) lastBlock() types.BlockInfo {
	return types.BlockInfo{
		Height: vm.last.Height,
		Time:   time.Unix(vm.last.Timestamp, 0).UTC(),
	}
}

func (vm *VM) nextBlock() types.BlockInfo {
	next := vm.lastBlock()
	next.Height++
	return next
}

func (vm *VM) IsBootstrapped() bool {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.bootstrapped
}

// Status reports the last processed block.
func (vm *VM) Status() api.StatusReply {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return api.StatusReply{
		ChainID:      vm.chainID,
		Height:       utiljson.Uint64(vm.last.Height),
		Timestamp:    vm.last.Timestamp,
		StateRoot:    vm.last.StateRoot,
		MempoolSize:  len(vm.mempool),
		Bootstrapped: vm.bootstrapped,
	}
}

// Query runs a read-only contract query on the state of the last processed
// block. Height-dependent answers, such as which deals have expired, are
// given for the next block since that is where any new transaction runs.
func (vm *VM) Query(contract string, msg []byte) ([]byte, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.usable(); err != nil {
		return nil, err
	}
	return vm.host.Query(vm.db, vm.nextBlock(), contract, msg)
}

func (vm *VM) Balance(addr, denom string) (*uint256.Int, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.usable(); err != nil {
		return nil, err
	}
	return bank.Balance(host.BankDB(vm.db), addr, denom)
}

func (vm *VM) AllBalances(addr string) (types.Coins, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.usable(); err != nil {
		return nil, err
	}
	return bank.AllBalances(host.BankDB(vm.db), addr)
}

func (vm *VM) Contract(addr string) (host.ContractInfo, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.usable(); err != nil {
		return host.ContractInfo{}, err
	}
	return vm.host.Contract(vm.db, addr)
}

func (vm *VM) Contracts() ([]host.ContractInfo, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.usable(); err != nil {
		return nil, err
	}
	return vm.host.Contracts(vm.db)
}

// TxResult returns the indexed result of [txID].
func (vm *VM) TxResult(txID ids.ID) (TxResult, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.usable(); err != nil {
		return TxResult{}, err
	}
	if !vm.IndexTxResults {
		return TxResult{}, errTxResultNotIndexed
	}
	return txResults.Load(vm.resultsDB(), txID.String())
}

// Shutdown closes the database. Mempool contents are dropped.
func (vm *VM) Shutdown(context.Context) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.shutdown {
		return nil
	}
	vm.log.Info("shutting down OTC VM")
	vm.shutdown = true
	vm.mempool = nil

	if vm.db != nil {
		if err := vm.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}

func (*VM) Version(context.Context) (string, error) {
	return "1.0.0", nil
}

// CreateHandlers returns the JSON-RPC handler of the VM.
func (vm *VM) CreateHandlers(context.Context) (map[string]http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(utiljson.NewCodec(), "application/json")
	server.RegisterCodec(utiljson.NewCodec(), "application/json;charset=UTF-8")
	server.RegisterInterceptFunc(vm.apiInterceptor.InterceptRequest)
	server.RegisterAfterFunc(vm.apiInterceptor.AfterRequest)

	if err := server.RegisterService(api.NewService(vm), "otc"); err != nil {
		return nil, fmt.Errorf("failed to register OTC service: %w", err)
	}
	return map[string]http.Handler{
		"": server,
	}, nil
}

func (vm *VM) HealthCheck(context.Context) (interface{}, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return map[string]interface{}{
		"healthy":      vm.isInitialized && vm.bootstrapped && !vm.shutdown,
		"bootstrapped": vm.bootstrapped,
		"height":       vm.last.Height,
		"mempoolSize":  len(vm.mempool),
		"peers":        len(vm.connectedPeers),
	}, nil
}

func (vm *VM) Connected(_ context.Context, nodeID ids.NodeID, v *version.Application) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	vm.connectedPeers[nodeID] = v
	vm.log.Debug("peer connected", "nodeID", nodeID, "version", v)
	return nil
}

func (vm *VM) Disconnected(_ context.Context, nodeID ids.NodeID) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	delete(vm.connectedPeers, nodeID)
	vm.log.Debug("peer disconnected", "nodeID", nodeID)
	return nil
}
