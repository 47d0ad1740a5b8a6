// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package host runs contracts. It deploys instances of registered templates,
// moves attached funds through the bank, gives every contract a private
// store and dispatches the messages contracts return, delivering replies
// for sub-messages that ask for one.
//
// The host never commits anything itself. Callers hand it a database view
// and decide whether to commit or abort it once the call returns.
package host

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	safemath "github.com/luxfi/otcvm/utils/math"
	"github.com/luxfi/otcvm/vms/otcvm/bank"
	"github.com/luxfi/otcvm/vms/otcvm/state"
	"github.com/luxfi/otcvm/vms/otcvm/types"
)

const (
	DefaultMaxCallDepth = 8

	addressDomain = "otc/contract"
)

var (
	ErrUnknownTemplate   = errors.New("unknown template")
	ErrDuplicateTemplate = errors.New("template already registered")
	ErrUnknownContract   = errors.New("unknown contract")
	ErrCallDepth         = errors.New("maximum call depth exceeded")
	ErrNoReplyHandler    = errors.New("contract does not handle replies")
	ErrUnsupportedMsg    = errors.New("unsupported message")

	bankPrefix     = []byte("bank")
	contractPrefix = []byte("contract")
	storePrefix    = []byte("store/")
)

var (
	contracts = state.NewMap[string, ContractInfo]("contracts", state.StringKey{})
	sequence  = state.NewItem[uint64]("sequence")
)

// Template is a contract implementation that can be instantiated.
type Template struct {
	ID   types.TemplateID
	Name string
	New  func() types.Contract
}

// ContractInfo is the host's record of a deployed contract.
type ContractInfo struct {
	Address    string           `json:"address"`
	TemplateID types.TemplateID `json:"template_id"`
	Template   string           `json:"template"`
	Creator    string           `json:"creator"`
	Admin      string           `json:"admin,omitempty"`
	Label      string           `json:"label"`
	Height     uint64           `json:"created_height"`
	// Version is read from the contract's own store.
	Version *state.ContractVersion `json:"version,omitempty"`
}

type Host struct {
	hrp          string
	api          types.AddressValidator
	maxCallDepth int
	log          log.Logger

	templates map[types.TemplateID]Template
}

func New(hrp string, maxCallDepth int, logger log.Logger) *Host {
	if maxCallDepth <= 0 {
		maxCallDepth = DefaultMaxCallDepth
	}
	return &Host{
		hrp:          hrp,
		api:          types.Bech32Validator{HRP: hrp},
		maxCallDepth: maxCallDepth,
		log:          logger,
		templates:    make(map[types.TemplateID]Template),
	}
}

// Register makes [t] available to Instantiate.
func (h *Host) Register(t Template) error {
	if _, ok := h.templates[t.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateTemplate, t.ID)
	}
	h.templates[t.ID] = t
	return nil
}

// Validator is the address validator handed to contracts.
func (h *Host) Validator() types.AddressValidator {
	return h.api
}

// BankDB is the bank's view of [db].
func BankDB(db database.Database) database.Database {
	return prefixdb.New(bankPrefix, db)
}

func contractDB(db database.Database) database.Database {
	return prefixdb.New(contractPrefix, db)
}

func storeDB(db database.Database, addr string) database.Database {
	prefix := make([]byte, 0, len(storePrefix)+len(addr))
	prefix = append(prefix, storePrefix...)
	return prefixdb.New(append(prefix, addr...), db)
}

// call carries the state shared by one top-level call and everything it
// dispatches.
type call struct {
	db     database.Database
	block  types.BlockInfo
	events []types.Event
}

// Instantiate deploys a new contract from [template] on behalf of [sender]
// and returns its address and the events emitted.
func (h *Host) Instantiate(
	db database.Database,
	block types.BlockInfo,
	sender string,
	msg types.Instantiate,
) (string, []types.Event, error) {
	c := &call{db: db, block: block}
	addr, err := h.instantiate(c, 0, sender, msg)
	if err != nil {
		return "", nil, err
	}
	return addr, c.events, nil
}

// Execute calls [contract] on behalf of [sender] with [funds] attached.
func (h *Host) Execute(
	db database.Database,
	block types.BlockInfo,
	sender string,
	contract string,
	funds types.Coins,
	msg []byte,
) ([]types.Event, error) {
	c := &call{db: db, block: block}
	if err := h.execute(c, 0, sender, contract, funds, msg); err != nil {
		return nil, err
	}
	return c.events, nil
}

// Query runs a read-only query against [contract]. Writes made by the
// contract are discarded.
func (h *Host) Query(db database.Database, block types.BlockInfo, contract string, msg []byte) ([]byte, error) {
	view := versiondb.New(db)
	defer view.Abort()

	info, err := contracts.Load(contractDB(view), contract)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, contract)
	}
	impl, err := h.template(info.TemplateID)
	if err != nil {
		return nil, err
	}
	return impl.New().Query(h.deps(view, contract), h.env(block, contract), msg)
}

// Contract returns the record of [addr].
func (h *Host) Contract(db database.Database, addr string) (ContractInfo, error) {
	info, err := contracts.Load(contractDB(db), addr)
	if err != nil {
		return ContractInfo{}, fmt.Errorf("%w: %s", ErrUnknownContract, addr)
	}
	v, ok, err := contractVersion(storeDB(db, addr))
	if err != nil {
		return ContractInfo{}, err
	}
	if ok {
		info.Version = &v
	}
	return info, nil
}

// Contracts lists every deployed contract ordered by address.
func (h *Host) Contracts(db database.Database) ([]ContractInfo, error) {
	entries, err := contracts.Range(contractDB(db))
	if err != nil {
		return nil, err
	}
	infos := make([]ContractInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, e.Value)
	}
	return infos, nil
}

func contractVersion(db database.Database) (state.ContractVersion, bool, error) {
	v, err := state.GetContractVersion(db)
	switch {
	case errors.Is(err, state.ErrNotFound):
		return v, false, nil
	case err != nil:
		return v, false, err
	default:
		return v, true, nil
	}
}

func (h *Host) template(id types.TemplateID) (Template, error) {
	t, ok := h.templates[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %d", ErrUnknownTemplate, id)
	}
	return t, nil
}

func (h *Host) deps(db database.Database, addr string) types.Deps {
	return types.Deps{
		Storage: storeDB(db, addr),
		API:     h.api,
		Log:     h.log,
	}
}

func (*Host) env(block types.BlockInfo, addr string) types.Env {
	return types.Env{Block: block, Contract: addr}
}

// nextAddress derives the address of the next contract from a global
// sequence number, so addresses are identical on every node.
func (h *Host) nextAddress(db database.Database, template types.TemplateID) (string, error) {
	seq, _, err := sequence.MayLoad(db)
	if err != nil {
		return "", err
	}
	next, err := safemath.Add(seq, 1)
	if err != nil {
		return "", err
	}
	if err := sequence.Save(db, next); err != nil {
		return "", err
	}

	hasher := sha256.New()
	hasher.Write([]byte(addressDomain))
	hasher.Write(binary.BigEndian.AppendUint64(nil, uint64(template)))
	hasher.Write(binary.BigEndian.AppendUint64(nil, seq))
	var id ids.ShortID
	copy(id[:], hasher.Sum(nil))
	return types.FormatAddress(h.hrp, id)
}

func (h *Host) instantiate(c *call, depth int, sender string, msg types.Instantiate) (string, error) {
	if depth > h.maxCallDepth {
		return "", ErrCallDepth
	}
	t, err := h.template(msg.TemplateID)
	if err != nil {
		return "", err
	}
	if msg.Admin != "" {
		if err := h.api.ValidateAddress(msg.Admin); err != nil {
			return "", fmt.Errorf("admin: %w", err)
		}
	}

	meta := contractDB(c.db)
	addr, err := h.nextAddress(meta, msg.TemplateID)
	if err != nil {
		return "", err
	}
	info := ContractInfo{
		Address:    addr,
		TemplateID: msg.TemplateID,
		Template:   t.Name,
		Creator:    sender,
		Admin:      msg.Admin,
		Label:      msg.Label,
		Height:     c.block.Height,
	}
	if err := contracts.Save(meta, addr, info); err != nil {
		return "", err
	}
	if err := h.transfer(c.db, sender, addr, msg.Funds); err != nil {
		return "", err
	}

	impl := t.New()
	res, err := impl.Instantiate(
		h.deps(c.db, addr),
		h.env(c.block, addr),
		types.MessageInfo{Sender: sender, Funds: msg.Funds.Clone()},
		msg.Msg,
	)
	if err != nil {
		return "", fmt.Errorf("instantiate %s: %w", t.Name, err)
	}

	c.events = append(c.events, types.Event{
		Type:     "instantiate",
		Contract: addr,
		Attributes: []types.Attribute{
			{Key: "template", Value: t.Name},
			{Key: "creator", Value: sender},
		},
	})
	if err := h.dispatch(c, depth, addr, impl, res); err != nil {
		return "", err
	}

	h.log.Debug("contract instantiated",
		log.String("address", addr),
		log.String("template", t.Name),
		log.String("creator", sender),
	)
	return addr, nil
}

func (h *Host) execute(c *call, depth int, sender, addr string, funds types.Coins, msg []byte) error {
	if depth > h.maxCallDepth {
		return ErrCallDepth
	}
	info, err := contracts.Load(contractDB(c.db), addr)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownContract, addr)
	}
	t, err := h.template(info.TemplateID)
	if err != nil {
		return err
	}
	if err := h.transfer(c.db, sender, addr, funds); err != nil {
		return err
	}

	impl := t.New()
	res, err := impl.Execute(
		h.deps(c.db, addr),
		h.env(c.block, addr),
		types.MessageInfo{Sender: sender, Funds: funds.Clone()},
		msg,
	)
	if err != nil {
		return err
	}
	return h.dispatch(c, depth, addr, impl, res)
}

func (*Host) transfer(db database.Database, from, to string, funds types.Coins) error {
	if len(funds) == 0 {
		return nil
	}
	return bank.Send(BankDB(db), from, to, funds)
}

// dispatch records the contract's event and runs its messages in order.
func (h *Host) dispatch(c *call, depth int, addr string, impl types.Contract, res *types.Response) error {
	if res == nil {
		return nil
	}
	if len(res.Attributes) > 0 {
		c.events = append(c.events, types.Event{
			Type:       "wasm",
			Contract:   addr,
			Attributes: res.Attributes,
		})
	}
	for _, sub := range res.Messages {
		if err := h.runSubMsg(c, depth, addr, impl, sub); err != nil {
			return err
		}
	}
	return nil
}

// runSubMsg executes one sub-message inside its own nested view. A failed
// sub-message is rolled back on its own and, if the contract asked for error
// replies, reported to it instead of failing the whole call.
func (h *Host) runSubMsg(c *call, depth int, addr string, impl types.Contract, sub types.SubMsg) error {
	view := versiondb.New(c.db)
	child := &call{db: view, block: c.block}

	result, err := h.runMsg(child, depth+1, addr, sub.Msg)
	if err != nil {
		view.Abort()
		if sub.ReplyOn != types.ReplyOnError && sub.ReplyOn != types.ReplyAlways {
			return err
		}
		return h.reply(c, depth, addr, impl, types.Reply{
			ID:     sub.ID,
			Result: types.SubMsgResult{Err: err.Error()},
		})
	}
	if err := view.Commit(); err != nil {
		return err
	}
	c.events = append(c.events, child.events...)

	if sub.ReplyOn != types.ReplyOnSuccess && sub.ReplyOn != types.ReplyAlways {
		return nil
	}
	result.Events = child.events
	return h.reply(c, depth, addr, impl, types.Reply{ID: sub.ID, Result: result})
}

func (h *Host) runMsg(c *call, depth int, addr string, msg types.Msg) (types.SubMsgResult, error) {
	switch m := msg.(type) {
	case types.BankSend:
		if err := h.api.ValidateAddress(m.ToAddress); err != nil {
			return types.SubMsgResult{}, err
		}
		if err := bank.Send(BankDB(c.db), addr, m.ToAddress, m.Amount); err != nil {
			return types.SubMsgResult{}, err
		}
		c.events = append(c.events, types.Event{
			Type:     "transfer",
			Contract: addr,
			Attributes: []types.Attribute{
				{Key: "recipient", Value: m.ToAddress},
				{Key: "amount", Value: coinsString(m.Amount)},
			},
		})
		return types.SubMsgResult{}, nil
	case types.Instantiate:
		newAddr, err := h.instantiate(c, depth, addr, m)
		if err != nil {
			return types.SubMsgResult{}, err
		}
		return types.SubMsgResult{ContractAddress: newAddr}, nil
	default:
		return types.SubMsgResult{}, fmt.Errorf("%w: %T", ErrUnsupportedMsg, msg)
	}
}

func (h *Host) reply(c *call, depth int, addr string, impl types.Contract, reply types.Reply) error {
	replier, ok := impl.(types.Replier)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoReplyHandler, addr)
	}
	res, err := replier.Reply(h.deps(c.db, addr), h.env(c.block, addr), reply)
	if err != nil {
		return err
	}
	return h.dispatch(c, depth, addr, impl, res)
}

func coinsString(coins types.Coins) string {
	s := ""
	for i, c := range coins {
		if i > 0 {
			s += ","
		}
		s += c.String()
	}
	return s
}
