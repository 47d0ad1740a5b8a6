// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package txs defines transaction types for the OTC VM.
package txs

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/crypto/secp256k1"
	"github.com/luxfi/ids"

	"github.com/luxfi/otcvm/vms/otcvm/types"
)

var (
	ErrInvalidTxKind = errors.New("invalid transaction kind")
	ErrMissingField  = errors.New("missing field")
	ErrUnexpectedMsg = errors.New("unexpected message")
	ErrMalformedTx   = errors.New("malformed transaction")

	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrNotVerified      = errors.New("transaction not verified")
)

// Kind is the type of a transaction.
type Kind uint8

const (
	KindSend Kind = iota + 1
	KindInstantiate
	KindExecute
)

func (k Kind) String() string {
	switch k {
	case KindSend:
		return "send"
	case KindInstantiate:
		return "instantiate"
	case KindExecute:
		return "execute"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	if k.String() == "unknown" {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTxKind, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for _, c := range []Kind{KindSend, KindInstantiate, KindExecute} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidTxKind, b)
}

// Tx is a request from an account to move coins, deploy a contract or call
// one. The sender is the account whose key produced the signature.
type Tx struct {
	Kind Kind `json:"kind"`
	// Nonce lets a sender issue otherwise identical transactions.
	Nonce uint64 `json:"nonce"`

	// Send
	To string `json:"to,omitempty"`

	// Instantiate
	TemplateID types.TemplateID `json:"template_id,omitempty"`
	Label      string           `json:"label,omitempty"`
	Admin      string           `json:"admin,omitempty"`

	// Execute
	Contract string `json:"contract,omitempty"`

	Funds types.Coins     `json:"funds,omitempty"`
	Msg   json.RawMessage `json:"msg,omitempty"`

	// Signature is a recoverable secp256k1 signature over UnsignedBytes.
	Signature []byte `json:"signature,omitempty"`

	sender string
	id     ids.ID
	bytes  []byte
}

// Parse decodes a transaction and binds it to [b]. Only the canonical
// encoding is accepted, so the same signed transaction always has the same
// id.
func Parse(b []byte) (*Tx, error) {
	tx := &Tx{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}
	canonical, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}
	if !bytes.Equal(canonical, b) {
		return nil, fmt.Errorf("%w: non-canonical encoding", ErrMalformedTx)
	}
	tx.setBytes(b)
	return tx, nil
}

// UnsignedBytes returns the encoding of [tx] without its signature.
func (tx *Tx) UnsignedBytes() ([]byte, error) {
	unsigned := *tx
	unsigned.Signature = nil
	return json.Marshal(&unsigned)
}

// Sign signs [tx] with [key] and encodes it.
func (tx *Tx) Sign(key *secp256k1.PrivateKey) error {
	unsigned, err := tx.UnsignedBytes()
	if err != nil {
		return err
	}
	sig, err := key.Sign(unsigned)
	if err != nil {
		return err
	}
	tx.Signature = sig
	return tx.Initialize()
}

// Initialize encodes a transaction built in code.
func (tx *Tx) Initialize() error {
	b, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	tx.setBytes(b)
	return nil
}

func (tx *Tx) setBytes(b []byte) {
	tx.bytes = b
	tx.id = ids.ID(sha256.Sum256(b))
}

func (tx *Tx) ID() ids.ID    { return tx.id }
func (tx *Tx) Bytes() []byte { return tx.bytes }

// Sender returns the address recovered by Verify.
func (tx *Tx) Sender() (string, error) {
	if tx.sender == "" {
		return "", ErrNotVerified
	}
	return tx.sender, nil
}

// Verify performs the stateless checks of [tx] and recovers its sender as
// an address under [hrp].
func (tx *Tx) Verify(hrp string) error {
	if _, err := tx.Kind.MarshalText(); err != nil {
		return err
	}
	sender, err := tx.recoverSender(hrp)
	if err != nil {
		return err
	}

	api := types.Bech32Validator{HRP: hrp}
	if err := tx.Funds.Validate(); err != nil {
		return fmt.Errorf("funds: %w", err)
	}

	switch tx.Kind {
	case KindSend:
		if err := api.ValidateAddress(tx.To); err != nil {
			return fmt.Errorf("to: %w", err)
		}
		if len(tx.Funds) == 0 {
			return fmt.Errorf("%w: funds", ErrMissingField)
		}
		if len(tx.Msg) != 0 {
			return ErrUnexpectedMsg
		}
	case KindInstantiate:
		if tx.TemplateID == 0 {
			return fmt.Errorf("%w: template_id", ErrMissingField)
		}
		if tx.Admin != "" {
			if err := api.ValidateAddress(tx.Admin); err != nil {
				return fmt.Errorf("admin: %w", err)
			}
		}
		if err := verifyMsg(tx.Msg); err != nil {
			return err
		}
	case KindExecute:
		if err := api.ValidateAddress(tx.Contract); err != nil {
			return fmt.Errorf("contract: %w", err)
		}
		if err := verifyMsg(tx.Msg); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %d", ErrInvalidTxKind, uint8(tx.Kind))
	}

	tx.sender = sender
	return nil
}

func (tx *Tx) recoverSender(hrp string) (string, error) {
	if len(tx.Signature) == 0 {
		return "", ErrMissingSignature
	}
	if len(tx.Signature) != secp256k1.SignatureLen {
		return "", fmt.Errorf("%w: %d bytes", ErrInvalidSignature, len(tx.Signature))
	}
	unsigned, err := tx.UnsignedBytes()
	if err != nil {
		return "", err
	}
	pk, err := secp256k1.RecoverPublicKey(unsigned, tx.Signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return types.FormatAddress(hrp, pk.Address())
}

func verifyMsg(msg json.RawMessage) error {
	if len(msg) == 0 {
		return fmt.Errorf("%w: msg", ErrMissingField)
	}
	if !json.Valid(msg) {
		return fmt.Errorf("%w: msg is not valid JSON", ErrMalformedTx)
	}
	return nil
}
