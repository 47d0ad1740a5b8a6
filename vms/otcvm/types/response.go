// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

// Msg is an instruction a contract asks the host to perform after it
// returns. The concrete types are BankSend and Instantiate.
type Msg interface {
	isMsg()
}

// BankSend transfers coins out of the calling contract's balance.
type BankSend struct {
	ToAddress string
	Amount    Coins
}

// Instantiate deploys a new contract from a registered template.
type Instantiate struct {
	TemplateID TemplateID
	Msg        []byte
	Funds      Coins
	Label      string
	Admin      string
}

func (BankSend) isMsg()    {}
func (Instantiate) isMsg() {}

// ReplyOn selects which outcomes of a sub-message are reported back to the
// issuing contract.
type ReplyOn uint8

const (
	ReplyNever ReplyOn = iota
	ReplyOnSuccess
	ReplyOnError
	ReplyAlways
)

func (r ReplyOn) String() string {
	switch r {
	case ReplyNever:
		return "never"
	case ReplyOnSuccess:
		return "success"
	case ReplyOnError:
		return "error"
	case ReplyAlways:
		return "always"
	default:
		return "unknown"
	}
}

// SubMsg wraps a Msg with the correlation id used for the reply.
type SubMsg struct {
	ID      uint64
	Msg     Msg
	ReplyOn ReplyOn
}

// SubMsgResult is the outcome of a sub-message. Err is empty on success.
type SubMsgResult struct {
	ContractAddress string
	Events          []Event
	Err             string
}

// Reply is delivered to the issuing contract's Reply entry point.
type Reply struct {
	ID     uint64
	Result SubMsgResult
}

// Attribute is a key/value pair attached to a contract event.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event groups the attributes emitted by one contract call.
type Event struct {
	Type       string      `json:"type"`
	Contract   string      `json:"contract,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Response is what a contract entry point returns to the host.
type Response struct {
	Messages   []SubMsg
	Attributes []Attribute
}

func NewResponse() *Response {
	return &Response{}
}

func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

// AddMessage queues a fire-and-forget message.
func (r *Response) AddMessage(msg Msg) *Response {
	r.Messages = append(r.Messages, SubMsg{Msg: msg, ReplyOn: ReplyNever})
	return r
}

func (r *Response) AddSubMessage(sub SubMsg) *Response {
	r.Messages = append(r.Messages, sub)
	return r
}
