// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vms holds helpers shared by the VMs of this module.
package vms

import (
	"context"
	"net/http"
)

// HandlerProvider is implemented by VMs that serve HTTP handlers
type HandlerProvider interface {
	CreateHandlers(context.Context) (map[string]http.Handler, error)
}

// DelegateHandlers returns the handlers of [vm] keyed by path suffix, or nil
// if [vm] serves none.
func DelegateHandlers(ctx context.Context, vm interface{}) (map[string]http.Handler, error) {
	if handlerCreator, ok := vm.(HandlerProvider); ok {
		return handlerCreator.CreateHandlers(ctx)
	}
	return nil, nil
}
