// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vms

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type handlerVM struct{}

func (handlerVM) CreateHandlers(context.Context) (map[string]http.Handler, error) {
	return map[string]http.Handler{"": http.NotFoundHandler()}, nil
}

func TestDelegateHandlers(t *testing.T) {
	require := require.New(t)

	handlers, err := DelegateHandlers(context.Background(), handlerVM{})
	require.NoError(err)
	require.Contains(handlers, "")

	handlers, err = DelegateHandlers(context.Background(), struct{}{})
	require.NoError(err)
	require.Nil(handlers)
}
