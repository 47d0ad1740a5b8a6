// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mockable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockSetAndAdvance(t *testing.T) {
	require := require.New(t)

	var clock Clock
	start := time.Unix(1_700_000_000, 500)
	clock.Set(start)
	require.Equal(time.Unix(1_700_000_000, 0), clock.Time())
	require.Equal(uint64(1_700_000_000), clock.Unix())

	clock.Advance(2 * time.Second)
	require.Equal(uint64(1_700_000_002), clock.Unix())

	clock.Sync()
	require.WithinDuration(time.Now(), clock.Time(), 2*time.Second)

	// Advancing a real clock does nothing.
	clock.Advance(time.Hour)
	require.WithinDuration(time.Now(), clock.Time(), 2*time.Second)
}
