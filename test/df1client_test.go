// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license.  See the LICENSE file for details.

package test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grid-x/df1"
)

// These tests talk to a real SLC or MicroLogix with N7, F8, B3 and T4 files.
// Scratch elements N7:99, F8:9 and B3/159 are overwritten.
const (
	plcDeviceEnv = "DF1_PLC_DEVICE"
	plcTCPEnv    = "DF1_PLC_TCP"
	plcNode      = 1
)

func plcDevice(t *testing.T) string {
	device := os.Getenv(plcDeviceEnv)
	if device == "" {
		device = "/dev/ttyUSB0"
	}
	if _, err := os.Stat(device); err != nil {
		t.Skipf("no PLC on %s: %v", device, err)
	}
	return device
}

func TestDF1Client(t *testing.T) {
	handler := df1.NewDF1ClientHandler(plcDevice(t))
	handler.Destination = plcNode
	handler.Logger = log.New(os.Stdout, "df1: ", log.LstdFlags)
	client := df1.NewClient(handler)
	defer client.Close()
	ClientTestAll(t, client)
}

func TestDF1OverTCPClient(t *testing.T) {
	address := os.Getenv(plcTCPEnv)
	if address == "" {
		t.Skipf("%s is not set", plcTCPEnv)
	}
	handler := df1.NewDF1OverTCPClientHandler(address)
	handler.Destination = plcNode
	handler.ReplyTimeout = 2 * time.Second
	client := df1.NewClient(handler)
	defer client.Close()
	ClientTestAll(t, client)
}

// ClientTestAll exercises every protected typed function against a PLC.
func ClientTestAll(t *testing.T, client df1.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	values, err := client.ProtectedRead(ctx, "N7:0", 4)
	require.NoError(t, err)
	assert.Len(t, values, 4)

	require.NoError(t, client.ProtectedWrite(ctx, "N7:99", int16(-1234)))
	values, err = client.ProtectedRead(ctx, "N7:99", 1)
	require.NoError(t, err)
	assert.Equal(t, []any{int16(-1234)}, values)

	require.NoError(t, client.ProtectedWrite(ctx, "F8:9", float32(3.25)))
	values, err = client.ProtectedRead(ctx, "F8:9", 1)
	require.NoError(t, err)
	assert.Equal(t, []any{float32(3.25)}, values)

	for _, set := range []bool{true, false} {
		require.NoError(t, client.ProtectedBitWrite(ctx, "B3/159", set))
		values, err = client.ProtectedRead(ctx, "B3/159", 1)
		require.NoError(t, err)
		expected := int16(0)
		if set {
			expected = 1
		}
		assert.Equal(t, []any{expected}, values)
	}

	values, err = client.ProtectedRead(ctx, "T4:0", 1)
	require.NoError(t, err)
	assert.IsType(t, [3]int16{}, values[0])

	values, err = client.ProtectedRead(ctx, "T4:0.PRE", 1)
	require.NoError(t, err)
	assert.IsType(t, int16(0), values[0])

	_, err = client.ProtectedRead(ctx, "N250:0", 1)
	var stsErr *df1.Error
	assert.ErrorAs(t, err, &stsErr)
}
