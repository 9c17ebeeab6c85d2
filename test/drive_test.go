// Copyright 2018 xft. All rights reserved.
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

const (
	driveDeviceEnv = "DF1_DRIVE_DEVICE"
	driveAddress   = 1
	// scratch parameter, restored after the test
	driveParameter = 20
)

func TestDriveClient(t *testing.T) {
	device := os.Getenv(driveDeviceEnv)
	if device == "" {
		device = "/dev/ttyUSB1"
	}
	if _, err := os.Stat(device); err != nil {
		t.Skipf("no drive on %s: %v", device, err)
	}
	handler := df1.NewDriveClientHandler(device)
	handler.SetAddress(driveAddress)
	handler.Logger = log.New(os.Stdout, "drive: ", log.LstdFlags)
	drive := df1.NewDriveClient(handler)
	defer drive.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	original, err := drive.ReadParameter(ctx, driveParameter)
	require.NoError(t, err)
	defer func() {
		_, err := drive.WriteParameter(context.Background(), driveParameter, original)
		assert.NoError(t, err)
	}()

	echo, err := drive.WriteParameter(ctx, driveParameter, 12.5)
	require.NoError(t, err)
	assert.Equal(t, 12.5, echo)

	v, err := drive.ReadParameter(ctx, driveParameter)
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)
}
