// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package df1

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/grid-x/serial"
)

const (
	// Default serial settings of SLC channel 0.
	serialBaudRate = 19200
	serialDataBits = 8
	serialParity   = "N"
	serialStopBits = 1
	// serialTimeout bounds a single read so the reader notices Close.
	serialTimeout = 500 * time.Millisecond
)

var _ Opener = (*SerialPort)(nil)

// SerialPort has the configuration of a serial port and opens it.
type SerialPort struct {
	// Serial port configuration.
	serial.Config
}

// NewSerialPort creates a serial port with default configuration.
func NewSerialPort(address string) *SerialPort {
	return &SerialPort{
		Config: serial.Config{
			Address:  address,
			BaudRate: serialBaudRate,
			DataBits: serialDataBits,
			Parity:   serialParity,
			StopBits: serialStopBits,
			Timeout:  serialTimeout,
		},
	}
}

// Open opens the port.
func (mb *SerialPort) Open() (io.ReadWriteCloser, error) {
	config := mb.Config
	port, err := serial.Open(&config)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", mb.Config.Address, err)
	}
	return &serialStream{port: port}, nil
}

// serialStream hides read timeouts of an idle line from the link.
type serialStream struct {
	port   io.ReadWriteCloser
	closed atomic.Bool
}

func (s *serialStream) Read(p []byte) (int, error) {
	for {
		n, err := s.port.Read(p)
		if n > 0 || err == nil {
			return n, nil
		}
		if errors.Is(err, serial.ErrTimeout) && !s.closed.Load() {
			continue
		}
		return 0, err
	}
}

func (s *serialStream) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialStream) Close() error {
	s.closed.Store(true)
	return s.port.Close()
}
