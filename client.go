// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package df1

import (
	"context"
	"fmt"
)

// logger is the interface to the required logging functions
type logger interface {
	Printf(format string, v ...interface{})
}

// ClientHandler is the interface that groups the Packager and Opener methods
// with the link settings.
type ClientHandler interface {
	Packager
	Opener
	Settings() LinkSettings
}

type client struct {
	link *link
}

// NewClient creates a new DF1 client with given backend handler. The link
// is opened, and reopened after failures, in the background.
func NewClient(handler ClientHandler) Client {
	return &client{link: newLink(handler, handler, handler.Settings())}
}

// NewClient2 creates a new DF1 client with given backend packager and opener.
func NewClient2(packager Packager, opener Opener, settings LinkSettings) Client {
	return &client{link: newLink(packager, opener, settings.withDefaults(df1Timeout))}
}

// Request:
//
//	Function              : 1 byte (0xA2)
//	Byte size             : 1 byte
//	Address               : 4 to 10 bytes
//
// Response:
//
//	Data                  : byte size bytes
func (mb *client) ProtectedRead(ctx context.Context, address string, count int) ([]any, error) {
	if count < 1 {
		return nil, fmt.Errorf("df1: count '%v' must be at least '%v'", count, 1)
	}
	a, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	reply, err := mb.Send(ctx, &ProtectedReadRequest{Address: a, Count: count})
	if err != nil {
		return nil, err
	}
	return reply.(*Reply).Values, nil
}

// Request:
//
//	Function              : 1 byte (0xAA)
//	Byte size             : 1 byte
//	Address               : 4 to 10 bytes
//	Data                  : byte size bytes
//
// Response:
//
//	Status only
func (mb *client) ProtectedWrite(ctx context.Context, address string, values ...any) error {
	if len(values) == 0 {
		return fmt.Errorf("df1: nothing to write to %q", address)
	}
	a, err := ParseAddress(address)
	if err != nil {
		return err
	}
	_, err = mb.Send(ctx, &ProtectedWriteRequest{Address: a, Values: values})
	return err
}

// Request:
//
//	Function              : 1 byte (0xAB)
//	Byte size             : 1 byte (2)
//	Address               : 4 to 10 bytes
//	Mask                  : 2 bytes
//	Value                 : 2 bytes
//
// Response:
//
//	Status only
func (mb *client) ProtectedBitWrite(ctx context.Context, address string, set bool) error {
	a, err := ParseAddress(address)
	if err != nil {
		return err
	}
	_, err = mb.Send(ctx, &ProtectedBitWriteRequest{Address: a, Set: set})
	return err
}

func (mb *client) Send(ctx context.Context, request PDU) (PDU, error) {
	return mb.link.Send(ctx, request)
}

func (mb *client) Close() error {
	return mb.link.Close()
}

type driveClient struct {
	link *link
}

// NewDriveClient creates a drive client with given backend handler.
func NewDriveClient(handler ClientHandler) Drive {
	return &driveClient{link: newLink(handler, handler, handler.Settings())}
}

// Request:
//
//	Message type          : 1 char ('2')
//	Parameter             : 2 chars
//	Data                  : 4 chars ("0000")
//	Format                : 1 char ('0')
//
// Response:
//
//	Error code            : 1 char ('@')
//	Parameter             : 2 chars
//	Data                  : 4 chars
//	Format                : 1 char
func (mb *driveClient) ReadParameter(ctx context.Context, parameter int) (float64, error) {
	reply, err := mb.link.Send(ctx, &ParameterReadRequest{Parameter: parameter})
	if err != nil {
		return 0, err
	}
	return reply.(*DriveReply).Value, nil
}

// Request:
//
//	Message type          : 1 char ('3')
//	Parameter             : 2 chars
//	Data                  : 4 or 5 chars
//	Format                : 1 char
//
// Response:
//
//	Error code            : 1 char ('@')
//	Parameter             : 2 chars
//	Data                  : 4 chars
//	Format                : 1 char
func (mb *driveClient) WriteParameter(ctx context.Context, parameter int, value float64) (float64, error) {
	reply, err := mb.link.Send(ctx, &ParameterWriteRequest{Parameter: parameter, Value: value})
	if err != nil {
		return 0, err
	}
	return reply.(*DriveReply).Value, nil
}

// Request:
//
//	Message type          : 1 char ('1')
//	Parameter             : 2 chars ("00")
//	Data                  : 4 chars (command)
//	Format                : 1 char ('0')
func (mb *driveClient) ControlCommand(ctx context.Context, code int) error {
	_, err := mb.link.Send(ctx, &ControlCommandRequest{Code: code})
	return err
}

func (mb *driveClient) Close() error {
	return mb.link.Close()
}
