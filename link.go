package df1

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	defaultMaxRetries        = 3
	defaultReconnectInterval = 5310 * time.Millisecond
	readBufferSize           = 256
)

// CommandHandler answers a command initiated by the remote node. It runs on
// the link goroutine and must not block. A nil reply drops the command.
type CommandHandler func(cmd PDU) (reply PDU)

// LinkSettings holds the retry and reconnect policy of a link.
type LinkSettings struct {
	// ReplyTimeout is how long to wait for a reply before polling.
	ReplyTimeout time.Duration
	// MaxNAK bounds the resends after a NAK.
	MaxNAK int
	// MaxENQ bounds the polls after a timeout and the resends after an ENQ.
	MaxENQ int
	// ReconnectInterval is the pause before a lost link is reopened.
	ReconnectInterval time.Duration
	// DisableReconnect leaves a lost link closed.
	DisableReconnect bool
	// CommandHandler answers unsolicited commands. Nil drops them.
	CommandHandler CommandHandler
	Logger         logger
}

func (s LinkSettings) withDefaults(timeout time.Duration) LinkSettings {
	if s.ReplyTimeout <= 0 {
		s.ReplyTimeout = timeout
	}
	if s.MaxNAK <= 0 {
		s.MaxNAK = defaultMaxRetries
	}
	if s.MaxENQ <= 0 {
		s.MaxENQ = defaultMaxRetries
	}
	if s.ReconnectInterval <= 0 {
		s.ReconnectInterval = defaultReconnectInterval
	}
	return s
}

type linkState int

const (
	linkDisconnected linkState = iota
	linkIdle
	linkInFlight
)

// link runs one request at a time over a byte stream. All fields below
// the channels are owned by the run goroutine.
type link struct {
	settings LinkSettings
	packager Packager
	opener   Opener

	// gate admits one caller at a time
	gate      chan struct{}
	calls     chan *Pending
	cancels   chan *Pending
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	state       linkState
	port        io.ReadWriteCloser
	lastErr     error
	framer      Framer
	tm          TransactionManager
	current     *Pending
	lastFrame   []byte
	lastControl []byte
	nakCount    int
	enqCount    int
	// resync drops a partial frame before the next request goes out
	resync      bool
	timer       *time.Timer
	reconnect   *time.Timer
	rx          chan []byte
	rxErr       chan error
	stopRead    chan struct{}
}

func newLink(packager Packager, opener Opener, settings LinkSettings) *link {
	l := &link{
		settings:  settings,
		packager:  packager,
		opener:    opener,
		gate:      make(chan struct{}, 1),
		calls:     make(chan *Pending),
		cancels:   make(chan *Pending),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		framer:    packager.NewFramer(),
		tm:        packager.NewTransactionManager(),
		timer:     newStoppedTimer(),
		reconnect: newStoppedTimer(),
	}
	go l.run()
	return l
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

// Send submits req and waits for its reply. Callers are served one at a
// time in the order they arrive.
func (l *link) Send(ctx context.Context, req PDU) (PDU, error) {
	select {
	case l.gate <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, ErrClosed
	}
	defer func() { <-l.gate }()

	p := NewPending(req)
	select {
	case l.calls <- p:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, ErrClosed
	}
	select {
	case r := <-p.done:
		return r.pdu, r.err
	case <-ctx.Done():
		select {
		case l.cancels <- p:
		case <-l.done:
		}
		return nil, ctx.Err()
	case <-l.done:
		select {
		case r := <-p.done:
			return r.pdu, r.err
		default:
			return nil, ErrClosed
		}
	}
}

// Close stops the link and fails every pending request with ErrClosed.
func (l *link) Close() error {
	l.closeOnce.Do(func() { close(l.closing) })
	<-l.done
	return nil
}

func (l *link) run() {
	defer close(l.done)
	l.connect()
	for {
		var calls chan *Pending
		if l.state != linkInFlight {
			calls = l.calls
		}
		select {
		case <-l.closing:
			l.shutdown()
			return
		case p := <-calls:
			l.send(p)
		case p := <-l.cancels:
			l.cancel(p)
		case chunk := <-l.rx:
			l.feed(chunk)
		case err := <-l.rxErr:
			l.lost(err)
		case <-l.timer.C:
			l.expire()
		case <-l.reconnect.C:
			l.connect()
		}
	}
}

func (l *link) connect() {
	port, err := l.opener.Open()
	if err != nil {
		l.logf("df1: connect failed: %v", err)
		l.lastErr = err
		l.scheduleReconnect()
		return
	}
	l.port = port
	l.state = linkIdle
	l.framer.Reset()
	l.rx = make(chan []byte)
	l.rxErr = make(chan error, 1)
	l.stopRead = make(chan struct{})
	go readLoop(port, l.rx, l.rxErr, l.stopRead)
	l.logf("df1: link connected")
}

func (l *link) scheduleReconnect() {
	if l.settings.DisableReconnect {
		return
	}
	l.logf("df1: reconnecting in %v", l.settings.ReconnectInterval)
	l.reconnect.Reset(l.settings.ReconnectInterval)
}

// readLoop delivers what the port reads until it fails or stop is closed.
func readLoop(r io.Reader, rx chan<- []byte, errc chan<- error, stop <-chan struct{}) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case rx <- chunk:
			case <-stop:
				return
			}
		}
		if err != nil {
			errc <- err
			return
		}
	}
}

func (l *link) send(p *Pending) {
	if l.state == linkDisconnected {
		p.resolve(nil, fmt.Errorf("df1: link is not connected (%v): %w", l.lastErr, ErrConnectionLost))
		return
	}
	h := p.Request.header()
	h.TNS = l.tm.NextID()
	frame, err := l.packager.Encode(p.Request)
	if err != nil {
		p.resolve(nil, err)
		return
	}
	if err = l.tm.Register(p, h.TNS); err != nil {
		p.resolve(nil, err)
		return
	}
	if l.resync {
		l.framer.Reset()
		l.resync = false
	}
	l.current = p
	l.lastFrame = frame
	l.nakCount, l.enqCount = 0, 0
	l.state = linkInFlight
	l.timer.Reset(l.settings.ReplyTimeout)
	l.write(frame)
}

// write sends b, dropping the link when the port fails.
func (l *link) write(b []byte) bool {
	l.logf("df1: send % x", b)
	if _, err := l.port.Write(b); err != nil {
		l.lost(err)
		return false
	}
	return true
}

func (l *link) control(kind FrameKind) {
	if b := l.packager.Control(kind); b != nil {
		l.lastControl = b
		l.write(b)
	}
}

func (l *link) feed(chunk []byte) {
	l.logf("df1: recv % x", chunk)
	l.framer.Feed(chunk)
	for l.state != linkDisconnected && l.framer.FrameReady() {
		f, ok := l.framer.Extract()
		if !ok {
			return
		}
		l.handle(f)
	}
}

func (l *link) handle(f Frame) {
	switch f.Kind {
	case FrameACK:
		l.nakCount = 0
		if l.current != nil {
			l.timer.Reset(l.settings.ReplyTimeout)
		}
	case FrameNAK:
		if l.current == nil {
			return
		}
		l.nakCount++
		if l.nakCount >= l.settings.MaxNAK {
			l.fail(fmt.Errorf("df1: request refused with %d NAKs: %w", l.nakCount, ErrProtocol))
			return
		}
		l.logf("df1: NAK %d, resending", l.nakCount)
		l.resend(l.lastFrame)
	case FrameENQ:
		if l.current == nil {
			// the remote missed our last acknowledgement
			if l.lastControl != nil {
				l.write(l.lastControl)
			}
			return
		}
		l.enqCount++
		if l.enqCount >= l.settings.MaxENQ {
			l.fail(fmt.Errorf("df1: remote polled %d times: %w", l.enqCount, ErrTimeout))
			return
		}
		l.logf("df1: ENQ %d, resending", l.enqCount)
		l.resend(l.lastFrame)
	default:
		l.handleData(f.Bytes)
	}
}

func (l *link) handleData(frame []byte) {
	pdu, err := l.packager.Decode(frame)
	if err != nil {
		l.logf("df1: dropping frame: %v", err)
		if isFrameError(err) {
			l.control(FrameNAK)
		} else {
			l.control(FrameACK)
		}
		return
	}
	l.control(FrameACK)
	if l.state == linkDisconnected {
		return
	}
	if kind := pdu.Kind(); kind != KindReply && kind != KindDriveReply {
		l.unsolicited(pdu)
		return
	}
	tns := pdu.header().TNS
	p, ok := l.tm.Resolve(tns)
	if !ok {
		l.logf("df1: dropping unsolicited reply %d", tns)
		return
	}
	p.resolve(l.packager.Match(p.Request, pdu))
	if p == l.current {
		l.finish()
	}
}

func isFrameError(err error) bool {
	return errors.Is(err, ErrCRCMismatch) || errors.Is(err, ErrTruncatedFrame)
}

func (l *link) unsolicited(cmd PDU) {
	if l.settings.CommandHandler == nil {
		l.logf("df1: dropping unsolicited %v", cmd.Kind())
		return
	}
	reply := l.settings.CommandHandler(cmd)
	if reply == nil {
		return
	}
	b, err := l.packager.Encode(reply)
	if err != nil {
		l.logf("df1: could not encode reply to %v: %v", cmd.Kind(), err)
		return
	}
	l.write(b)
}

func (l *link) resend(b []byte) {
	l.timer.Reset(l.settings.ReplyTimeout)
	l.write(b)
}

// expire polls the remote, or resends when the dialect cannot poll.
func (l *link) expire() {
	if l.current == nil {
		return
	}
	l.enqCount++
	// every poll gets a full timeout before the request fails
	if l.enqCount > l.settings.MaxENQ {
		l.fail(fmt.Errorf("df1: no reply within %v after %d polls: %w", l.settings.ReplyTimeout, l.enqCount-1, ErrTimeout))
		return
	}
	poll := l.packager.Control(FrameENQ)
	if poll == nil {
		poll = l.lastFrame
	}
	l.logf("df1: reply timeout, poll %d", l.enqCount)
	l.resend(poll)
}

// fail resolves the request in flight with err.
func (l *link) fail(err error) {
	p := l.current
	l.tm.Resolve(p.Request.header().TNS)
	p.resolve(nil, err)
	l.finish()
	l.resync = true
}

func (l *link) cancel(p *Pending) {
	if p != l.current {
		return
	}
	l.logf("df1: request %d canceled", p.Request.header().TNS)
	l.fail(context.Canceled)
}

func (l *link) finish() {
	l.timer.Stop()
	l.current = nil
	l.lastFrame = nil
	l.nakCount, l.enqCount = 0, 0
	if l.state == linkInFlight {
		l.state = linkIdle
	}
}

// lost drops the port, fails every pending request and schedules a reconnect.
func (l *link) lost(err error) {
	if l.state == linkDisconnected {
		return
	}
	l.logf("df1: link lost: %v", err)
	l.closePort()
	l.timer.Stop()
	l.current = nil
	l.lastFrame = nil
	l.nakCount, l.enqCount = 0, 0
	l.state = linkDisconnected
	l.lastErr = err
	l.tm.CancelAll(fmt.Errorf("df1: %v: %w", err, ErrConnectionLost))
	l.scheduleReconnect()
}

func (l *link) closePort() {
	if l.port == nil {
		return
	}
	close(l.stopRead)
	if err := l.port.Close(); err != nil {
		l.logf("df1: close: %v", err)
	}
	l.port = nil
	l.rx = nil
	l.rxErr = nil
	l.framer.Reset()
	l.resync = false
}

func (l *link) shutdown() {
	l.closePort()
	l.timer.Stop()
	l.reconnect.Stop()
	l.current = nil
	l.state = linkDisconnected
	l.tm.CancelAll(ErrClosed)
}

func (l *link) logf(format string, v ...interface{}) {
	if l.settings.Logger != nil {
		l.settings.Logger.Printf(format, v...)
	}
}
