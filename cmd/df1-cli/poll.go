package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/grid-x/df1"
)

// poller reads the configured variables once per cycle, logs them as CSV
// rows and raises a notification when an alarm bit goes from 0 to 1.
type poller struct {
	client   df1.Client
	cfg      pollConfig
	subject  string
	notifier df1.Notifier
	logger   *slog.Logger
	now      func() time.Time

	out    *csv.Writer
	alarms map[string]bool
}

func newPoller(client df1.Client, cfg pollConfig, subject string, notifier df1.Notifier, w io.Writer, logger *slog.Logger) *poller {
	return &poller{
		client:   client,
		cfg:      cfg,
		subject:  subject,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		out:      csv.NewWriter(w),
		alarms:   make(map[string]bool),
	}
}

// writeHeader writes the column names.
func (p *poller) writeHeader() error {
	if err := p.out.Write(append([]string{"time"}, p.cfg.Variables...)); err != nil {
		return err
	}
	p.out.Flush()
	return p.out.Error()
}

// run polls until ctx is done.
func (p *poller) run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		if err := p.cycle(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// cycle reads every variable and alarm once. Read failures leave an empty
// cell; only a failing output aborts polling.
func (p *poller) cycle(ctx context.Context) error {
	row := []string{p.now().Format(time.RFC3339)}
	for _, symbol := range p.cfg.Variables {
		values, err := p.client.ProtectedRead(ctx, symbol, 1)
		if err != nil {
			p.logger.Warn("read failed", "address", symbol, "error", err)
			row = append(row, "")
			continue
		}
		row = append(row, formatValue(values[0]))
	}
	if err := p.out.Write(row); err != nil {
		return err
	}
	p.out.Flush()
	if err := p.out.Error(); err != nil {
		return fmt.Errorf("failed to write poll log: %w", err)
	}

	for _, symbol := range p.cfg.Alarms {
		values, err := p.client.ProtectedRead(ctx, symbol, 1)
		if err != nil {
			p.logger.Warn("alarm read failed", "address", symbol, "error", err)
			continue
		}
		set := values[0] == int16(1)
		if set && !p.alarms[symbol] {
			body := fmt.Sprintf("%s set at %s", symbol, p.now().Format(time.RFC3339))
			if err := p.notifier.Notify(ctx, p.subject, body); err != nil {
				p.logger.Warn("notification failed", "address", symbol, "error", err)
			}
		}
		p.alarms[symbol] = set
	}
	return nil
}

// ship uploads the poll log when an upload directory is configured.
func ship(ctx context.Context, transfer df1.FileTransfer, output string) error {
	if transfer == nil {
		return nil
	}
	return transfer.Transfer(ctx, df1.Upload, output, filepath.Base(output))
}
