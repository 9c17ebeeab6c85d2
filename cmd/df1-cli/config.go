package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/grid-x/df1"
)

// config is the df1-cli configuration file.
type config struct {
	PLC    linkConfig   `yaml:"plc"`
	Drive  linkConfig   `yaml:"drive"`
	Poll   pollConfig   `yaml:"poll"`
	Notify notifyConfig `yaml:"notify"`
}

// linkConfig describes one serial line or device server.
type linkConfig struct {
	// Address is serial:///dev/ttyUSB0 or tcp://host:port
	Address           string        `yaml:"address"`
	BaudRate          int           `yaml:"baud_rate"`
	DataBits          int           `yaml:"data_bits"`
	Parity            string        `yaml:"parity"`
	StopBits          int           `yaml:"stop_bits"`
	Node              int           `yaml:"node"`
	Source            int           `yaml:"source,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	MaxNAK            int           `yaml:"max_nak,omitempty"`
	MaxENQ            int           `yaml:"max_enq,omitempty"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval,omitempty"`
}

type pollConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Output    string        `yaml:"output"`
	Variables []string      `yaml:"variables"`
	Alarms    []string      `yaml:"alarms"`
	// UploadDir receives the log file when polling stops.
	UploadDir string `yaml:"upload_dir,omitempty"`
}

type notifyConfig struct {
	Subject string `yaml:"subject"`
}

func defaultConfig() *config {
	return &config{
		PLC: linkConfig{
			Address:  "serial:///dev/ttyUSB0",
			BaudRate: 19200,
			DataBits: 8,
			Parity:   "N",
			StopBits: 1,
			Node:     1,
		},
		Drive: linkConfig{
			Address:  "serial:///dev/ttyUSB1",
			BaudRate: 9600,
			DataBits: 8,
			Parity:   "N",
			StopBits: 1,
			Node:     1,
		},
		Poll: pollConfig{
			Interval: time.Second,
			Output:   "df1-poll.csv",
		},
		Notify: notifyConfig{
			Subject: "DF1 alarm",
		},
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *config) validate() error {
	var errs []error
	for name, l := range map[string]*linkConfig{"plc": &c.PLC, "drive": &c.Drive} {
		if err := l.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Drive.Node > 99 {
		errs = append(errs, fmt.Errorf("drive: node %d must be between 0 and 99", c.Drive.Node))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poll: interval must be positive"))
	}
	for _, symbol := range append(append([]string(nil), c.Poll.Variables...), c.Poll.Alarms...) {
		if _, err := df1.ParseAddress(symbol); err != nil {
			errs = append(errs, fmt.Errorf("poll: %w", err))
		}
	}
	for _, symbol := range c.Poll.Alarms {
		if a, err := df1.ParseAddress(symbol); err == nil && !a.HasBit {
			errs = append(errs, fmt.Errorf("poll: alarm %s does not name a bit", symbol))
		}
	}
	return errors.Join(errs...)
}

func (l *linkConfig) validate() error {
	if _, _, err := l.endpoint(); err != nil {
		return err
	}
	switch strings.ToUpper(l.Parity) {
	case "N", "E", "O":
	default:
		return fmt.Errorf("parity %q must be N, E or O", l.Parity)
	}
	if l.Node < 0 || l.Node > 0xFF {
		return fmt.Errorf("node %d out of range", l.Node)
	}
	return nil
}

// endpoint splits Address into its scheme and device or host.
func (l *linkConfig) endpoint() (scheme, target string, err error) {
	u, err := url.Parse(l.Address)
	if err != nil {
		return "", "", err
	}
	switch u.Scheme {
	case "serial":
		return u.Scheme, u.Path, nil
	case "tcp":
		return u.Scheme, u.Host, nil
	}
	return "", "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
}

func (l *linkConfig) settings(logger *debugAdapter) df1.LinkSettings {
	return df1.LinkSettings{
		ReplyTimeout:      l.Timeout,
		MaxNAK:            l.MaxNAK,
		MaxENQ:            l.MaxENQ,
		ReconnectInterval: l.ReconnectInterval,
		Logger:            logger,
	}
}

// newPLCHandler builds the DF1 handler for the plc section.
func newPLCHandler(l *linkConfig, logger *debugAdapter) (df1.ClientHandler, error) {
	scheme, target, err := l.endpoint()
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "serial":
		h := df1.NewDF1ClientHandler(target)
		h.Destination = byte(l.Node)
		h.Source = byte(l.Source)
		h.BaudRate = l.BaudRate
		h.DataBits = l.DataBits
		h.Parity = strings.ToUpper(l.Parity)
		h.StopBits = l.StopBits
		h.LinkSettings = l.settings(logger)
		return h, nil
	default:
		h := df1.NewDF1OverTCPClientHandler(target)
		h.Destination = byte(l.Node)
		h.Source = byte(l.Source)
		h.LinkSettings = l.settings(logger)
		return h, nil
	}
}

// newDriveHandler builds the drive handler for the drive section.
func newDriveHandler(l *linkConfig, logger *debugAdapter) (df1.ClientHandler, error) {
	scheme, target, err := l.endpoint()
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "serial":
		h := df1.NewDriveClientHandler(target)
		h.SetAddress(byte(l.Node))
		h.BaudRate = l.BaudRate
		h.DataBits = l.DataBits
		h.Parity = strings.ToUpper(l.Parity)
		h.StopBits = l.StopBits
		h.LinkSettings = l.settings(logger)
		return h, nil
	default:
		h := df1.NewDriveOverTCPClientHandler(target)
		h.SetAddress(byte(l.Node))
		h.LinkSettings = l.settings(logger)
		return h, nil
	}
}
