package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/grid-x/df1"
)

var version = "dev"

// app carries what every subcommand shares.
type app struct {
	configPath string
	verbose    bool
	cfg        *config
	logger     *slog.Logger
	out        io.Writer

	// flag overrides
	plcAddress   string
	plcNode      int
	driveAddress string
	driveNode    int
	timeout      time.Duration
}

func main() {
	a := &app{out: os.Stdout}
	rootCmd := newRootCmd(a)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "df1-cli",
		Short:   "Talk to Allen-Bradley PLCs over DF1 and to MTrim drives",
		Version: version,
		Long: `df1-cli reads and writes PLC data tables over DF1 full-duplex,
sets drive parameters over the MTrim ASCII protocol and logs polled values.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML configuration file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log frames and retries")
	flags.StringVar(&a.plcAddress, "plc", "", "PLC link, e.g. serial:///dev/ttyUSB0 or tcp://10.0.0.5:4001")
	flags.IntVar(&a.plcNode, "node", 1, "PLC node address")
	flags.StringVar(&a.driveAddress, "drive", "", "drive link, e.g. serial:///dev/ttyUSB1")
	flags.IntVar(&a.driveNode, "drive-node", 1, "drive address (0-99)")
	flags.DurationVar(&a.timeout, "timeout", 0, "reply timeout before polling the remote")

	rootCmd.AddCommand(newReadCmd(a))
	rootCmd.AddCommand(newWriteCmd(a))
	rootCmd.AddCommand(newBitCmd(a))
	rootCmd.AddCommand(newDriveCmd(a))
	rootCmd.AddCommand(newPollCmd(a))
	rootCmd.AddCommand(newPortsCmd(a))
	rootCmd.AddCommand(newParseCmd(a))
	return rootCmd
}

// init loads the configuration and applies the flags set on the command line.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("plc") {
		cfg.PLC.Address = a.plcAddress
	}
	if flags.Changed("node") {
		cfg.PLC.Node = a.plcNode
	}
	if flags.Changed("drive") {
		cfg.Drive.Address = a.driveAddress
	}
	if flags.Changed("drive-node") {
		cfg.Drive.Node = a.driveNode
	}
	if flags.Changed("timeout") {
		cfg.PLC.Timeout = a.timeout
		cfg.Drive.Timeout = a.timeout
	}
	a.cfg = cfg
	a.logger = newLogger(os.Stderr, a.verbose)
	return nil
}

func (a *app) plcClient() (df1.Client, error) {
	h, err := newPLCHandler(&a.cfg.PLC, &debugAdapter{a.logger})
	if err != nil {
		return nil, err
	}
	return df1.NewClient(h), nil
}

func (a *app) driveClient() (df1.Drive, error) {
	h, err := newDriveHandler(&a.cfg.Drive, &debugAdapter{a.logger})
	if err != nil {
		return nil, err
	}
	return df1.NewDriveClient(h), nil
}

// requestContext bounds a one-shot command by the retry budget of the link.
func (a *app) requestContext(parent context.Context, l *linkConfig) (context.Context, context.CancelFunc) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(parent, 10*timeout)
}

func newReadCmd(a *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "read <address>",
		Short: "Read PLC data table elements",
		Example: `  df1-cli read N7:0 --count 4
  df1-cli read T4:2.ACC
  df1-cli read B3/20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := df1.ParseAddress(args[0])
			if err != nil {
				return err
			}
			client, err := a.plcClient()
			if err != nil {
				return err
			}
			defer client.Close()
			ctx, cancel := a.requestContext(cmd.Context(), &a.cfg.PLC)
			defer cancel()
			values, err := client.ProtectedRead(ctx, args[0], count)
			if err != nil {
				return err
			}
			return printValues(a.out, address, values)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of elements")
	return cmd
}

func printValues(w io.Writer, address df1.WireAddress, values []any) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, v := range values {
		a := address
		// a bit read returns the same bit of consecutive elements
		if a.SubElement > 0 && !a.HasBit {
			a.SubElement += uint16(i)
		} else {
			a.Element += uint16(i)
		}
		fmt.Fprintf(tw, "%v\t%s\n", a, formatValue(v))
	}
	return tw.Flush()
}

func newWriteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "write <address> <value>...",
		Short: "Write PLC data table elements",
		Example: `  df1-cli write N7:0 42 43
  df1-cli write F8:1 3.5
  df1-cli write T4:0 0,100,0`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := df1.ParseAddress(args[0])
			if err != nil {
				return err
			}
			values := make([]any, 0, len(args)-1)
			for _, s := range args[1:] {
				v, err := parseValue(address, s)
				if err != nil {
					return err
				}
				values = append(values, v)
			}
			client, err := a.plcClient()
			if err != nil {
				return err
			}
			defer client.Close()
			ctx, cancel := a.requestContext(cmd.Context(), &a.cfg.PLC)
			defer cancel()
			if err := client.ProtectedWrite(ctx, args[0], values...); err != nil {
				return err
			}
			a.logger.Info("written", "address", address.String(), "count", len(values))
			return nil
		},
	}
}

func newBitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "bit <address> <0|1>",
		Short:   "Set or clear one PLC bit",
		Example: `  df1-cli bit B3/20 1`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid bit value %q", args[1])
			}
			client, err := a.plcClient()
			if err != nil {
				return err
			}
			defer client.Close()
			ctx, cancel := a.requestContext(cmd.Context(), &a.cfg.PLC)
			defer cancel()
			return client.ProtectedBitWrite(ctx, args[0], set)
		},
	}
}

func newDriveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Read and write MTrim drive parameters",
	}

	withDrive := func(run func(ctx context.Context, d df1.Drive, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			d, err := a.driveClient()
			if err != nil {
				return err
			}
			defer d.Close()
			ctx, cancel := a.requestContext(cmd.Context(), &a.cfg.Drive)
			defer cancel()
			return run(ctx, d, args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "read <parameter>",
		Short: "Read a drive parameter",
		Args:  cobra.ExactArgs(1),
		RunE: withDrive(func(ctx context.Context, d df1.Drive, args []string) error {
			param, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid parameter %q", args[0])
			}
			v, err := d.ReadParameter(ctx, param)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "P%02d\t%v\n", param, v)
			return err
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "write <parameter> <value>",
		Short: "Send a value to a drive parameter",
		Args:  cobra.ExactArgs(2),
		RunE: withDrive(func(ctx context.Context, d df1.Drive, args []string) error {
			param, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid parameter %q", args[0])
			}
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid value %q", args[1])
			}
			echo, err := d.WriteParameter(ctx, param, value)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "P%02d\t%v\n", param, echo)
			return err
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "control <command>",
		Short: "Send a numbered control command",
		Args:  cobra.ExactArgs(1),
		RunE: withDrive(func(ctx context.Context, d df1.Drive, args []string) error {
			code, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid command %q", args[0])
			}
			return d.ControlCommand(ctx, code)
		}),
	})
	return cmd
}

func newPollCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Log the configured variables and watch the alarm bits",
		Long: `poll reads poll.variables every poll.interval, appends one CSV row per
cycle to poll.output and reports each alarm bit that goes from 0 to 1.
The log file is copied to poll.upload_dir when polling stops.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			f, err := os.OpenFile(a.cfg.Poll.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open poll log: %w", err)
			}
			defer f.Close()

			client, err := a.plcClient()
			if err != nil {
				return err
			}
			defer client.Close()

			p := newPoller(client, a.cfg.Poll, a.cfg.Notify.Subject, &df1.LogNotifier{Logger: &infoAdapter{a.logger}}, f, a.logger)
			if info, err := f.Stat(); err == nil && info.Size() == 0 {
				if err := p.writeHeader(); err != nil {
					return err
				}
			}
			a.logger.Info("polling", "variables", len(a.cfg.Poll.Variables), "alarms", len(a.cfg.Poll.Alarms), "interval", a.cfg.Poll.Interval)
			if err := p.run(ctx); err != nil {
				return err
			}

			var transfer df1.FileTransfer
			if a.cfg.Poll.UploadDir != "" {
				transfer = &df1.DirTransfer{Root: a.cfg.Poll.UploadDir}
			}
			return ship(context.WithoutCancel(ctx), transfer, a.cfg.Poll.Output)
		},
	}
}

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <address>",
		Short: "Show the wire fields of a data table address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := df1.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return printAddress(a.out, address)
		},
	}
}

func printAddress(w io.Writer, address df1.WireAddress) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "symbol\t%v\n", address)
	fmt.Fprintf(tw, "file\t%d\n", address.FileNumber)
	fmt.Fprintf(tw, "type\t%v (%#02x)\n", address.FileType, byte(address.FileType))
	fmt.Fprintf(tw, "element\t%d\n", address.Element)
	fmt.Fprintf(tw, "subelement\t%d\n", address.SubElement)
	if address.HasBit {
		fmt.Fprintf(tw, "bit\t%d\n", address.Bit)
	} else {
		fmt.Fprintf(tw, "bit\t-\n")
	}
	return tw.Flush()
}
