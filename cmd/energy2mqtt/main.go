// cmd/energy2mqtt/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tamzrod/energy2mqtt/internal/config"
	"github.com/tamzrod/energy2mqtt/internal/logging"
	"github.com/tamzrod/energy2mqtt/internal/metrics"
	"github.com/tamzrod/energy2mqtt/internal/poller"
	"github.com/tamzrod/energy2mqtt/internal/registers"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

// options is filled by flags, env and the config file, in that precedence.
type options struct {
	cfg     config.Config
	cfgFile string
}

func main() {
	opts := &options{cfg: config.Default()}
	if err := newRootCmd(opts).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "energy2mqtt",
		Short: "Poll a Modbus TCP energy meter and publish readings to MQTT",
		Long: `energy2mqtt reads a block of registers from one Modbus TCP device on a
fixed interval, decodes it with a register map and publishes every value
to {prefix}/{id}/value and {prefix}/{id}/unit.

Every flag can also be set through an ENERGY2MQTT_* environment variable,
e.g. --modbus-host is ENERGY2MQTT_MODBUS_HOST.`,
		Version:      fmt.Sprintf("%s (commit: %s)", version, gitCommit),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd.Flags(), os.LookupEnv)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts.cfg)
		},
	}

	bindFlags(root.PersistentFlags(), opts)
	root.AddCommand(newRegistersCmd(opts), newVersionCmd())
	return root
}

// bindFlags points every flag at its config field; defaults come from cfg.
func bindFlags(fs *pflag.FlagSet, opts *options) {
	c := &opts.cfg

	fs.StringVarP(&opts.cfgFile, "config", "c", "", "YAML config file (env "+config.EnvName("config")+")")

	// ---- modbus ----
	fs.StringVar(&c.Modbus.Host, "modbus-host", c.Modbus.Host, "Modbus TCP host, e.g. 192.168.10.48 (required)")
	fs.IntVar(&c.Modbus.Port, "modbus-port", c.Modbus.Port, "Modbus TCP port (required)")
	fs.Uint8Var(&c.Modbus.ID, "modbus-id", c.Modbus.ID, "Modbus unit/slave id")
	fs.IntVar(&c.Modbus.ScanIntervalMs, "modbus-scan-interval", c.Modbus.ScanIntervalMs, "poll interval in milliseconds")
	fs.IntVar(&c.Modbus.TimeoutMs, "modbus-timeout", c.Modbus.TimeoutMs, "connect/read timeout in milliseconds")
	fs.Uint8Var(&c.Modbus.Function, "modbus-function", c.Modbus.Function, "3 = holding registers, 4 = input registers")
	fs.Uint16Var(&c.Modbus.Start, "modbus-start", c.Modbus.Start, "first register of the polled block")
	fs.Uint16Var(&c.Modbus.Count, "modbus-count", c.Modbus.Count, "number of registers in the polled block")
	fs.StringVar(&c.Modbus.RegisterMap, "register-map", c.Modbus.RegisterMap, "register map file (default: built-in SDM630)")

	// ---- mqtt ----
	fs.StringVar(&c.MQTT.Host, "mqtt-host", c.MQTT.Host, "MQTT host, e.g. mqtt://192.168.11.40 (required)")
	fs.IntVar(&c.MQTT.Port, "mqtt-port", c.MQTT.Port, "MQTT port")
	fs.StringVar(&c.MQTT.Username, "mqtt-username", c.MQTT.Username, "MQTT username")
	fs.StringVar(&c.MQTT.Password, "mqtt-password", c.MQTT.Password, "MQTT password")
	fs.StringVar(&c.MQTT.Prefix, "mqtt-prefix", c.MQTT.Prefix, "MQTT topic prefix")
	fs.StringVar(&c.MQTT.ClientID, "mqtt-client-id", c.MQTT.ClientID, "MQTT client id")
	fs.Uint8Var(&c.MQTT.QoS, "mqtt-qos", c.MQTT.QoS, "MQTT publish QoS (0-2)")
	fs.BoolVar(&c.MQTT.Retain, "mqtt-retain", c.MQTT.Retain, "publish with the retained flag")
	fs.IntVar(&c.MQTT.TimeoutMs, "mqtt-timeout", c.MQTT.TimeoutMs, "MQTT connect/publish timeout in milliseconds")

	// ---- ambient ----
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "debug, info, warn or error")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "console or json")
	fs.StringVar(&c.Metrics.Listen, "metrics-listen", c.Metrics.Listen, "serve prometheus /metrics on this address (disabled when empty)")
}

// resolve layers default < file < env < flag into opts.cfg.
func (o *options) resolve(fs *pflag.FlagSet, lookup func(string) (string, bool)) error {
	// Flags are bound to cfg fields: remember them before the file overwrites.
	given := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		given[f.Name] = f.Value.String()
	})

	if o.cfgFile == "" {
		if v, ok := lookup(config.EnvName("config")); ok {
			o.cfgFile = v
		}
	}
	if o.cfgFile != "" {
		if err := config.LoadInto(o.cfgFile, &o.cfg); err != nil {
			return err
		}
	}

	if err := config.ApplyEnv(fs, lookup, "config", "help", "version"); err != nil {
		return err
	}

	for name, v := range given {
		if err := fs.Set(name, v); err != nil {
			return fmt.Errorf("flag --%s: %w", name, err)
		}
	}
	return nil
}

func run(ctx context.Context, cfg config.Config) error {
	if err := config.Validate(&cfg); err != nil {
		return err
	}
	config.Normalize(&cfg)

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, os.Stdout)
	log.Info().
		Str("version", version).
		Str("modbus", fmt.Sprintf("%s:%d", cfg.Modbus.Host, cfg.Modbus.Port)).
		Uint8("unit_id", cfg.Modbus.ID).
		Dur("interval", cfg.Modbus.ScanInterval()).
		Str("mqtt", cfg.MQTT.Host).
		Str("prefix", cfg.MQTT.Prefix).
		Msg("starting ENERGY2MQTT")

	p, closeBus, err := poller.Build(cfg, log)
	if err != nil {
		return fmt.Errorf("build poller: %w", err)
	}
	defer closeBus()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Listen != "" {
		go metrics.Serve(ctx, cfg.Metrics.Listen, log)
	}

	p.Run(ctx)
	return nil
}

// newRegistersCmd prints the register map the poller would use.
func newRegistersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "registers",
		Short: "Show the register map and how it fits the polled block",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := registers.Load(opts.cfg.Modbus.RegisterMap)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tBYTE OFFSET\tBYTES\tDECIMALS\tUNIT")
			for _, d := range m {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", d.ID, d.Register, d.Bytes, d.ToFixed, d.Unit)
			}
			fmt.Fprintf(tw, "%s\t-\t-\t0\t%s\n", registers.PowerTotalID, registers.PowerUnit)
			if err := tw.Flush(); err != nil {
				return err
			}

			block := int(opts.cfg.Modbus.Count) * 2
			fmt.Fprintf(out, "\nmap span %d bytes, polled block %d bytes (fc %d, %d+%d)\n",
				m.Span(), block, opts.cfg.Modbus.Function, opts.cfg.Modbus.Start, opts.cfg.Modbus.Count)
			if m.Span() > block {
				return fmt.Errorf("register map reaches past the polled block")
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "energy2mqtt %s\n  Commit: %s\n", version, gitCommit)
		},
	}
}
