package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/liamg/portaudit/audit"
	"github.com/liamg/portaudit/metrics"
	"github.com/liamg/portaudit/scan"
	"github.com/liamg/portaudit/version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	flagHost        = "hostaddress"
	flagPorts       = "port"
	flagStart       = "startportrange"
	flagEnd         = "endportrange"
	flagTimeout     = "timeout-ms"
	flagWorkers     = "workers"
	flagScanType    = "scan-type"
	flagMetricsFile = "metrics-file"
	flagVerbose     = "verbose"

	envPrefix = "PORTAUDIT"
)

type scannerFactory func(scanType string, timeout time.Duration, routines int) (scan.Scanner, error)

func createScanner(scanTypeStr string, timeout time.Duration, routines int) (scan.Scanner, error) {
	switch strings.ToLower(scanTypeStr) {
	case "stealth", "syn", "fast":
		if os.Geteuid() > 0 {
			return nil, audit.NewConfigError("Error, access denied: you must be a privileged user to run a stealth scan", nil)
		}
		return scan.NewSynScanner(timeout), nil
	case "connect":
		return scan.NewConnectScanner(timeout, routines), nil
	}

	return nil, audit.NewConfigError(fmt.Sprintf("Error, unknown scan type '%s'", scanTypeStr), nil)
}

func newRootCommand(v *viper.Viper, out io.Writer, newScanner scannerFactory, exitCode *int) *cobra.Command {
	var configFile string
	var versionRequested bool

	cmd := &cobra.Command{
		Use:   "portaudit -H <host> [-P <allowed ports>] [-S <start port>] [-E <end port>]",
		Short: "portaudit checks the open ports of a host against an allow-list",
		Long: `Scans a TCP port range on a host and compares the open ports with the ports
that have been authorised to be open. The exit code follows the monitoring
plugin convention: 0 OK, 1 WARNING, 2 CRITICAL, 3 UNKNOWN.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {

			if versionRequested {
				ver := version.Version
				if ver == "" {
					ver = "development version"
				}
				fmt.Fprintf(out, "portaudit %s\n", ver)
				*exitCode = 0
				return nil
			}

			if configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return audit.NewConfigError(fmt.Sprintf("Error, could not read config file '%s'", configFile), err)
				}
			}

			opts, err := loadOptions(v)
			if err != nil {
				return err
			}

			if opts.Verbose {
				log.SetLevel(log.DebugLevel)
			}

			verdict := runAudit(cmd.Context(), opts, newScanner)
			*exitCode = audit.Report(out, verdict)
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return audit.NewConfigError(fmt.Sprintf("Error, %s", err), err)
	})

	flags := cmd.Flags()
	flags.StringP(flagHost, "H", "", "Specify the IP address you want to check")
	flags.StringP(flagPorts, "P", "", "Specify the port or list of ports that are allowed to be open. Example: -P 500,21,23,80,3333")
	flags.StringP(flagStart, "S", "0", "Specify the start port from which open ports will be checked (start port included)")
	flags.StringP(flagEnd, "E", "65536", "Specify the end port to which open ports will be checked (end port included)")
	flags.IntP(flagTimeout, "t", 0, "Per port connect timeout in MS, 0 leaves it to the operating system")
	flags.IntP(flagWorkers, "w", 1, "Number of ports to probe in parallel")
	flags.StringP(flagScanType, "s", "connect", "Scan type. Must be one of connect, stealth")
	flags.String(flagMetricsFile, "", "Write Prometheus metrics for this run to the given file")
	flags.BoolP(flagVerbose, "v", false, "Enable verbose logging")
	flags.StringVar(&configFile, "config", "", "Read options from a config file (yaml, json or toml)")
	flags.BoolVar(&versionRequested, "version", false, "Output version information and exit")

	bindFlags(v, flags)

	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" {
			return
		}
		_ = v.BindPFlag(f.Name, f)
	})
}

// runAudit resolves, scans and classifies. All input has been validated by the
// time it is called, apart from the allow-list which is checked before any
// socket is opened.
func runAudit(ctx context.Context, opts *Options, newScanner scannerFactory) audit.Verdict {

	allowed, err := audit.ParseAllowList(opts.AllowList)
	if err != nil {
		return unknown(err)
	}

	scanner, err := newScanner(opts.ScanType, opts.Timeout(), opts.Workers)
	if err != nil {
		return unknown(err)
	}

	ip, err := scan.ResolveHost(ctx, opts.Host)
	if err != nil {
		log.Debugf("Failed to resolve %s: %s", opts.Host, err)
		return audit.Unknown(fmt.Sprintf("Error, could not resolve host '%s'", opts.Host))
	}

	log.Debugf("Scanning %s (%s) ports %s...", opts.Host, ip, opts.Range())

	result, err := scanner.Scan(ctx, ip, opts.Range())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return audit.Unknown("Error, scan interrupted")
		}
		return audit.Unknown(fmt.Sprintf("Error, scan of '%s' failed: %s", opts.Host, err))
	}

	log.Debugf("Scan complete in %s.", result.Duration)
	log.Debug(result.String())

	open := audit.NewPortSet(result.Open...)
	verdict := audit.Classify(open, allowed)

	if opts.MetricsFile != "" {
		err := metrics.WriteTextfile(opts.MetricsFile, metrics.Run{
			Host:     opts.Host,
			Verdict:  verdict,
			Open:     open,
			Allowed:  allowed,
			Scanned:  result.Scanned(),
			Duration: result.Duration,
		})
		if err != nil {
			log.Warnf("Failed to write metrics to %s: %s", opts.MetricsFile, err)
		}
	}

	return verdict
}

func unknown(err error) audit.Verdict {
	var configErr *audit.ConfigError
	if errors.As(err, &configErr) {
		return audit.Unknown(configErr.Message)
	}
	return audit.Unknown(fmt.Sprintf("Error, %s", err))
}

func execute(ctx context.Context, args []string, out io.Writer, newScanner scannerFactory) int {
	exitCode := audit.StatusOK.ExitCode()

	rootCmd := newRootCommand(viper.New(), out, newScanner, &exitCode)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Debugf("Invalid invocation: %s", err)
		return audit.Report(out, unknown(err))
	}

	return exitCode
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, os.Args[1:], os.Stdout, createScanner)
}
