// Command iec61850simd is the daemon entry point (spec.md §6.2): it
// wires together internal/registry, internal/transport, and
// internal/dispatch, and pulls in internal/serveractions and
// internal/clientactions purely for their init-time action
// registration (see the blank imports below).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/Tachiguishi/iec61850-simulator/internal/buildinfo"
	_ "github.com/Tachiguishi/iec61850-simulator/internal/clientactions"
	"github.com/Tachiguishi/iec61850-simulator/internal/dispatch"
	"github.com/Tachiguishi/iec61850-simulator/internal/logging"
	"github.com/Tachiguishi/iec61850-simulator/internal/registry"
	_ "github.com/Tachiguishi/iec61850-simulator/internal/serveractions"
	"github.com/Tachiguishi/iec61850-simulator/internal/transport"
	"github.com/Tachiguishi/iec61850-simulator/internal/wire"
)

const defaultSocketPath = "/tmp/iec61850_simulator.sock"

var flags struct {
	socket        string
	configPath    string
	pdeathsig     bool
	version       bool
	workers       int
	maxFrameBytes uint32
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "iec61850simd [socket-path]",
		Short:         "IEC 61850 simulator control-plane daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE:          run,
	}
	cmd.Flags().StringVar(&flags.socket, "socket", defaultSocketPath, "unix socket path to listen on")
	cmd.Flags().StringVar(&flags.configPath, "config", "log4cplus.ini", "logging configuration file (resolved relative to the working directory)")
	cmd.Flags().BoolVar(&flags.pdeathsig, "pdeathsig", false, "terminate when the parent process exits (Linux only)")
	cmd.Flags().BoolVarP(&flags.version, "version", "v", false, "print build metadata and exit")
	cmd.Flags().IntVar(&flags.workers, "workers", transport.DefaultWorkers, "worker pool size")
	cmd.Flags().Uint32Var(&flags.maxFrameBytes, "max-frame-bytes", wire.DefaultMaxFrameBytes, "maximum accepted frame size in bytes")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if flags.version {
		fmt.Println(buildinfo.String())
		return nil
	}

	socketPath := resolveSocketPath(flags.socket, args)

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	logging.SetLogger(logger)
	logging.Info("starting iec61850simd",
		zap.String("socket", socketPath),
		zap.String("config", flags.configPath),
		zap.String("version", buildinfo.Version),
	)

	if flags.pdeathsig {
		if err := installParentDeathSignal(); err != nil {
			logging.Warn(err)
		}
	}

	reg := registry.NewBackendContext()
	srv := transport.NewServer(transport.Config{
		SocketPath:    socketPath,
		Workers:       flags.workers,
		MaxFrameBytes: flags.maxFrameBytes,
	}, func(body []byte) []byte {
		return dispatch.Dispatch(reg, body)
	})

	if err := srv.Start(); err != nil {
		logging.Error(err)
		return err
	}
	defer srv.Stop()

	waitForShutdown()
	logging.Info("shutting down iec61850simd")
	return nil
}

// resolveSocketPath implements spec.md §6.2's "any positional argument
// that is not `-`-prefixed is treated as the socket path", overriding
// the --socket flag's value.
func resolveSocketPath(flagValue string, args []string) string {
	if len(args) == 1 && args[0] != "-" {
		return args[0]
	}
	return flagValue
}

// installParentDeathSignal requests SIGTERM when this process's parent
// exits, via Linux's PR_SET_PDEATHSIG prctl, per spec.md §6.2's
// "--pdeathsig requests parent-death-signal wiring on Linux".
func installParentDeathSignal() error {
	return unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(syscall.SIGTERM), 0, 0, 0)
}

// waitForShutdown blocks until SIGTERM or SIGINT, per spec.md §6.2's
// "the daemon runs until SIGTERM/SIGKILL" (SIGKILL cannot be caught;
// SIGINT is added so a foreground Ctrl-C shuts down the same way).
func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
}
