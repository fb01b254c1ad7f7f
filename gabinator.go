package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/aoa"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/capture"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/config"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/core"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/events"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/logs"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/metrics"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/receiver"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/server"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/server/status"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/usb"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

// errFailed is returned after a failed outcome was already reported.
var errFailed = errors.New("mirroring failed")

type app struct {
	cfg config.Config

	stderrWriter      io.Writer
	stderrLogger      *log.Logger
	shortMemoryWriter *logs.MemoryWriter
	longMemoryWriter  *logs.MemoryWriter
	log               *logs.Logger

	events  *events.Bus
	metrics *metrics.Metrics
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, errFailed) {
		fmt.Fprintln(os.Stderr, "gabinator:", err)
	}
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	var options initOptions

	root := &cobra.Command{
		Use:           "gabinator",
		Short:         "Mirror this screen to an Android device over AOA USB or TCP",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	bindFlags(root.PersistentFlags(), &options)

	setup := func(cmd *cobra.Command) (*app, error) {
		cfg, err := config.Load(options.configFile)
		if err != nil {
			return nil, err
		}
		options.apply(cmd.Flags(), &cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		a := &app{
			cfg:     cfg,
			events:  events.New(),
			metrics: metrics.New(),
		}
		a.stderrWriter, a.stderrLogger, a.shortMemoryWriter, a.longMemoryWriter = initLoggers(options.logfile, options.verbose)
		a.log = &logs.Logger{Writer: a.longMemoryWriter}
		return a, nil
	}

	usbCmd := &cobra.Command{
		Use:   "usb",
		Short: "Switch an attached phone to accessory mode and stream to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			return a.runUSB()
		},
	}

	tcpCmd := &cobra.Command{
		Use:   "tcp",
		Short: "Listen for one client at a time and stream to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			return a.runTCP()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List attached devices that can be mirrored to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			return a.list(cmd.OutOrStdout())
		},
	}

	var recv receiver.Options
	receiveCmd := &cobra.Command{
		Use:   "receive ADDR",
		Short: "Connect to a tcp server and store the frames it sends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			recv.Framing = a.cfg.Stream.Framing
			return a.receive(args[0], recv)
		},
	}
	receiveCmd.Flags().StringVarP(&recv.Dir, "dir", "d", "frames", "Directory the frames are written to")
	receiveCmd.Flags().IntVarP(&recv.MaxFrames, "max-frames", "n", 0, "Stop after this many frames, 0 for no limit")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(options.configFile)
			if err != nil {
				return err
			}
			options.apply(cmd.Flags(), &cfg)
			data, err := config.Encode(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	root.AddCommand(usbCmd, tcpCmd, listCmd, receiveCmd, configCmd)
	return root
}

func notifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newCore builds the core; bus is nil in tcp mode.
func (a *app) newCore(bus aoa.Bus) (*core.Core, error) {
	src, err := capture.New(a.cfg.Capture)
	if err != nil {
		return nil, err
	}
	c := core.New(a.cfg, bus, src, a.events, a.metrics, a.log)
	c.OnOutcome = a.report
	return c, nil
}

// serveStatus starts the status server in the background. The returned
// function waits for it to stop after ctx is done.
func (a *app) serveStatus(ctx context.Context, mode string) func() {
	if !a.cfg.Status.Enabled {
		return func() {}
	}
	tracker := status.NewTracker(mode)
	unsubscribe := tracker.Attach(a.events)

	a.log.Log("creating HTTP server")
	s, err := server.New(
		a.cfg.Status.Address,
		tracker,
		a.metrics,
		a.stderrWriter,
		a.shortMemoryWriter,
		a.longMemoryWriter,
		version,
	)
	if err != nil {
		a.stderrLogger.Printf("status: %s", err)
		unsubscribe()
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.log.Log("running HTTP server")
		if err := s.Run(ctx); err != nil {
			a.stderrLogger.Printf("status: %s", err)
		}
	}()
	a.stderrLogger.Printf("status page on http://%s/status/", a.cfg.Status.Address)
	return func() {
		<-done
		unsubscribe()
	}
}

// report logs the end of one session on the short logs.
func (a *app) report(o core.Outcome) {
	w := io.MultiWriter(a.stderrWriter, a.shortMemoryWriter)
	switch {
	case o.OK():
		fmt.Fprintf(w, "session %d (%s %s) ended after %d frames\n", o.Session, o.Mode, o.Peer, o.Frames)
	case cancelled(o):
		fmt.Fprintf(w, "%s mirroring stopped\n", o.Mode)
	default:
		fmt.Fprintf(w, "Warning: %s mirroring failed: %s\n", o.Mode, o.Reason)
	}
	if err := o.Teardown.Err(); err != nil {
		fmt.Fprintf(w, "Warning: teardown: %s\n", o.Teardown)
	}
}

func cancelled(o core.Outcome) bool {
	return errors.Is(o.Err, context.Canceled)
}

func (a *app) runUSB() error {
	ctx, stop := notifyContext()
	defer stop()

	a.stderrLogger.Print("gabinator is starting.")
	a.log.Log("initing libusb")
	bus, err := usb.InitLibUSB(a.log, a.cfg.USB.ControlTimeout.D(), a.cfg.USB.DetachKernelDriver)
	if err != nil {
		a.stderrLogger.Printf("libusb: %s", err)
		return errFailed
	}
	defer bus.Close()

	c, err := a.newCore(bus)
	if err != nil {
		return err
	}
	wait := a.serveStatus(ctx, core.ModeUSB)

	o := c.MirrorUSB(ctx)
	if o.Session == 0 {
		// no session was started, so OnOutcome never saw it
		a.report(o)
	}
	stop()
	wait()

	a.log.Log("main ended")
	if o.OK() || cancelled(o) {
		return nil
	}
	return errFailed
}

func (a *app) runTCP() error {
	ctx, stop := notifyContext()
	defer stop()

	a.stderrLogger.Print("gabinator is starting.")
	c, err := a.newCore(nil)
	if err != nil {
		return err
	}

	addrs, err := core.LocalAddrs()
	if err != nil {
		a.log.Logf("local addresses: %s", err)
	}
	if len(addrs) > 0 {
		a.stderrLogger.Printf("local addresses: %s", strings.Join(addrs, ", "))
	}

	wait := a.serveStatus(ctx, core.ModeTCP)
	err = c.ListenAndServe(ctx)
	stop()
	wait()

	a.log.Log("main ended")
	if err != nil {
		a.stderrLogger.Printf("tcp: %s", err)
		return errFailed
	}
	return nil
}

func (a *app) list(out io.Writer) error {
	bus, err := usb.InitLibUSB(a.log, a.cfg.USB.ControlTimeout.D(), a.cfg.USB.DetachKernelDriver)
	if err != nil {
		return err
	}
	defer bus.Close()

	c, err := a.newCore(bus)
	if err != nil {
		return err
	}
	cands, err := c.List()
	if err != nil {
		return err
	}
	for _, ref := range cands.Accessory {
		fmt.Fprintf(out, "%s\taccessory mode\n", ref)
	}
	for _, s := range cands.Switchable {
		fmt.Fprintf(out, "%s\tAOA %d\n", s.Ref, s.Version)
	}
	for _, e := range cands.Skipped {
		fmt.Fprintf(out, "skipped: %s\n", e)
	}
	if cands.Len() == 0 {
		fmt.Fprintln(out, "no AOA capable device found")
	}
	return nil
}

func (a *app) receive(addr string, opts receiver.Options) error {
	ctx, stop := notifyContext()
	defer stop()

	n, err := receiver.Run(ctx, addr, opts, a.log)
	a.stderrLogger.Printf("received %d frames into %s", n, opts.Dir)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
