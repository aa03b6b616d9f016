// Command ndcc-sim drives a Core against simulated discovery, transport
// and upper-layer collaborators, so the event loop and state machine
// can be exercised end to end without a real driver process or kernel.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ndcc/ndcc"
	"github.com/ndcc/ndcc/internal/grant"
	"github.com/ndcc/ndcc/internal/interfaces"
	"github.com/ndcc/ndcc/internal/logging"
	"golang.org/x/sys/unix"
)

func main() {
	var (
		nrNdev   = flag.Int("nr-ndev", ndcc.DefaultConfig().NrNdev, "driver table capacity")
		verbose  = flag.Bool("v", false, "verbose logging")
		cpu      = flag.Int("cpu", -1, "pin the event loop to this CPU core (-1 = don't pin)")
		spawn    = flag.String("spawn", "eth0", "comma-separated labels to bring up at start")
		tickMs   = flag.Int("tick-ms", 20, "event loop poll interval in milliseconds")
		ipcFD    = flag.Int("ipc-fd", -1, "real driver-proxy file descriptor to send over (requires -tags giouring; -1 uses the in-process emulator)")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	if *cpu >= 0 {
		if err := pinToCPU(*cpu); err != nil {
			logger.Warn("failed to pin event loop to cpu", "cpu", *cpu, "error", err)
		} else {
			logger.Info("pinned event loop", "cpu", *cpu)
		}
	}

	cfg := ndcc.DefaultConfig()
	cfg.NrNdev = *nrNdev

	discovery := NewSimDiscovery()
	transport := NewSimTransport(logger)
	ethif := NewSimEthIf(logger)
	granter := grant.NewSimPool(ndcc.NrNreq(cfg) * ndcc.IOVMax)

	var coreTransport interfaces.Transport = transport
	ringTransport, ringEnabled, err := newRingTransport(*ipcFD)
	if err != nil {
		logger.Error("failed to build giouring transport", "error", err)
		os.Exit(1)
	}
	if ringEnabled {
		logger.Info("using giouring-backed transport", "fd", *ipcFD)
		coreTransport = ringTransport
	}

	core, err := ndcc.New(cfg, coreTransport, granter, discovery, ethif, &ndcc.Options{Logger: logger})
	if err != nil {
		logger.Error("failed to build core", "error", err)
		os.Exit(1)
	}

	ep := spawnDrivers(discovery, transport, *spawn)
	logger.Info("spawned simulated drivers", "count", len(ep))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(*tickMs) * time.Millisecond)
	defer ticker.Stop()

	logger.Info("event loop running, press Ctrl+C to stop")
	for {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			snap := core.Metrics().Snapshot()
			fmt.Printf("table-full drops: %d  init valid/invalid: %d/%d  queue resets: %d\n",
				snap.TableFullDropped, snap.InitRepliesValid, snap.InitRepliesInvalid, snap.QueueResets)
			return
		case <-ticker.C:
			core.Check()
			if !ringEnabled {
				transport.Tick()
				for _, reply := range transport.DrainReplies() {
					sender, msg := reply()
					core.HandleMessage(sender, msg)
				}
			}
		}
	}
}

func spawnDrivers(discovery *SimDiscovery, transport *SimTransport, labelsCSV string) []string {
	var labels []string
	start := 0
	for i := 0; i <= len(labelsCSV); i++ {
		if i == len(labelsCSV) || labelsCSV[i] == ',' {
			if i > start {
				labels = append(labels, labelsCSV[start:i])
			}
			start = i + 1
		}
	}
	for i, label := range labels {
		ep := interfaces.Endpoint(1000 + i)
		transport.Attach(ep, label)
		discovery.Up(label, ep)
	}
	return labels
}

func pinToCPU(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	runtime.LockOSThread()
	return unix.SchedSetaffinity(0, &set)
}
