// Command otbridge is the bootstrap binary wiring a serial-attached
// co-processor to the radio package, standing in for the Thread/IPv6
// stack's own process bootstrap (out of scope per spec.md §1, so a minimal
// in-memory stack fixture drives it here).
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/Cascoda/ca821x-posix-thread/internal/coproc"
	"github.com/Cascoda/ca821x-posix-thread/radio"
	"github.com/Cascoda/ca821x-posix-thread/thread"
)

var (
	app = kingpin.New("otbridge", "Bridge a Thread/IPv6 stack fixture to an IEEE 802.15.4 hard-MAC co-processor.")

	device    = app.Flag("device", "serial device path to the co-processor").Required().String()
	baud      = app.Flag("baud", "serial baud rate").Default("115200").Uint()
	channel   = app.Flag("channel", "initial 802.15.4 channel (11-26)").Default("11").Uint8()
	panID     = app.Flag("pan-id", "initial PAN id").Default("0xFACE").Uint16()
	eui64File = app.Flag("eui64-file", "path persisting the generated extended address across restarts").Default("otbridge-eui64.bin").String()
	verbose   = app.Flag("verbose", "enable debug logging").Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := log.New(os.Stderr)
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	client, err := coproc.NewSerialClient(*device, *baud, logger)
	if err != nil {
		logger.Fatal("otbridge: opening co-processor link", "err", err)
	}
	defer client.Close()

	stack := thread.NewMemStack(thread.RoleChild, *panID, *channel)

	plat := radio.New(radio.Config{
		Client:     client,
		Stack:      stack,
		Logger:     logger,
		EUI64Store: &radio.FileEUI64Store{Path: *eui64File},
		Callbacks: radio.Callbacks{
			ReceiveDone: func(pkt *radio.Packet, err error) {
				if err != nil {
					logger.Warn("otbridge: receive error", "err", err)
					return
				}
				logger.Info("otbridge: frame received", "len", len(pkt.Bytes()), "lqi", pkt.LQI)
			},
			TransmitDone: func(context any, ackReceived bool, err error) {
				logger.Info("otbridge: transmit done", "context", context, "ack", ackReceived, "err", err)
			},
			ActiveScanResult: func(result *radio.BeaconResult) {
				if result == nil {
					logger.Info("otbridge: active scan complete")
					return
				}
				logger.Info("otbridge: beacon", "channel", result.Channel, "pan", result.PanID, "name", result.NetworkName)
			},
			EnergyScanResult: func(result *radio.EnergyResult) {
				if result == nil {
					logger.Info("otbridge: energy scan complete")
					return
				}
				logger.Info("otbridge: energy", "channel", result.Channel, "rssi", result.RSSI)
			},
		},
	})

	if err := plat.Init(); err != nil {
		logger.Fatal("otbridge: init", "err", err)
	}
	if status := plat.Enable(); status != radio.StatusOK {
		logger.Fatal("otbridge: enable", "status", status)
	}
	if status := plat.Receive(*channel); status != radio.StatusOK {
		logger.Fatal("otbridge: receive", "status", status)
	}
	logger.Info("otbridge: running", "device", *device, "channel", *channel, "pan", *panID, "eui64", plat.GetIEEEEUI64())

	runMainLoop(plat, logger)
}

// runMainLoop stands in for the stack's single-threaded event loop (out of
// scope per spec.md §1). Per spec.md §5 the loop suspends only in its
// multiplexing poll, with the self-pipe, the UART fd, and an alarm timeout
// as ready sources; the UART fd itself is owned by the coproc client, so
// this loop polls just the self-pipe plus a fixed timeout standing in for
// the alarm subsystem, and drains every pending barrier passage each time
// it wakes.
func runMainLoop(plat *radio.Radio, logger *log.Logger) {
	var pipeFds [2]int
	if err := unix.Pipe(pipeFds[:]); err != nil {
		logger.Fatal("otbridge: self-pipe", "err", err)
	}
	readFd, writeFd := pipeFds[0], pipeFds[1]
	defer unix.Close(readFd)
	defer unix.Close(writeFd)

	plat.Barrier().SetNotify(func() {
		unix.Write(writeFd, []byte{0})
	})

	const alarmTimeoutMs = 100
	pollFds := []unix.PollFd{{Fd: int32(readFd), Events: unix.POLLIN}}
	drained := make([]byte, 64)

	for {
		pollFds[0].Revents = 0
		n, err := unix.Poll(pollFds, alarmTimeoutMs)
		if err != nil && err != unix.EINTR {
			logger.Fatal("otbridge: poll", "err", err)
		}
		if n > 0 && pollFds[0].Revents&unix.POLLIN != 0 {
			unix.Read(readFd, drained)
		}
		for plat.Barrier().Drain() {
		}
	}
}
