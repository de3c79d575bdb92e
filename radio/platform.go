package radio

import (
	"crypto/rand"
	"io"

	"github.com/charmbracelet/log"

	"github.com/Cascoda/ca821x-posix-thread/internal/barrier"
	"github.com/Cascoda/ca821x-posix-thread/internal/coproc"
	"github.com/Cascoda/ca821x-posix-thread/internal/rxslot"
	"github.com/Cascoda/ca821x-posix-thread/thread"
)

// Initialization defaults per spec.md §6.
const (
	defaultMaxFrameRetries           = 7
	defaultMaxCSMABackoffs           = 5
	defaultMaxBE                     = 4
	defaultLQIMode                   = 0 // energy-detect
	defaultIndirectPersistenceSecond = 90
)

var defaultKeySourcePIB = [8]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF}

// rxResult is what the worker hands the main loop through the Receive Slot:
// either a decoded Packet or a receive-path error to report upward.
type rxResult struct {
	pkt *Packet
	err error
}

// Config bundles the collaborators and boot-time parameters Radio needs.
type Config struct {
	Client     coproc.Client
	Stack      thread.Stack
	Logger     *log.Logger
	EUI64Store EUI64Store
	// RandomSource is the "random source" collaborator spec.md §7 lists as an
	// interfaces-only external dependency. Defaults to crypto/rand.Reader
	// when nil; only the first-boot EUI-64 generation path reads from it.
	RandomSource io.Reader
	Callbacks    Callbacks
}

// Radio is the Public Platform API (component I): the stable façade the
// stack calls into. It owns the barrier, receive slot, in-transit table,
// codec, state machine, synchronizer, scan driver, and activity cache, and
// is the single instance spec.md §9 says should be "owned by the init
// function and passed by borrow," not a package-level singleton.
type Radio struct {
	client coproc.Client
	stack  thread.Stack
	logger *log.Logger
	cb     Callbacks

	barrier   *barrier.Barrier
	rx        *rxslot.Slot[rxResult]
	intransit *inTransitTable
	codec     Codec
	state     *stateMachine
	sync      *synchronizer
	scan      *scanDriver
	activity  *activityCache

	eui64Store EUI64Store
	random     io.Reader
	eui64      uint64

	channel        uint8
	rxOnWhenIdle   bool
	promiscuous    bool
	networkName    string
	extendedPanID  [8]byte
	shortAddress   uint16
	extendedAddr   uint64
	panID          uint16

	txPending *Packet
}

// New constructs a Radio around the given collaborators. It does not touch
// the co-processor; call Init to perform the reset and PIB defaulting.
func New(cfg Config) *Radio {
	r := &Radio{
		client:     cfg.Client,
		stack:      cfg.Stack,
		logger:     cfg.Logger,
		cb:         cfg.Callbacks,
		barrier:    barrier.New(),
		rx:         rxslot.New[rxResult](),
		intransit:  newInTransitTable(),
		state:      newStateMachine(),
		eui64Store: cfg.EUI64Store,
		random:     cfg.RandomSource,
		channel:    11,
	}
	if r.random == nil {
		r.random = rand.Reader
	}
	r.sync = newSynchronizer(cfg.Stack, cfg.Client, cfg.Logger)
	r.scan = newScanDriver(cfg.Client, cfg.Logger, func(ch uint8) { r.channel = ch })
	r.activity = newActivityCache(cfg.Client)

	r.client.SetCallbacks(coproc.Callbacks{
		DataIndication:         r.onDataIndication,
		DataConfirm:            r.onDataConfirm,
		BeaconNotifyIndication: r.onBeaconNotify,
		ScanConfirm:            r.onScanConfirm,
		Unhandled:              r.onUnhandled,
		Fatal:                  r.onFatal,
	})
	return r
}

// Barrier exposes the cross-thread rendezvous so a caller's main loop can
// install the self-pipe notify hook and call Drain once per iteration.
func (r *Radio) Barrier() *barrier.Barrier { return r.barrier }

// Init performs the MAC reset and PIB defaulting described in spec.md §6,
// then loads or generates the persisted EUI-64 (spec.md §9's open question).
func (r *Radio) Init() error {
	if status := r.client.MlmeReset(true); status != coproc.StatusSuccess {
		return StatusToError(mapScanStatus(status))
	}

	defaults := []struct {
		attr  coproc.Attribute
		value any
	}{
		{coproc.AttrMaxFrameRetries, uint8(defaultMaxFrameRetries)},
		{coproc.AttrMaxCSMABackoffs, uint8(defaultMaxCSMABackoffs)},
		{coproc.AttrMaxBE, uint8(defaultMaxBE)},
		{coproc.AttrSecurityEnabled, true},
		{coproc.AttrDefaultKeySource, defaultKeySourcePIB[:]},
		{coproc.AttrLQIMode, uint8(defaultLQIMode)},
		{coproc.AttrIndirectPersistenceTime, uint16(defaultIndirectPersistenceSecond)},
	}
	for _, d := range defaults {
		if status := r.client.MlmeSet(d.attr, 0, d.value); status != coproc.StatusSuccess {
			r.logger.Warn("radio: PIB default write failed", "attr", d.attr, "status", status)
		}
	}

	return r.loadOrGenerateEUI64()
}

func (r *Radio) loadOrGenerateEUI64() error {
	if r.eui64Store == nil {
		r.eui64Store = &MemEUI64Store{}
	}
	if v, ok, err := r.eui64Store.Load(); err != nil {
		return err
	} else if ok {
		r.eui64 = v
		return nil
	}
	v, err := generateEUI64(r.random)
	if err != nil {
		return err
	}
	if err := r.eui64Store.Save(v); err != nil {
		return err
	}
	r.eui64 = v
	return nil
}

// Enable performs Disabled -> Sleep.
func (r *Radio) Enable() Status {
	if err := r.state.enable(); err != nil {
		return StatusBusy
	}
	return StatusOK
}

// Disable performs {Sleep,Receive} -> Disabled, and forgets in-transit
// handles per spec.md §5.
func (r *Radio) Disable() Status {
	if err := r.state.disable(); err != nil {
		return StatusBusy
	}
	r.intransit.reset()
	return StatusOK
}

// Sleep is a deliberate no-op per spec.md §9's open question: rx-on-when-idle
// already subsumes low-power entry at this layer; this only tracks the state
// transition, with no hardware low-power command inferred or issued here.
// SetRxOnWhenIdle is the actual knob for that behavior.
func (r *Radio) Sleep() Status {
	if err := r.state.sleep(); err != nil {
		return StatusBusy
	}
	return StatusOK
}

// SetRxOnWhenIdle toggles the cached flag written to the co-processor.
func (r *Radio) SetRxOnWhenIdle(on bool) Status {
	r.rxOnWhenIdle = on
	status := r.client.MlmeSet(coproc.AttrRxOnWhenIdle, 0, on)
	return mapScanStatus(status)
}

// Receive moves to Receive on the given channel (Sleep->Receive, or
// Receive->Receive for a channel change).
func (r *Radio) Receive(channel uint8) Status {
	if err := r.state.receive(); err != nil {
		return StatusBusy
	}
	r.channel = channel
	return StatusOK
}

// GetTransmitBuffer returns the packet the caller should fill in before
// calling Transmit.
func (r *Radio) GetTransmitBuffer() *Packet {
	r.txPending = &Packet{Channel: r.channel}
	return r.txPending
}

// Transmit submits the packet last returned by GetTransmitBuffer, routing
// the eventual confirm back to context via TransmitDone.
func (r *Radio) Transmit(context any) Status {
	if err := r.state.transmit(); err != nil {
		return StatusBusy
	}
	pkt := r.txPending
	if pkt == nil {
		r.state.transmitDone()
		return StatusAbort
	}

	req, err := r.codec.Encode(pkt)
	if err != nil {
		r.state.transmitDone()
		return StatusAbort
	}

	handle, err := r.intransit.allocateHandle(pkt.Clone(), context)
	if err != nil {
		r.state.transmitDone()
		return StatusBusy
	}
	req.MsduHandle = handle

	status := r.client.McpsDataRequest(req)
	if status != coproc.StatusSuccess {
		r.intransit.take(handle)
		r.state.transmitDone()
		return mapScanStatus(status)
	}
	return StatusOK
}

// SetPanID, SetShortAddress, SetExtendedAddress, SetNetworkName, and
// SetExtendedPanID cache and push address/identity PIB attributes.
func (r *Radio) SetPanID(id uint16) Status {
	r.panID = id
	return mapScanStatus(r.client.MlmeSet(coproc.AttrPanID, 0, id))
}

func (r *Radio) SetShortAddress(addr uint16) Status {
	r.shortAddress = addr
	return mapScanStatus(r.client.MlmeSet(coproc.AttrShortAddress, 0, addr))
}

func (r *Radio) SetExtendedAddress(addr uint64) Status {
	r.extendedAddr = addr
	return mapScanStatus(r.client.MlmeSet(coproc.AttrExtendedAddress, 0, reverseBytes(addr)))
}

// SetNetworkName and SetExtendedPanID are cached locally; the co-processor
// collaborator's PIB has no attribute for them (they only matter for beacon
// construction, which is the co-processor's own responsibility as PAN
// coordinator, not this module's).
func (r *Radio) SetNetworkName(name string) Status {
	r.networkName = name
	return StatusOK
}

func (r *Radio) SetExtendedPanID(id [8]byte) Status {
	r.extendedPanID = id
	return StatusOK
}

// GetIEEEEUI64 returns the persisted extended address.
func (r *Radio) GetIEEEEUI64() uint64 { return r.eui64 }

func (r *Radio) GetPromiscuous() bool { return r.promiscuous }

func (r *Radio) SetPromiscuous(on bool) Status {
	r.promiscuous = on
	return mapScanStatus(r.client.MlmeSet(coproc.AttrPromiscuousMode, 0, on))
}

// GetNoiseFloor reads the HWME noise-floor attribute.
func (r *Radio) GetNoiseFloor() (int8, Status) {
	v, status := r.client.HwmeGet(coproc.AttrNoiseFloor)
	if status != coproc.StatusSuccess {
		return 0, mapScanStatus(status)
	}
	floor, _ := v.(int8)
	return floor, StatusOK
}

// GetCaps advertises the platform's capability set.
func (r *Radio) GetCaps() Caps { return CapAckTimeout }

// ActiveScan and EnergyScan drive the scan driver (component G).
func (r *Radio) ActiveScan(channelMask uint32, durationMs uint32) Status {
	err := r.scan.startActive(r.channel, channelMask, durationMs, r.cb.ActiveScanResult)
	return StatusToErrorInverse(err)
}

func (r *Radio) EnergyScan(channelMask uint32, durationMs uint32) Status {
	err := r.scan.startEnergy(r.channel, channelMask, durationMs, r.cb.EnergyScanResult)
	return StatusToErrorInverse(err)
}

// IsDeviceActive answers the activity cache query (component H).
func (r *Radio) IsDeviceActive(extAddr uint64) bool {
	return r.activity.isActive(extAddr)
}

// StateChange is the hook the stack calls on role/neighbor/key-sequence
// events, driving the synchronizer (component F).
func (r *Radio) StateChange(flags thread.StateChangeFlags) {
	r.sync.onStateChange(flags)
}

// --- worker-thread callbacks, invoked by the coproc.Client under its own
// goroutine; each crosses to the main loop via the barrier before touching
// any stack-visible state. ---

func (r *Radio) onDataIndication(ind coproc.DataIndicationParams) {
	pkt, err := r.codec.Decode(ind, r.channel)
	if err != nil {
		r.logger.Warn("radio: dropping malformed data indication", "err", err)
		return
	}
	if !r.rx.Put(rxResult{pkt: pkt}) {
		return // slot closed, shutting down
	}
	r.barrier.Invoke(func() {
		res, full := r.rx.Take()
		if !full {
			return
		}
		if r.cb.ReceiveDone != nil {
			r.cb.ReceiveDone(res.pkt, res.err)
		}
		r.rx.Signal()
	})
}

func (r *Radio) onDataConfirm(conf coproc.DataConfirmParams) {
	_, context, err := r.intransit.take(conf.MsduHandle)
	r.barrier.Invoke(func() {
		if err != nil {
			r.logger.Warn("radio: confirm for unknown handle", "handle", conf.MsduHandle)
			return
		}
		if serr := r.state.transmitDone(); serr != nil {
			r.logger.Warn("radio: transmit confirm without matching state", "err", serr)
		}
		ackReceived := conf.Status == coproc.StatusSuccess
		if r.cb.TransmitDone != nil {
			r.cb.TransmitDone(context, ackReceived, StatusToError(mapScanStatus(conf.Status)))
		}
	})
}

func (r *Radio) onBeaconNotify(p coproc.BeaconNotifyIndicationParams) {
	r.barrier.Invoke(func() { r.scan.onBeaconNotify(p) })
}

func (r *Radio) onScanConfirm(p coproc.ScanConfirmParams) {
	r.barrier.Invoke(func() { r.scan.onScanConfirm(p) })
}

func (r *Radio) onUnhandled(primitive uint8, payload []byte) {
	r.logger.Warn("radio: unhandled co-processor primitive", "primitive", primitive, "len", len(payload))
}

func (r *Radio) onFatal(err error) {
	r.logger.Fatal("radio: fatal transport error", "err", err)
}

// StatusToErrorInverse is StatusToError's mirror: given the scan driver's
// error it returns the Status the public API reports. nil maps to StatusOK.
func StatusToErrorInverse(err error) Status {
	switch err {
	case nil:
		return StatusOK
	case ErrBusy:
		return StatusBusy
	case ErrAbort:
		return StatusAbort
	case ErrChannelAccessFailure:
		return StatusChannelAccessFailure
	case ErrNoAck:
		return StatusNoAck
	default:
		return StatusFailed
	}
}
