package radio

import (
	"math"

	"github.com/charmbracelet/log"

	"github.com/Cascoda/ca821x-posix-thread/internal/coproc"
)

const allChannelsMask uint32 = 0xFFFF << 11 // channels 11..26

// beaconProtocolID and beaconProtocolVersion are the values a beacon payload
// must carry for parseBeaconPayload to accept it, per spec.md §4.7.
const (
	beaconProtocolID      = 3
	beaconProtocolVersion = 1
)

// scanDriver owns the single in-flight scan and translates between the
// stack's millisecond durations and the co-processor's exponent encoding
// (component G, spec.md §4.7).
type scanDriver struct {
	client  coproc.Client
	logger  *log.Logger
	restore func(channel uint8)

	active          bool
	scanType        coproc.ScanResultType
	remainingMask   uint32
	previousChannel uint8

	activeCallback func(*BeaconResult)
	energyCallback func(*EnergyResult)
}

func newScanDriver(client coproc.Client, logger *log.Logger, restore func(channel uint8)) *scanDriver {
	return &scanDriver{client: client, logger: logger, restore: restore}
}

// durationExponent implements clamp(log2(ms/15), 0, 14) with the <50ms
// special case from spec.md §4.7.
func durationExponent(ms uint32, scanType coproc.ScanResultType) uint8 {
	if ms < 50 {
		if scanType == coproc.ScanTypeActive {
			return 5
		}
		return 6
	}
	e := math.Log2(float64(ms) / 15.0)
	if e < 0 {
		e = 0
	}
	if e > 14 {
		e = 14
	}
	return uint8(e)
}

func normalizeChannelMask(mask uint32) uint32 {
	if mask == 0 {
		return allChannelsMask
	}
	return mask & allChannelsMask
}

// startActive begins an active scan, delivering one BeaconResult per
// notification and a final nil result when the co-processor confirms.
func (d *scanDriver) startActive(currentChannel uint8, channelMask uint32, durationMs uint32, cb func(*BeaconResult)) error {
	if d.active {
		return ErrBusy
	}
	mask := normalizeChannelMask(channelMask)
	d.active = true
	d.scanType = coproc.ScanTypeActive
	d.previousChannel = currentChannel
	d.activeCallback = cb

	exponent := durationExponent(durationMs, coproc.ScanTypeActive)
	if status := d.client.MlmeScan(coproc.ScanTypeActive, mask, exponent); status != coproc.StatusSuccess {
		d.active = false
		return StatusToError(mapScanStatus(status))
	}
	return nil
}

// startEnergy begins an energy-detect scan, delivering one EnergyResult per
// channel in the mask once the co-processor's scan confirms.
func (d *scanDriver) startEnergy(currentChannel uint8, channelMask uint32, durationMs uint32, cb func(*EnergyResult)) error {
	if d.active {
		return ErrBusy
	}
	mask := normalizeChannelMask(channelMask)
	d.active = true
	d.scanType = coproc.ScanTypeEnergyDetect
	d.remainingMask = mask
	d.previousChannel = currentChannel
	d.energyCallback = cb

	exponent := durationExponent(durationMs, coproc.ScanTypeEnergyDetect)
	if status := d.client.MlmeScan(coproc.ScanTypeEnergyDetect, mask, exponent); status != coproc.StatusSuccess {
		d.active = false
		return StatusToError(mapScanStatus(status))
	}
	return nil
}

// onBeaconNotify handles one MLME-BEACON-NOTIFY.indication during an active
// scan, parsing a protocol-id-3/version-1 payload and delivering a result.
func (d *scanDriver) onBeaconNotify(p coproc.BeaconNotifyIndicationParams) {
	if !d.active || d.scanType != coproc.ScanTypeActive {
		return
	}
	result, ok := parseBeaconPayload(p)
	if !ok {
		d.logger.Warn("scan: dropping malformed beacon payload", "bsn", p.BSN)
		return
	}
	if d.activeCallback != nil {
		d.activeCallback(&result)
	}
}

func parseBeaconPayload(p coproc.BeaconNotifyIndicationParams) (BeaconResult, bool) {
	// layout: [0]=protocol id, [1]=version, [2..9]=extended pan id,
	// [10..]=network name (up to 16 bytes, NUL-padded)
	if len(p.SDU) < 10 {
		return BeaconResult{}, false
	}
	if p.SDU[0] != beaconProtocolID || p.SDU[1] != beaconProtocolVersion {
		return BeaconResult{}, false
	}
	var result BeaconResult
	result.Channel = p.PanDescriptor.Channel
	result.PanID = p.PanDescriptor.CoordAddr.PanID
	result.CoordExt = p.PanDescriptor.CoordAddr.Ext
	result.LQI = p.PanDescriptor.LinkQuality
	copy(result.ExtPanID[:], p.SDU[2:10])
	name := p.SDU[10:]
	if n := indexOfZero(name); n >= 0 {
		name = name[:n]
	}
	result.NetworkName = string(name)
	return result, true
}

func indexOfZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

// onScanConfirm completes the in-flight scan: for energy scans it pairs each
// reported RSSI with the lowest still-set channel bit, clearing it as
// consumed; either scan type ends with a null callback and restores the
// previously selected channel.
func (d *scanDriver) onScanConfirm(p coproc.ScanConfirmParams) {
	if !d.active {
		return
	}

	if p.ScanType == coproc.ScanTypeEnergyDetect {
		for _, rssi := range p.EnergyDetectList {
			ch := lowestSetChannel(d.remainingMask)
			if ch == 0 {
				break
			}
			d.remainingMask &^= 1 << ch
			if d.energyCallback != nil {
				d.energyCallback(&EnergyResult{Channel: ch, RSSI: rssi})
			}
		}
		if d.energyCallback != nil {
			d.energyCallback(nil)
		}
	} else {
		if d.activeCallback != nil {
			d.activeCallback(nil)
		}
	}

	if d.restore != nil {
		d.restore(d.previousChannel)
	}
	d.active = false
	d.activeCallback = nil
	d.energyCallback = nil
}

func lowestSetChannel(mask uint32) uint8 {
	for ch := uint8(11); ch <= 26; ch++ {
		if mask&(1<<ch) != 0 {
			return ch
		}
	}
	return 0
}

// mapScanStatus maps a co-processor command-completion status onto the
// public taxonomy of spec.md §7. Transaction-expired and transaction-overflow
// fold into no-ack, "for pragmatic retry" per that section.
func mapScanStatus(s coproc.Status) Status {
	switch s {
	case coproc.StatusSuccess:
		return StatusOK
	case coproc.StatusChannelAccessFailure:
		return StatusChannelAccessFailure
	case coproc.StatusNoAck, coproc.StatusTransactionExpired, coproc.StatusTransactionOverflow:
		return StatusNoAck
	default:
		return StatusFailed
	}
}
