// Package coproc defines the downward-facing collaborator this module consumes:
// the IEEE 802.15.4 hard-MAC co-processor's MLME/MCPS/HWME service access points.
// Nothing in this package re-implements the co-processor; it is the parameter-set
// and callback surface the radio package builds requests against and receives
// indications from.
package coproc

// AddressMode mirrors the 2-bit addressing-mode field of the 802.15.4 frame control word.
type AddressMode uint8

const (
	AddrModeNone     AddressMode = 0x00
	AddrModeReserved AddressMode = 0x01
	AddrModeShort    AddressMode = 0x02
	AddrModeExtended AddressMode = 0x03
)

// Address is a PAN-scoped 802.15.4 address in whichever mode applies.
type Address struct {
	Mode  AddressMode
	PanID uint16
	Short uint16
	Ext   uint64
}

// SecurityLevel is the 3-bit security-level subfield of the auxiliary security header.
type SecurityLevel uint8

// KeyIdMode is the 2-bit key-identifier-mode subfield.
type KeyIdMode uint8

const (
	KeyIdModeImplicit   KeyIdMode = 0
	KeyIdModeIndex      KeyIdMode = 1
	KeyIdModeShortIndex KeyIdMode = 2
	KeyIdModeLongIndex  KeyIdMode = 3
)

// SecuritySpec carries the fields of an auxiliary security header, decoded or
// to-be-encoded. KeySource holds either 0, 4 or 8 significant bytes depending on KeyIdMode.
type SecuritySpec struct {
	Level     SecurityLevel
	KeyIdMode KeyIdMode
	KeySource [8]byte
	KeyIndex  uint8
}

// MICLength returns the MIC length in bytes dictated by the security level, per
// the 2<<(level mod 4) mapping with a 2->0 fixup (spec.md §4.1).
func (s SecuritySpec) MICLength() int {
	if s.Level == 0 {
		return 0
	}
	n := 2 << (uint(s.Level) % 4)
	if n == 2 {
		n = 0
	}
	return n
}

// TxOptions bits understood by MCPS-DATA.request.
const (
	TxOptAckRequested uint8 = 1 << 0
	TxOptGTS          uint8 = 1 << 1
	TxOptIndirect     uint8 = 1 << 2
)

// DataRequestParams is the host-built MCPS-DATA.request parameter set.
type DataRequestParams struct {
	SrcAddrMode AddressMode
	DstAddr     Address
	MsduLength  uint8
	Msdu        []byte
	MsduHandle  uint8
	TxOptions   uint8
	Security    SecuritySpec
}

// DataConfirmParams is the asynchronous MCPS-DATA.confirm.
type DataConfirmParams struct {
	MsduHandle uint8
	Status     Status
}

// DataIndicationParams is the asynchronous MCPS-DATA.indication.
type DataIndicationParams struct {
	SrcAddrMode     AddressMode
	SrcPanID        uint16
	SrcAddr         Address
	DstAddrMode     AddressMode
	DstPanID        uint16
	DstAddr         Address
	MsduLength      uint8
	Msdu            []byte
	MpduLinkQuality uint8
	DSN             uint8 // co-processor-assigned sequence number of the received MPDU
	Security        SecuritySpec
}

// BeaconNotifyIndicationParams is the asynchronous MLME-BEACON-NOTIFY.indication.
type BeaconNotifyIndicationParams struct {
	BSN     uint8
	PanDescriptor PanDescriptor
	SDU     []byte
}

// PanDescriptor accompanies a beacon notification.
type PanDescriptor struct {
	CoordAddr Address
	Channel   uint8
	LinkQuality uint8
}

// ScanResultType distinguishes the two scan flavors this module drives.
type ScanResultType uint8

const (
	ScanTypeEnergyDetect ScanResultType = 0
	ScanTypeActive       ScanResultType = 2
)

// ScanConfirmParams is the asynchronous MLME-SCAN.confirm.
type ScanConfirmParams struct {
	Status        Status
	ScanType      ScanResultType
	UnscannedChannels uint32
	ResultListSize byte
	EnergyDetectList []int8
}

// DeviceDescriptor is one row of the co-processor's device table.
type DeviceDescriptor struct {
	PanID         uint16
	ShortAddr     uint16
	ExtAddr       uint64 // little-endian byte order as expected on the wire
	FrameCounter  uint32
	Exempt        bool
}

// KeyIdLookupDescriptor identifies a key by lookup data + size.
type KeyIdLookupDescriptor struct {
	LookupData     [9]byte
	LookupDataSize uint8 // 0 => 5 significant bytes, 1 => 9
}

// KeyUsageDescriptor binds a key to a frame type / command id it may protect.
type KeyUsageDescriptor struct {
	FrameType  uint8
	CommandId  uint8
}

// KeyDeviceDescriptor binds a key-table entry to a device-table row index.
type KeyDeviceDescriptor struct {
	DeviceDescriptorHandle uint8
	UniqueDevice           bool
	Blacklisted            bool
}

// KeyDescriptor is one row of the co-processor's key table.
type KeyDescriptor struct {
	KeyIdLookupList []KeyIdLookupDescriptor
	KeyUsageList    []KeyUsageDescriptor
	KeyDeviceList   []KeyDeviceDescriptor
	Key             [16]byte
}

// Status is the generic co-processor command-completion status.
type Status uint8

const (
	StatusSuccess               Status = 0x00
	StatusChannelAccessFailure  Status = 0xE1
	StatusNoAck                 Status = 0xE9
	StatusTransactionExpired    Status = 0xF0
	StatusTransactionOverflow   Status = 0xF1
	StatusInvalidParameter      Status = 0xE8
	StatusDenied                Status = 0xE2
)

// Attribute identifies an MLME/HWME attribute addressed by Set/Get.
type Attribute uint16

const (
	AttrPanID                 Attribute = iota
	AttrShortAddress
	AttrExtendedAddress
	AttrRxOnWhenIdle
	AttrPromiscuousMode
	AttrDeviceTable
	AttrDeviceTableEntries
	AttrKeyTable
	AttrKeyTableEntries
	AttrMaxFrameRetries
	AttrMaxCSMABackoffs
	AttrMaxBE
	AttrSecurityEnabled
	AttrDefaultKeySource
	AttrLQIMode
	AttrIndirectPersistenceTime
	AttrNoiseFloor
	AttrEUI64
)
