package coproc

import "sync"

// FakeClient is an in-memory Client used by radio package tests: a
// scriptable stand-in for the real transport that lets tests drive
// indications and confirms deterministically without a serial port.
type FakeClient struct {
	mu sync.Mutex

	attrs map[Attribute]map[uint8]any
	cb    Callbacks

	StartCalls []StartCall
	ResetCalls []bool
	ScanCalls  []ScanCall

	// DataRequests records every submitted MCPS-DATA.request for assertions.
	DataRequests []DataRequestParams
	// NextDataStatus, if set, is returned by the next McpsDataRequest call.
	NextDataStatus Status
}

type StartCall struct {
	PanID                          uint16
	LogicalChannel                 uint8
	BeaconOrder, SuperframeOrder   uint8
	PanCoordinator                 bool
}

type ScanCall struct {
	ScanType    ScanResultType
	ChannelMask uint32
	Duration    uint8
}

func NewFakeClient() *FakeClient {
	return &FakeClient{attrs: make(map[Attribute]map[uint8]any)}
}

func (f *FakeClient) SetCallbacks(cb Callbacks) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) MlmeSet(attr Attribute, index uint8, value any) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attrs[attr] == nil {
		f.attrs[attr] = make(map[uint8]any)
	}
	f.attrs[attr][index] = value
	return StatusSuccess
}

func (f *FakeClient) MlmeGet(attr Attribute, index uint8) (any, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attrs[attr] == nil {
		return nil, StatusInvalidParameter
	}
	v, ok := f.attrs[attr][index]
	if !ok {
		return nil, StatusInvalidParameter
	}
	return v, StatusSuccess
}

func (f *FakeClient) MlmeReset(setDefaultPIB bool) Status {
	f.mu.Lock()
	f.ResetCalls = append(f.ResetCalls, setDefaultPIB)
	f.mu.Unlock()
	return StatusSuccess
}

func (f *FakeClient) MlmeStart(panID uint16, logicalChannel uint8, beaconOrder, superframeOrder uint8, panCoordinator bool) Status {
	f.mu.Lock()
	f.StartCalls = append(f.StartCalls, StartCall{panID, logicalChannel, beaconOrder, superframeOrder, panCoordinator})
	f.mu.Unlock()
	return StatusSuccess
}

func (f *FakeClient) MlmeScan(scanType ScanResultType, channelMask uint32, scanDuration uint8) Status {
	f.mu.Lock()
	f.ScanCalls = append(f.ScanCalls, ScanCall{scanType, channelMask, scanDuration})
	f.mu.Unlock()
	return StatusSuccess
}

func (f *FakeClient) MlmePoll(coordAddr Address) Status { return StatusSuccess }

func (f *FakeClient) HwmeSet(attr Attribute, value any) Status {
	return f.MlmeSet(attr, 0, value)
}

func (f *FakeClient) HwmeGet(attr Attribute) (any, Status) {
	return f.MlmeGet(attr, 0)
}

func (f *FakeClient) McpsDataRequest(req DataRequestParams) Status {
	f.mu.Lock()
	f.DataRequests = append(f.DataRequests, req)
	status := f.NextDataStatus
	f.NextDataStatus = 0
	f.mu.Unlock()
	if status == 0 {
		return StatusSuccess
	}
	return status
}

// DeliverDataConfirm lets a test simulate the co-processor's asynchronous
// confirm for a submitted handle.
func (f *FakeClient) DeliverDataConfirm(handle uint8, status Status) {
	f.mu.Lock()
	cb := f.cb.DataConfirm
	f.mu.Unlock()
	if cb != nil {
		cb(DataConfirmParams{MsduHandle: handle, Status: status})
	}
}

// DeliverDataIndication lets a test simulate an inbound frame arriving on the
// worker thread.
func (f *FakeClient) DeliverDataIndication(p DataIndicationParams) {
	f.mu.Lock()
	cb := f.cb.DataIndication
	f.mu.Unlock()
	if cb != nil {
		cb(p)
	}
}

// DeliverBeaconNotify lets a test simulate an MLME-BEACON-NOTIFY.indication.
func (f *FakeClient) DeliverBeaconNotify(p BeaconNotifyIndicationParams) {
	f.mu.Lock()
	cb := f.cb.BeaconNotifyIndication
	f.mu.Unlock()
	if cb != nil {
		cb(p)
	}
}

// DeliverScanConfirm lets a test simulate an MLME-SCAN.confirm.
func (f *FakeClient) DeliverScanConfirm(p ScanConfirmParams) {
	f.mu.Lock()
	cb := f.cb.ScanConfirm
	f.mu.Unlock()
	if cb != nil {
		cb(p)
	}
}

// DeviceTableEntries returns every DeviceDescriptor staged so far, in index order,
// for assertions in the synchronizer tests.
func (f *FakeClient) DeviceTableEntries() []DeviceDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.attrs[AttrDeviceTable]
	out := make([]DeviceDescriptor, 0, len(m))
	for i := uint8(0); i < uint8(len(m)); i++ {
		if d, ok := m[i].(DeviceDescriptor); ok {
			out = append(out, d)
		}
	}
	return out
}
