//go:build windows

package platform

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// mibIfRow2 mirrors the fields of MIB_IF_ROW2 (iptypes.h) this package
// reads; unused fields are left as padding since Go never writes this
// struct, only overlays it onto memory iphlpapi allocated.
type mibIfRow2 struct {
	_           [8]byte // InterfaceLuid
	_           uint32  // InterfaceIndex
	_           [16]byte // InterfaceGuid
	Alias       [257]uint16
	Description [257]uint16
	_           [152]byte // PhysicalAddressLength..ReceiveLinkSpeed, preceding the counters
	InOctets    uint64
	_           [56]byte // InUcastPkts..InBroadcastOctets
	OutOctets   uint64
	_           [64]byte // OutUcastPkts..OutQLen, so the row is sizeof(MIB_IF_ROW2) = 1352
}

type mibIfTable2 struct {
	NumEntries uint32
	_          uint32 // alignment padding
	Table      [1]mibIfRow2
}

func (t *mibIfTable2) rows() []mibIfRow2 {
	if t == nil || t.NumEntries == 0 {
		return nil
	}
	return unsafe.Slice(&t.Table[0], int(t.NumEntries))
}

var (
	iphlpapi          = windows.NewLazySystemDLL("iphlpapi.dll")
	procGetIfTable2   = iphlpapi.NewProc("GetIfTable2")
	procFreeMibTable  = iphlpapi.NewProc("FreeMibTable")
)

func getIfTable2(table **mibIfTable2) error {
	r, _, _ := procGetIfTable2.Call(uintptr(unsafe.Pointer(table)))
	if r != 0 {
		return windows.Errno(r)
	}
	return nil
}

func freeMibTable(p unsafe.Pointer) {
	procFreeMibTable.Call(uintptr(p))
}
