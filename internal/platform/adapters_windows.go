//go:build windows

package platform

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// adapterCounters is one network adapter's friendly identity plus its
// cumulative byte counters, as read from the MIB-II interface table.
type adapterCounters struct {
	Name        string
	Description string
	BytesRecv   uint64
	BytesSent   uint64
}

// listAdapters enumerates live network interfaces via GetIfTable2, pairing
// each MIB_IF_ROW2's byte counters with its adapter alias/description.
func listAdapters() ([]adapterCounters, error) {
	var table *mibIfTable2
	if err := getIfTable2(&table); err != nil {
		return nil, err
	}
	defer freeMibTable(unsafe.Pointer(table))

	rows := table.rows()
	out := make([]adapterCounters, 0, len(rows))
	for _, row := range rows {
		out = append(out, adapterCounters{
			Name:        windows.UTF16ToString(row.Alias[:]),
			Description: windows.UTF16ToString(row.Description[:]),
			BytesRecv:   row.InOctets,
			BytesSent:   row.OutOctets,
		})
	}
	return out, nil
}
