package netstats

import (
	"testing"
	"time"

	"github.com/candyconnect/candyconnectd/internal/platform"
)

type fakeAdapter struct {
	platform.Adapter
	counters *platform.TunnelCounters
	err      error
}

func (f *fakeAdapter) ReadTunnelCounters() (*platform.TunnelCounters, error) {
	return f.counters, f.err
}

func TestSampleFirstCallYieldsZeroSpeed(t *testing.T) {
	tr := &Tracker{}
	got, err := tr.Sample(&fakeAdapter{counters: &platform.TunnelCounters{BytesRecv: 1000, BytesSent: 500}})
	if err != nil {
		t.Fatal(err)
	}
	if got.DownloadSpeed != 0 || got.UploadSpeed != 0 {
		t.Errorf("first sample should have zero speed, got %+v", got)
	}
	if got.TotalDownload != 0 || got.TotalUpload != 0 {
		t.Errorf("first sample should have zero totals, got %+v", got)
	}
}

func TestSampleAccumulatesDeltaAndSpeed(t *testing.T) {
	tr := &Tracker{}
	adapter := &fakeAdapter{counters: &platform.TunnelCounters{BytesRecv: 1000, BytesSent: 500}}
	if _, err := tr.Sample(adapter); err != nil {
		t.Fatal(err)
	}

	tr.prevAt = time.Now().Add(-1 * time.Second) // force elapsed >= 10ms deterministically
	adapter.counters = &platform.TunnelCounters{BytesRecv: 2024, BytesSent: 1524}

	got, err := tr.Sample(adapter)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalDownload != 1024 || got.TotalUpload != 1024 {
		t.Errorf("totals = %+v, want {1024 1024}", got)
	}
	if got.DownloadSpeed <= 0 || got.UploadSpeed <= 0 {
		t.Errorf("expected positive speeds, got %+v", got)
	}
}

func TestSampleSaturatesOnCounterReset(t *testing.T) {
	tr := &Tracker{}
	adapter := &fakeAdapter{counters: &platform.TunnelCounters{BytesRecv: 5000, BytesSent: 5000}}
	if _, err := tr.Sample(adapter); err != nil {
		t.Fatal(err)
	}

	tr.prevAt = time.Now().Add(-1 * time.Second)
	adapter.counters = &platform.TunnelCounters{BytesRecv: 10, BytesSent: 10} // adapter reset, counters went backwards

	got, err := tr.Sample(adapter)
	if err != nil {
		t.Fatal(err)
	}
	if got.DownloadSpeed != 0 || got.UploadSpeed != 0 {
		t.Errorf("expected saturating-subtract to yield zero delta, got %+v", got)
	}
	if got.TotalDownload != 0 || got.TotalUpload != 0 {
		t.Errorf("totals should not have advanced, got %+v", got)
	}
}

func TestResetClearsSnapshotAndTotals(t *testing.T) {
	tr := &Tracker{}
	adapter := &fakeAdapter{counters: &platform.TunnelCounters{BytesRecv: 1000, BytesSent: 1000}}
	tr.Sample(adapter)
	tr.prevAt = time.Now().Add(-1 * time.Second)
	adapter.counters = &platform.TunnelCounters{BytesRecv: 2000, BytesSent: 2000}
	tr.Sample(adapter)

	tr.Reset()

	got, err := tr.Sample(adapter)
	if err != nil {
		t.Fatal(err)
	}
	if got.DownloadSpeed != 0 || got.TotalDownload != 0 {
		t.Errorf("expected fresh baseline after Reset, got %+v", got)
	}
}

func TestNilCountersTreatedAsZero(t *testing.T) {
	tr := &Tracker{}
	got, err := tr.Sample(&fakeAdapter{counters: nil})
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalDownload != 0 {
		t.Errorf("nil counters should behave as zero, got %+v", got)
	}
}
