package pcap

import (
	"NetSimScope/internal/model"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

func writeTestPcap(t *testing.T, path string, stamps []time.Duration) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create pcap file: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("Failed to write pcap header: %v", err)
	}

	for _, ts := range stamps {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(10, 1, 1, 1),
			DstIP:    net.IPv4(10, 1, 2, 2),
		}
		udp := &layers.UDP{SrcPort: 49153, DstPort: 5000}
		udp.SetNetworkLayerForChecksum(ip)

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		payload := gopacket.Payload(make([]byte, 72))
		if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, payload); err != nil {
			t.Fatalf("Failed to serialize packet: %v", err)
		}

		data := buf.Bytes()
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(0, int64(ts)),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("Failed to write packet: %v", err)
		}
	}
}

func TestReader_ReadDeliveries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pcap")
	writeTestPcap(t, path, []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond})

	records := []model.FlowRecord{{
		FlowID:      1,
		SrcEndpoint: "10.1.1.1:49153",
		DstEndpoint: "10.1.2.2:5000",
		Protocol:    "UDP",
		RxPackets:   2,
		DelaySum:    4 * time.Millisecond,
	}}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("Failed to open pcap: %v", err)
	}
	defer r.Close()

	events, err := r.ReadDeliveries(records)
	if err != nil {
		t.Fatalf("ReadDeliveries failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 delivery events, got %d", len(events))
	}

	ev := events[0]
	if ev.FlowID != 1 {
		t.Errorf("Expected flow id 1, got %d", ev.FlowID)
	}
	if ev.Timestamp != 500*time.Millisecond {
		t.Errorf("Expected timestamp 500ms, got %s", ev.Timestamp)
	}
	// 20 bytes IP header + 8 bytes UDP header + 72 bytes payload.
	if ev.Bytes != 100 {
		t.Errorf("Expected 100 bytes, got %d", ev.Bytes)
	}
	if ev.Delay != 2*time.Millisecond {
		t.Errorf("Expected flow mean delay 2ms, got %s", ev.Delay)
	}
}

func TestReader_UnmatchedPacketsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pcap")
	writeTestPcap(t, path, []time.Duration{time.Second})

	// No record matches the packet's endpoints.
	records := []model.FlowRecord{{
		FlowID:      1,
		SrcEndpoint: "192.168.0.1:1234",
		DstEndpoint: "192.168.0.2:80",
		Protocol:    "TCP",
	}}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("Failed to open pcap: %v", err)
	}
	defer r.Close()

	events, err := r.ReadDeliveries(records)
	if err != nil {
		t.Fatalf("ReadDeliveries failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events for unmatched packets, got %d", len(events))
	}
}
