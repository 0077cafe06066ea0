package pcap

import (
	"NetSimScope/internal/model"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Reader reads packet deliveries from a pcap capture taken at the receiving
// side of a simulation. Matched against the parsed flow records it yields
// per-packet timestamps, which lets the aggregator bucket receive counters
// exactly instead of spreading them uniformly.
type Reader struct {
	f *os.File
	r *pcapgo.Reader
}

// NewReader opens a pcap file for reading.
func NewReader(filePath string) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file: %w", err)
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	return &Reader{f: f, r: r}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() {
	r.f.Close()
}

// ReadDeliveries reads all packets and returns one DeliveryEvent per packet
// that matches a known flow. Each event carries the flow's mean per-packet
// delay, since a single capture point cannot observe one-way delay itself;
// the per-interval packet and byte attribution is exact, the delay is not.
// Unmatched or undecodable packets are skipped with a log line.
func (r *Reader) ReadDeliveries(records []model.FlowRecord) ([]model.DeliveryEvent, error) {
	index := make(map[string]*flowEntry, len(records))
	for i := range records {
		rec := &records[i]
		key := rec.SrcEndpoint + ">" + rec.DstEndpoint + "/" + rec.Protocol
		var meanDelay time.Duration
		if rec.RxPackets > 0 {
			meanDelay = rec.DelaySum / time.Duration(rec.RxPackets)
		}
		index[key] = &flowEntry{id: rec.FlowID, meanDelay: meanDelay}
	}

	var events []model.DeliveryEvent
	skipped := 0
	for {
		data, ci, err := r.r.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read packet: %w", err)
		}

		key, payloadLen, ok := decodePacket(data, r.r.LinkType())
		if !ok {
			skipped++
			continue
		}
		entry, ok := index[key]
		if !ok {
			skipped++
			continue
		}

		events = append(events, model.DeliveryEvent{
			// ns-3 writes simulation time into the pcap timestamps, so
			// the epoch offset is the offset from simulation start.
			Timestamp: time.Duration(ci.Timestamp.UnixNano()),
			FlowID:    entry.id,
			Bytes:     uint64(payloadLen),
			Delay:     entry.meanDelay,
		})
	}

	if skipped > 0 {
		log.Printf("Skipped %d pcap packets with no matching flow", skipped)
	}
	return events, nil
}

type flowEntry struct {
	id        uint32
	meanDelay time.Duration
}

// decodePacket extracts the flow key and IP payload length from raw packet
// bytes.
func decodePacket(data []byte, linkType layers.LinkType) (string, int, bool) {
	packet := gopacket.NewPacket(data, linkType, gopacket.Lazy)

	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return "", 0, false
	}
	ip := ipLayer.(*layers.IPv4)

	var srcPort, dstPort int
	var proto string
	switch ip.Protocol {
	case layers.IPProtocolTCP:
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			return "", 0, false
		}
		tcp := tcpLayer.(*layers.TCP)
		srcPort, dstPort, proto = int(tcp.SrcPort), int(tcp.DstPort), "TCP"
	case layers.IPProtocolUDP:
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			return "", 0, false
		}
		udp := udpLayer.(*layers.UDP)
		srcPort, dstPort, proto = int(udp.SrcPort), int(udp.DstPort), "UDP"
	default:
		return "", 0, false
	}

	key := ip.SrcIP.String() + ":" + strconv.Itoa(srcPort) +
		">" + ip.DstIP.String() + ":" + strconv.Itoa(dstPort) + "/" + proto
	return key, int(ip.Length), true
}
