package trace

import (
	"NetSimScope/internal/model"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParseError describes a structural violation in the flow-monitor trace.
// Parsing is atomic: when a ParseError is returned no records are returned
// with it, so callers never see a half-populated flow set.
type ParseError struct {
	File    string
	Element string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("trace %s: element %s: %v", e.File, e.Element, e.Err)
	}
	return fmt.Sprintf("trace %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// flowStats mirrors the attributes of a FlowStats/Flow element.
type flowStats struct {
	FlowID      string `xml:"flowId,attr"`
	TxBytes     string `xml:"txBytes,attr"`
	RxBytes     string `xml:"rxBytes,attr"`
	TxPackets   string `xml:"txPackets,attr"`
	RxPackets   string `xml:"rxPackets,attr"`
	LostPackets string `xml:"lostPackets,attr"`
	DelaySum    string `xml:"delaySum,attr"`
	JitterSum   string `xml:"jitterSum,attr"`
	FirstTx     string `xml:"timeFirstTxPacket,attr"`
	LastRx      string `xml:"timeLastRxPacket,attr"`
}

// classifierFlow mirrors the attributes of an Ipv4FlowClassifier/Flow element.
type classifierFlow struct {
	FlowID   string `xml:"flowId,attr"`
	SrcAddr  string `xml:"sourceAddress,attr"`
	DstAddr  string `xml:"destinationAddress,attr"`
	Protocol string `xml:"protocol,attr"`
	SrcPort  string `xml:"sourcePort,attr"`
	DstPort  string `xml:"destinationPort,attr"`
}

// Parse reads a flow-monitor XML trace from the given path and returns one
// FlowRecord per flow, sorted by flow id. A trace with no flow elements
// yields an empty slice and no error. A missing file surfaces the underlying
// os error, so callers can test it with errors.Is(err, fs.ErrNotExist).
func Parse(path string) ([]model.FlowRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()
	return ParseReader(f, path)
}

// ParseReader is like Parse but reads from r; name is used in errors.
func ParseReader(r io.Reader, name string) ([]model.FlowRecord, error) {
	dec := xml.NewDecoder(r)

	stats := make(map[uint32]*model.FlowRecord)
	var order []uint32
	var section string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{File: name, Err: err}
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "FlowStats", "Ipv4FlowClassifier", "Ipv6FlowClassifier":
				section = el.Name.Local
			case "Flow":
				switch section {
				case "FlowStats":
					var fs flowStats
					if err := dec.DecodeElement(&fs, &el); err != nil {
						return nil, &ParseError{File: name, Element: "FlowStats/Flow", Err: err}
					}
					rec, err := buildRecord(fs)
					if err != nil {
						return nil, &ParseError{
							File:    name,
							Element: fmt.Sprintf("FlowStats/Flow[flowId=%s]", fs.FlowID),
							Err:     err,
						}
					}
					if _, dup := stats[rec.FlowID]; dup {
						return nil, &ParseError{
							File:    name,
							Element: fmt.Sprintf("FlowStats/Flow[flowId=%d]", rec.FlowID),
							Err:     fmt.Errorf("duplicate flow id"),
						}
					}
					stats[rec.FlowID] = rec
					order = append(order, rec.FlowID)
				case "Ipv4FlowClassifier", "Ipv6FlowClassifier":
					var cf classifierFlow
					if err := dec.DecodeElement(&cf, &el); err != nil {
						return nil, &ParseError{File: name, Element: section + "/Flow", Err: err}
					}
					if err := mergeClassifier(stats, cf); err != nil {
						return nil, &ParseError{
							File:    name,
							Element: fmt.Sprintf("%s/Flow[flowId=%s]", section, cf.FlowID),
							Err:     err,
						}
					}
				default:
					// Flow elements in other sections (e.g. FlowProbes)
					// carry per-probe detail we do not need.
					if err := dec.Skip(); err != nil {
						return nil, &ParseError{File: name, Element: "Flow", Err: err}
					}
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "FlowStats", "Ipv4FlowClassifier", "Ipv6FlowClassifier":
				section = ""
			}
		}
	}

	records := make([]model.FlowRecord, 0, len(order))
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for _, id := range order {
		records = append(records, *stats[id])
	}
	return records, nil
}

// buildRecord converts raw attribute strings into a validated FlowRecord.
func buildRecord(fs flowStats) (*model.FlowRecord, error) {
	if fs.FlowID == "" {
		return nil, fmt.Errorf("missing flowId attribute")
	}
	id, err := strconv.ParseUint(fs.FlowID, 10, 32)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("invalid flowId %q", fs.FlowID)
	}

	rec := &model.FlowRecord{FlowID: uint32(id)}

	counters := []struct {
		name string
		raw  string
		dst  *uint64
	}{
		{"txBytes", fs.TxBytes, &rec.TxBytes},
		{"rxBytes", fs.RxBytes, &rec.RxBytes},
		{"txPackets", fs.TxPackets, &rec.TxPackets},
		{"rxPackets", fs.RxPackets, &rec.RxPackets},
		{"lostPackets", fs.LostPackets, &rec.LostPackets},
	}
	for _, c := range counters {
		if c.raw == "" {
			continue
		}
		v, err := strconv.ParseUint(c.raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("attribute %s=%q: not a non-negative integer", c.name, c.raw)
		}
		*c.dst = v
	}

	times := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"delaySum", fs.DelaySum, &rec.DelaySum},
		{"jitterSum", fs.JitterSum, &rec.JitterSum},
		{"timeFirstTxPacket", fs.FirstTx, &rec.FirstTxTime},
		{"timeLastRxPacket", fs.LastRx, &rec.LastRxTime},
	}
	for _, t := range times {
		if t.raw == "" {
			continue
		}
		d, err := parseSimTime(t.raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %s=%q: %v", t.name, t.raw, err)
		}
		*t.dst = d
	}

	if rec.RxPackets+rec.LostPackets > rec.TxPackets {
		return nil, fmt.Errorf("rxPackets(%d) + lostPackets(%d) exceeds txPackets(%d)",
			rec.RxPackets, rec.LostPackets, rec.TxPackets)
	}
	if rec.RxPackets > 0 && rec.LastRxTime < rec.FirstTxTime {
		return nil, fmt.Errorf("timeLastRxPacket precedes timeFirstTxPacket")
	}

	return rec, nil
}

// mergeClassifier attaches endpoint and protocol identity to a parsed record.
// A classifier entry without a matching FlowStats entry is ignored, matching
// the monitor's own behavior for flows that never carried traffic.
func mergeClassifier(stats map[uint32]*model.FlowRecord, cf classifierFlow) error {
	id, err := strconv.ParseUint(cf.FlowID, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid flowId %q", cf.FlowID)
	}
	rec, ok := stats[uint32(id)]
	if !ok {
		return nil
	}
	rec.SrcEndpoint = joinEndpoint(cf.SrcAddr, cf.SrcPort)
	rec.DstEndpoint = joinEndpoint(cf.DstAddr, cf.DstPort)
	rec.Protocol = protocolName(cf.Protocol)
	return nil
}

func joinEndpoint(addr, port string) string {
	if port == "" {
		return addr
	}
	return addr + ":" + port
}

// protocolName maps an IP protocol number to its common tag.
func protocolName(raw string) string {
	switch raw {
	case "1":
		return "ICMP"
	case "6":
		return "TCP"
	case "17":
		return "UDP"
	default:
		return raw
	}
}

// parseSimTime parses an ns-3 time literal such as "+1.2345e+09ns" or
// "+150ms" into a Duration. Negative times are rejected: the monitor only
// reports offsets from simulation start.
func parseSimTime(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "+")

	unit := time.Nanosecond
	switch {
	case strings.HasSuffix(s, "ns"):
		s = strings.TrimSuffix(s, "ns")
	case strings.HasSuffix(s, "us"):
		s, unit = strings.TrimSuffix(s, "us"), time.Microsecond
	case strings.HasSuffix(s, "ms"):
		s, unit = strings.TrimSuffix(s, "ms"), time.Millisecond
	case strings.HasSuffix(s, "s"):
		s, unit = strings.TrimSuffix(s, "s"), time.Second
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed time literal")
	}
	if v < 0 {
		return 0, fmt.Errorf("negative time literal")
	}
	return time.Duration(v * float64(unit)), nil
}
