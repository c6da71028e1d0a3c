//go:build pcap

package adapter

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// sweepBatch broadcasts one ARP request per address on the interface
// attached to that address and collects replies until the reply window
// closes. Segments are swept concurrently. Addresses on no Ethernet
// interface, or on one libpcap cannot open (no CAP_NET_RAW, container
// without the interface), fall back to the neighbour table.
func (s *LinkLayerSweeper) sweepBatch(ctx context.Context, batch []string) map[string]string {
	found := make(map[string]string)
	if len(batch) == 0 {
		return found
	}

	segments, rest := groupBySegment(batch, func(ip net.IP) (*net.Interface, net.IP, error) {
		return interfaceFor(ip, s.iface)
	})

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, seg := range segments {
		wg.Add(1)
		go func(seg *segment) {
			defer wg.Done()
			replies, err := s.sweepSegment(ctx, seg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("Link-layer sweep: pcap unavailable on %s, using neighbour table: %v", seg.iface.Name, err)
				rest = append(rest, seg.addrs...)
				return
			}
			for ip, mac := range replies {
				found[ip] = mac
			}
		}(seg)
	}
	wg.Wait()

	if len(rest) > 0 {
		for ip, mac := range s.sweepViaNeighbourTable(ctx, rest) {
			found[ip] = mac
		}
	}
	return found
}

// sweepSegment ARPs every address of one segment through its interface
func (s *LinkLayerSweeper) sweepSegment(ctx context.Context, seg *segment) (map[string]string, error) {
	iface, srcIP, batch := seg.iface, seg.srcIP, seg.addrs

	handle, err := pcap.OpenLive(iface.Name, 1024, false, 100*time.Millisecond)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	if err := handle.SetBPFFilter("arp"); err != nil {
		log.Printf("Link-layer sweep: set BPF filter: %v", err)
	}

	wanted := make(map[string]bool, len(batch))
	for _, ip := range batch {
		wanted[ip] = true
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	found := make(map[string]string)
	done := make(chan struct{})
	go func() {
		defer close(done)
		source := gopacket.NewPacketSource(handle, handle.LinkType())
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			packet, err := source.NextPacket()
			if err != nil {
				// read timeouts keep the loop responsive to ctx
				continue
			}
			arpLayer := packet.Layer(layers.LayerTypeARP)
			if arpLayer == nil {
				continue
			}
			arp := arpLayer.(*layers.ARP)
			if arp.Operation != layers.ARPReply {
				continue
			}
			ip := net.IP(arp.SourceProtAddress).String()
			if wanted[ip] {
				found[ip] = normalizeMAC(net.HardwareAddr(arp.SourceHwAddress).String())
				if len(found) == len(wanted) {
					return
				}
			}
		}
	}()

	for _, ip := range batch {
		dst := net.ParseIP(ip).To4()
		if dst == nil {
			continue
		}
		if err := writeARPRequest(handle, iface.HardwareAddr, srcIP, dst); err != nil {
			log.Printf("Link-layer sweep: send ARP to %s: %v", ip, err)
		}
	}

	<-done
	return found, nil
}

// writeARPRequest sends a broadcast "who-has dst tell src" frame
func writeARPRequest(handle *pcap.Handle, srcMAC net.HardwareAddr, srcIP, dstIP net.IP) error {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(srcMAC),
		SourceProtAddress: []byte(srcIP.To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte(dstIP),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, arp); err != nil {
		return err
	}
	return handle.WritePacketData(buf.Bytes())
}
