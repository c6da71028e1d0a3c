package adapter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LinkLayerSweeper resolves IPv4 addresses to MAC addresses on directly
// attached segments. Targets are processed in batches; each batch is one
// broadcast round followed by a wait of at most the configured timeout.
type LinkLayerSweeper struct {
	batchSize  int
	timeout    time.Duration
	iface      string
	privileged bool
	readTable  func() (map[string]string, error)
}

// NewLinkLayerSweeper creates a sweeper with defaults of 50 addresses per
// batch and a 2 second reply window
func NewLinkLayerSweeper(opts ...SweepOption) *LinkLayerSweeper {
	s := &LinkLayerSweeper{
		batchSize: 50,
		timeout:   2 * time.Second,
		readTable: readNeighbourTable,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep returns the address to MAC mapping for every target that answered.
// Failures degrade to an empty (or partial) mapping.
func (s *LinkLayerSweeper) Sweep(ctx context.Context, targets []string) map[string]string {
	found := make(map[string]string)

	for start := 0; start < len(targets); start += s.batchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + s.batchSize
		if end > len(targets) {
			end = len(targets)
		}
		for ip, mac := range s.sweepBatch(ctx, targets[start:end]) {
			found[ip] = mac
		}
	}

	log.Printf("Link-layer sweep: %d of %d targets answered", len(found), len(targets))
	return found
}

// Resolve looks up a single address, consulting the kernel neighbour table
// before putting anything on the wire. Returns "" when unresolved.
func (s *LinkLayerSweeper) Resolve(ctx context.Context, addr string) string {
	if table, err := s.readTable(); err == nil {
		if mac, ok := table[addr]; ok {
			return mac
		}
	}
	return s.sweepBatch(ctx, []string{addr})[addr]
}

// sweepViaNeighbourTable pings the batch concurrently so the kernel performs
// ARP resolution, then reads the neighbour table back.
func (s *LinkLayerSweeper) sweepViaNeighbourTable(ctx context.Context, batch []string) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, ip := range batch {
		wg.Add(1)
		go func(ip string) {
			defer wg.Done()
			icmpEcho(ctx, ip, s.timeout, s.privileged)
		}(ip)
	}
	wg.Wait()

	table, err := s.readTable()
	if err != nil {
		log.Printf("Link-layer sweep: read neighbour table: %v", err)
		return map[string]string{}
	}

	found := make(map[string]string, len(batch))
	for _, ip := range batch {
		if mac, ok := table[ip]; ok {
			found[ip] = mac
		}
	}
	return found
}

// readNeighbourTable returns the kernel ARP cache as IP -> MAC
func readNeighbourTable() (map[string]string, error) {
	switch runtime.GOOS {
	case "linux":
		f, err := os.Open("/proc/net/arp")
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return parseProcNetARP(f)
	case "darwin", "freebsd":
		out, err := exec.Command("arp", "-an").Output()
		if err != nil {
			return nil, err
		}
		return parseArpAn(string(out))
	default:
		return nil, fmt.Errorf("neighbour table not supported on %s", runtime.GOOS)
	}
}

// parseProcNetARP reads the Linux /proc/net/arp format:
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	192.168.1.1      0x1         0x2         aa:bb:cc:dd:ee:ff     *        eth0
func parseProcNetARP(r io.Reader) (map[string]string, error) {
	sc := bufio.NewScanner(r)
	return scanNeighbourLines(sc, true, func(fields []string) (string, string) {
		if len(fields) < 4 {
			return "", ""
		}
		return fields[0], fields[3]
	})
}

var (
	arpAnIP  = regexp.MustCompile(`\((\d+\.\d+\.\d+\.\d+)\)`)
	arpAnMAC = regexp.MustCompile(`(?i)\bat\s+(([0-9a-f]{1,2}:){5}[0-9a-f]{1,2})\b`)
)

// parseArpAn reads BSD style "arp -an" output:
//
//	? (192.168.2.1) at 18:aa:0f:f7:9e:62 on en0 ifscope [ethernet]
func parseArpAn(out string) (map[string]string, error) {
	sc := bufio.NewScanner(strings.NewReader(out))
	return scanNeighbourLines(sc, false, func(fields []string) (string, string) {
		line := strings.Join(fields, " ")
		ip := arpAnIP.FindStringSubmatch(line)
		mac := arpAnMAC.FindStringSubmatch(line)
		if len(ip) != 2 || len(mac) != 3 {
			return "", ""
		}
		return ip[1], mac[1]
	})
}

func scanNeighbourLines(sc *bufio.Scanner, header bool, extract func([]string) (string, string)) (map[string]string, error) {
	out := map[string]string{}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if header {
			header = false
			continue
		}
		ip, mac := extract(strings.Fields(line))
		mac = normalizeMAC(mac)
		if ip == "" || mac == "" || mac == "00:00:00:00:00:00" || mac == "FF:FF:FF:FF:FF:FF" {
			continue
		}
		out[ip] = mac
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var hexOctet = regexp.MustCompile(`^[0-9a-f]{2}$`)

// normalizeMAC returns an upper case, colon separated, zero padded MAC or ""
func normalizeMAC(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(strings.ToLower(s)), "-", ":")
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return ""
	}
	for i, p := range parts {
		if len(p) == 1 {
			p = "0" + p
		}
		if !hexOctet.MatchString(p) {
			return ""
		}
		parts[i] = strings.ToUpper(p)
	}
	return strings.Join(parts, ":")
}

// segment is the set of batch addresses reachable through one interface
type segment struct {
	iface *net.Interface
	srcIP net.IP
	addrs []string
}

// groupBySegment splits a batch by the interface each address is attached
// to, keeping first-seen order. Addresses with no usable Ethernet interface
// come back in rest.
func groupBySegment(batch []string, lookup func(net.IP) (*net.Interface, net.IP, error)) (segments []*segment, rest []string) {
	byName := make(map[string]*segment)
	for _, addr := range batch {
		ip := net.ParseIP(addr).To4()
		if ip == nil {
			rest = append(rest, addr)
			continue
		}
		iface, srcIP, err := lookup(ip)
		if err != nil || iface == nil || srcIP == nil || len(iface.HardwareAddr) != 6 {
			rest = append(rest, addr)
			continue
		}
		seg, ok := byName[iface.Name]
		if !ok {
			seg = &segment{iface: iface, srcIP: srcIP}
			byName[iface.Name] = seg
			segments = append(segments, seg)
		}
		seg.addrs = append(seg.addrs, addr)
	}
	return segments, rest
}

// interfaceFor finds the local interface whose network contains ip
func interfaceFor(ip net.IP, name string) (*net.Interface, net.IP, error) {
	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, nil, err
		}
		return iface, ipv4Of(iface), nil
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, err
	}
	for i := range interfaces {
		iface := &interfaces[i]
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil && ipnet.Contains(ip) {
				return iface, ipnet.IP.To4(), nil
			}
		}
	}
	return nil, nil, fmt.Errorf("no interface attached to %s", ip)
}

func ipv4Of(iface *net.Interface) net.IP {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip := ipnet.IP.To4(); ip != nil {
				return ip
			}
		}
	}
	return nil
}
