package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/routing"
	"github.com/mostlygeek/arp"
	"github.com/phayes/freeport"
	log "github.com/sirupsen/logrus"
)

const (
	defaultSynTimeout = time.Second
	pcapReadTimeout   = 100 * time.Millisecond
)

// SynScanner sends a single SYN to every port and never completes the handshake.
// A SYN/ACK marks the port open, a RST marks it closed and silence until the
// timeout marks it filtered. It needs raw socket access and only handles IPv4.
type SynScanner struct {
	timeout          time.Duration
	serializeOptions gopacket.SerializeOptions
}

func NewSynScanner(timeout time.Duration) *SynScanner {
	if timeout <= 0 {
		timeout = defaultSynTimeout
	}
	return &SynScanner{
		serializeOptions: gopacket.SerializeOptions{
			FixLengths:       true,
			ComputeChecksums: true,
		},
		timeout: timeout,
	}
}

func (s *SynScanner) Scan(ctx context.Context, host net.IP, ports Range) (Result, error) {

	result := NewResult(host)
	startTime := time.Now()

	dstIP := host.To4()
	if dstIP == nil {
		return result, fmt.Errorf("stealth scan supports IPv4 targets only, got %s", host)
	}

	router, err := routing.New()
	if err != nil {
		return result, err
	}
	networkInterface, gateway, srcIP, err := router.Route(dstIP)
	if err != nil {
		return result, err
	}
	srcIP = srcIP.To4()

	handle, err := pcap.OpenLive(networkInterface.Name, 65535, true, pcapReadTimeout)
	if err != nil {
		return result, err
	}
	defer handle.Close()

	// resolve the next hop before the capture is narrowed to tcp below
	hwaddr, err := s.getHwAddr(handle, dstIP, gateway, srcIP, networkInterface)
	if err != nil {
		return result, err
	}

	rawPort, err := freeport.GetFreePort()
	if err != nil {
		return result, err
	}

	if err := handle.SetBPFFilter(fmt.Sprintf("tcp and src host %s and dst port %d", dstIP, rawPort)); err != nil {
		return result, err
	}

	eth := layers.Ethernet{
		SrcMAC:       networkInterface.HardwareAddr,
		DstMAC:       hwaddr,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip4 := layers.IPv4{
		SrcIP:    srcIP,
		DstIP:    dstIP,
		Version:  4,
		TTL:      255,
		Protocol: layers.IPProtocolTCP,
	}
	tcp := layers.TCP{
		SrcPort: layers.TCPPort(rawPort),
		SYN:     true,
		Window:  1024,
	}
	if err := tcp.SetNetworkLayerForChecksum(&ip4); err != nil {
		return result, err
	}

	states := map[int]PortState{}
	stopChan := make(chan struct{})
	listenChan := make(chan struct{})

	go s.listen(handle, gopacket.NewFlow(layers.EndpointIPv4, dstIP, srcIP), rawPort, states, stopChan, listenChan)

	sent := make([]int, 0, ports.Size())
	for port := ports.Start; port <= ports.End; port++ {
		if ctx.Err() != nil {
			break
		}
		if port < 0 || port > 65535 {
			continue
		}
		tcp.DstPort = layers.TCPPort(port)
		if err := s.send(handle, &eth, &ip4, &tcp); err != nil {
			log.Debugf("Failed to send SYN to %s:%d: %s", dstIP, port, err)
		}
		sent = append(sent, port)
	}

	timer := time.NewTimer(s.timeout)
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	timer.Stop()

	close(stopChan)
	<-listenChan

	for _, port := range sent {
		state, ok := states[port]
		if !ok {
			state = PortFiltered
		}
		result.add(port, state)
	}

	result.Duration = time.Since(startTime)
	result.sort()

	return result, ctx.Err()
}

// listen records the first answer seen for each port until stop is closed.
func (s *SynScanner) listen(handle *pcap.Handle, ipFlow gopacket.Flow, rawPort int, states map[int]PortState, stop <-chan struct{}, done chan<- struct{}) {

	defer close(done)

	eth := &layers.Ethernet{}
	ip4 := &layers.IPv4{}
	tcp := &layers.TCP{}

	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, eth, ip4, tcp)
	parser.IgnoreUnsupported = true
	decoded := []gopacket.LayerType{}

	for {
		select {
		case <-stop:
			return
		default:
		}

		data, _, err := handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		} else if err == io.EOF {
			return
		} else if err != nil {
			log.Debugf("Packet read error: %s", err)
			return
		}

		if err := parser.DecodeLayers(data, &decoded); err != nil {
			continue
		}

		fromTarget := false
		for _, layerType := range decoded {
			switch layerType {
			case layers.LayerTypeIPv4:
				fromTarget = ip4.NetworkFlow() == ipFlow
			case layers.LayerTypeTCP:
				if !fromTarget || tcp.DstPort != layers.TCPPort(rawPort) {
					continue
				}
				port := int(tcp.SrcPort)
				if _, seen := states[port]; seen {
					continue
				}
				if tcp.SYN && tcp.ACK {
					states[port] = PortOpen
				} else if tcp.RST {
					states[port] = PortClosed
				}
			}
		}
	}
}

func (s *SynScanner) getHwAddr(handle *pcap.Handle, ip net.IP, gateway net.IP, srcIP net.IP, networkInterface *net.Interface) (net.HardwareAddr, error) {

	if networkInterface.Flags&net.FlagLoopback != 0 {
		return net.HardwareAddr{0, 0, 0, 0, 0, 0}, nil
	}

	arpDst := ip
	if gateway != nil {
		arpDst = gateway
	}

	// grab mac from ARP table if we have it cached
	if macStr := arp.Search(arpDst.String()); macStr != "" && macStr != "00:00:00:00:00:00" {
		if mac, err := net.ParseMAC(macStr); err == nil {
			return mac, nil
		}
	}

	eth := layers.Ethernet{
		SrcMAC:       networkInterface.HardwareAddr,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	request := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(networkInterface.HardwareAddr),
		SourceProtAddress: []byte(srcIP.To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte(arpDst.To4()),
	}

	start := time.Now()

	if err := s.send(handle, &eth, &request); err != nil {
		return nil, err
	}

	for time.Since(start) < s.timeout {
		data, _, err := handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		} else if err != nil {
			return nil, err
		}
		packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
		if arpLayer := packet.Layer(layers.LayerTypeARP); arpLayer != nil {
			reply := arpLayer.(*layers.ARP)
			if reply.Operation == layers.ARPReply && net.IP(reply.SourceProtAddress).Equal(arpDst) {
				return net.HardwareAddr(reply.SourceHwAddress), nil
			}
		}
	}

	return nil, errors.New("timeout getting ARP reply")
}

// send sends the given layers as a single packet on the network.
func (s *SynScanner) send(handle *pcap.Handle, l ...gopacket.SerializableLayer) error {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, s.serializeOptions, l...); err != nil {
		return err
	}
	return handle.WritePacketData(buf.Bytes())
}
