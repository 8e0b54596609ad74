//go:build linux

package nio

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

const (
	defaultTPID = 0x8100
)

// RawSocketNIO is a PF_PACKET/SOCK_RAW endpoint bound to one interface
// index, joined to PACKET_MR_PROMISC with PACKET_AUXDATA enabled so that
// Recv can reconstruct an 802.1Q tag the kernel stripped before delivery,
// per spec.md §4.1.
type RawSocketNIO struct {
	Counters
	fd      int
	ifindex int
	ifname  string
}

// NewRawSocket opens a raw AF_PACKET socket bound to ifname, joins
// PACKET_MR_PROMISC, and enables PACKET_AUXDATA.
func NewRawSocket(ifname string) (*RawSocketNIO, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, err
	}
	iface, err := interfaceByName(ifname)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	sll := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface,
	}
	if err := unix.Bind(fd, &sll); err != nil {
		unix.Close(fd)
		return nil, err
	}

	mreq := unix.PacketMreq{
		Ifindex: int32(iface),
		Type:    unix.PACKET_MR_PROMISC,
	}
	if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_PACKET, unix.PACKET_AUXDATA, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}

	return &RawSocketNIO{fd: fd, ifindex: iface, ifname: ifname}, nil
}

func htons(h int) uint16 {
	return (uint16(h)>>8)&0xff | (uint16(h)<<8)&0xff00
}

func interfaceByName(name string) (int, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return ifi.Index, nil
}

func (r *RawSocketNIO) Send(buf []byte) (int, error) {
	sa := unix.SockaddrLinklayer{Ifindex: r.ifindex}
	if err := unix.Sendto(r.fd, buf, 0, &sa); err != nil {
		return -1, err
	}
	r.addOut(len(buf))
	return len(buf), nil
}

// Recv reads one frame and, if the kernel stripped a VLAN tag (reported via
// the PACKET_AUXDATA control message's tp_vlan_tci), reconstructs the
// 802.1Q tag by shifting the payload right 4 bytes and inserting the
// 4-byte tag (default TPID 0x8100, TCI from the aux data).
func (r *RawSocketNIO) Recv(buf []byte) (int, error) {
	pfd := []unix.PollFd{{Fd: int32(r.fd), Events: unix.POLLIN}}
	pn, err := unix.Poll(pfd, int(RecvPollInterval/1e6))
	if err != nil {
		return 0, err
	}
	if pn == 0 {
		return 0, ErrTimeout
	}

	oob := make([]byte, unix.CmsgSpace(unix.SizeofTpacketAuxdata))
	data := make([]byte, MaxFrame)
	n, oobn, _, _, err := unix.Recvmsg(r.fd, data, oob, 0)
	if err != nil {
		return 0, err
	}
	data = data[:n]

	if tci, ok := vlanTCIFromAux(oob[:oobn]); ok {
		data = reinsertVLANTag(data, defaultTPID, tci)
	}

	written := copy(buf, data)
	r.addIn(written)
	return written, nil
}

// vlanTCIFromAux scans the control message buffer for SOL_PACKET/
// PACKET_AUXDATA and returns tp_vlan_tci if the kernel reports a stripped
// tag (TP_STATUS_VLAN_VALID).
func vlanTCIFromAux(oob []byte) (uint16, bool) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return 0, false
	}
	for _, m := range msgs {
		if m.Header.Level != unix.SOL_PACKET || m.Header.Type != unix.PACKET_AUXDATA {
			continue
		}
		aux, err := unix.ParseTpacketAuxdata(m.Data)
		if err != nil {
			continue
		}
		if aux.Status&unix.TP_STATUS_VLAN_VALID != 0 && aux.Tp_vlan_tci != 0 {
			return aux.Tp_vlan_tci, true
		}
	}
	return 0, false
}

// reinsertVLANTag shifts the payload starting at the ethertype offset (12
// bytes in) right by 4 bytes and writes a TPID/TCI 802.1Q tag in the gap.
func reinsertVLANTag(data []byte, tpid, tci uint16) []byte {
	const ethHeaderLen = 12
	if len(data) < ethHeaderLen {
		return data
	}
	out := make([]byte, 0, len(data)+4)
	out = append(out, data[:ethHeaderLen]...)
	var tagBuf [4]byte
	binary.BigEndian.PutUint16(tagBuf[0:2], tpid)
	binary.BigEndian.PutUint16(tagBuf[2:4], tci)
	out = append(out, tagBuf[:]...)
	out = append(out, data[ethHeaderLen:]...)
	return out
}

func (r *RawSocketNIO) Close() error {
	return unix.Close(r.fd)
}

func (r *RawSocketNIO) Stats() Snapshot    { return r.Counters.Snapshot() }
func (r *RawSocketNIO) ResetStats()        { r.Counters.Reset() }
func (r *RawSocketNIO) SetBPFFilter(string) error { return ErrUnsupported }

func (r *RawSocketNIO) String() string {
	return fmt.Sprintf("linux_raw:%s", r.ifname)
}
