package client

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Tapo devices answer a UDP broadcast probe on port 20002. The probe is a
// 16 byte big-endian header followed by a JSON body, with a CRC32 over the
// whole packet patched in at offset 12.
const (
	discoveryPort  = 20002
	probeVersion   = 2
	probeOpCode    = 1
	probeFlags     = 17
	headerLen      = 16
	crcPlaceholder = 0x5A6B7C8D
)

// DiscoveredDevice is one reply to the discovery probe.
type DiscoveredDevice struct {
	IP             string `json:"ip"`
	MAC            string `json:"mac"`
	DeviceType     string `json:"device_type"`
	DeviceModel    string `json:"device_model"`
	MgtEncryptSchm struct {
		EncryptType    string `json:"encrypt_type"`
		HTTPPort       int    `json:"http_port"`
		IsSupportHTTPS bool   `json:"is_support_https"`
	} `json:"mgt_encrypt_schm"`
}

type discoveryReply struct {
	Result    DiscoveredDevice `json:"result"`
	ErrorCode int              `json:"error_code"`
}

// Discover broadcasts a probe on the local network and collects replies
// until the timeout elapses. Replies that fail to parse are skipped.
func Discover(timeout time.Duration) ([]DiscoveredDevice, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return nil, errors.Wrap(err, "could not open discovery socket")
	}
	defer conn.Close()

	probe, err := buildProbe()
	if err != nil {
		return nil, err
	}
	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: discoveryPort}
	if _, err := conn.WriteToUDP(probe, dst); err != nil {
		return nil, errors.Wrap(err, "could not send discovery probe")
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	devices := []DiscoveredDevice{}
	seen := map[string]bool{}
	buf := make([]byte, 2048)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return devices, nil
			}
			return devices, err
		}
		device, err := parseReply(buf[:n])
		if err != nil {
			log.WithError(err).WithField("from", from.String()).Debug("ignoring discovery reply")
			continue
		}
		if device.IP == "" {
			device.IP = from.IP.String()
		}
		if seen[device.IP] {
			continue
		}
		seen[device.IP] = true
		devices = append(devices, *device)
	}
}

// buildProbe assembles the discovery packet. The body carries a fresh RSA
// public key; devices that support key exchange over discovery echo
// material back, though only the identification fields are used here.
func buildProbe() ([]byte, error) {
	var serial [4]byte
	if _, err := rand.Read(serial[:]); err != nil {
		return nil, err
	}
	_, pemKey, err := generateKeyExchange()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]interface{}{
		"params": map[string]string{"rsa_key": pemKey},
	})
	if err != nil {
		return nil, err
	}

	pkt := make([]byte, headerLen+len(body))
	pkt[0] = probeVersion
	pkt[1] = 0
	binary.BigEndian.PutUint16(pkt[2:4], probeOpCode)
	binary.BigEndian.PutUint16(pkt[4:6], uint16(len(body)))
	pkt[6] = probeFlags
	pkt[7] = 0
	copy(pkt[8:12], serial[:])
	binary.BigEndian.PutUint32(pkt[12:16], crcPlaceholder)
	copy(pkt[headerLen:], body)
	binary.BigEndian.PutUint32(pkt[12:16], crc32.ChecksumIEEE(pkt))
	return pkt, nil
}

func parseReply(pkt []byte) (*DiscoveredDevice, error) {
	if len(pkt) <= headerLen {
		return nil, errors.New("reply shorter than the header")
	}
	if pkt[0] != probeVersion {
		return nil, errors.Errorf("unsupported header version %d", pkt[0])
	}
	var reply discoveryReply
	if err := json.Unmarshal(pkt[headerLen:], &reply); err != nil {
		return nil, errors.Wrap(err, "could not decode reply body")
	}
	if reply.ErrorCode != 0 {
		return nil, errors.Errorf("device reported error code %d", reply.ErrorCode)
	}
	return &reply.Result, nil
}
