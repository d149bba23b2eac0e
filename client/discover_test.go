package client

import (
	"encoding/binary"
	"encoding/json"
	"encoding/pem"
	"hash/crc32"
	"testing"
)

func TestBuildProbe(t *testing.T) {
	pkt, err := buildProbe()
	if err != nil {
		t.Fatalf("buildProbe: %v", err)
	}
	if len(pkt) <= headerLen {
		t.Fatalf("probe is only %d bytes", len(pkt))
	}
	if pkt[0] != probeVersion || pkt[1] != 0 {
		t.Fatalf("got version bytes %d %d", pkt[0], pkt[1])
	}
	if op := binary.BigEndian.Uint16(pkt[2:4]); op != probeOpCode {
		t.Fatalf("got opcode %d, want %d", op, probeOpCode)
	}
	if bodyLen := binary.BigEndian.Uint16(pkt[4:6]); int(bodyLen) != len(pkt)-headerLen {
		t.Fatalf("header says %d body bytes, packet has %d", bodyLen, len(pkt)-headerLen)
	}
	if pkt[6] != probeFlags || pkt[7] != 0 {
		t.Fatalf("got flag bytes %d %d", pkt[6], pkt[7])
	}

	// The checksum is computed with the placeholder patched in.
	stored := binary.BigEndian.Uint32(pkt[12:16])
	scratch := append([]byte(nil), pkt...)
	binary.BigEndian.PutUint32(scratch[12:16], crcPlaceholder)
	if sum := crc32.ChecksumIEEE(scratch); sum != stored {
		t.Fatalf("got checksum %08x, want %08x", stored, sum)
	}

	var body struct {
		Params struct {
			RSAKey string `json:"rsa_key"`
		} `json:"params"`
	}
	if err := json.Unmarshal(pkt[headerLen:], &body); err != nil {
		t.Fatalf("decode probe body: %v", err)
	}
	block, _ := pem.Decode([]byte(body.Params.RSAKey))
	if block == nil || block.Type != "PUBLIC KEY" {
		t.Fatalf("probe body carries no public key: %q", body.Params.RSAKey)
	}
}

func TestBuildProbeSerialVaries(t *testing.T) {
	first, err := buildProbe()
	if err != nil {
		t.Fatalf("buildProbe: %v", err)
	}
	second, err := buildProbe()
	if err != nil {
		t.Fatalf("buildProbe: %v", err)
	}
	if string(first[8:12]) == string(second[8:12]) {
		t.Fatalf("two probes share serial %x", first[8:12])
	}
}

func TestParseReply(t *testing.T) {
	reply := func(body string) []byte {
		pkt := make([]byte, headerLen+len(body))
		pkt[0] = probeVersion
		copy(pkt[headerLen:], body)
		return pkt
	}

	device, err := parseReply(reply(`{
		"error_code": 0,
		"result": {
			"ip": "192.168.1.40",
			"mac": "28-87-BA-00-12-34",
			"device_type": "SMART.TAPOBULB",
			"device_model": "L530(EU)",
			"mgt_encrypt_schm": {"encrypt_type": "AES", "http_port": 80, "is_support_https": false}
		}
	}`))
	if err != nil {
		t.Fatalf("parseReply: %v", err)
	}
	if device.IP != "192.168.1.40" || device.DeviceModel != "L530(EU)" {
		t.Fatalf("got %+v", device)
	}
	if device.MgtEncryptSchm.HTTPPort != 80 {
		t.Fatalf("got http port %d, want 80", device.MgtEncryptSchm.HTTPPort)
	}

	if _, err := parseReply([]byte{probeVersion, 0, 0}); err == nil {
		t.Fatalf("expected a short packet to be rejected")
	}
	bad := reply(`{"error_code":0,"result":{}}`)
	bad[0] = 9
	if _, err := parseReply(bad); err == nil {
		t.Fatalf("expected an unknown version to be rejected")
	}
	if _, err := parseReply(reply(`{"error_code":-1,"result":{}}`)); err == nil {
		t.Fatalf("expected a device error to be surfaced")
	}
	if _, err := parseReply(reply(`not json`)); err == nil {
		t.Fatalf("expected garbage json to be rejected")
	}
}
