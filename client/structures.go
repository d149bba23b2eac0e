package client

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// request is the JSON envelope every Tapo call travels in, both as the
// outer transport frame and as the encrypted inner command.
type request struct {
	Method          string      `json:"method"`
	Params          interface{} `json:"params,omitempty"`
	RequestTimeMils int64       `json:"requestTimeMils,omitempty"`
	TerminalUUID    string      `json:"terminalUUID,omitempty"`
}

type response struct {
	ErrorCode int             `json:"error_code"`
	Result    json.RawMessage `json:"result,omitempty"`
}

type handshakeParams struct {
	Key string `json:"key"`
}

type handshakeResult struct {
	Key string `json:"key"`
}

type loginParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResult struct {
	Token string `json:"token"`
}

type passthroughParams struct {
	Request string `json:"request"`
}

type passthroughResult struct {
	Response string `json:"response"`
}

// deviceParams is the set_device_info payload. Fields are pointers so a
// brightness change does not clobber the stored color state on the bulb.
type deviceParams struct {
	DeviceOn   *bool `json:"device_on,omitempty"`
	Brightness *int  `json:"brightness,omitempty"`
	Hue        *int  `json:"hue,omitempty"`
	Saturation *int  `json:"saturation,omitempty"`
	ColorTemp  *int  `json:"color_temp,omitempty"`
}

// DeviceInfo is the snapshot returned by get_device_info. Hue, Saturation
// and ColorTemp are pointers: brightness-only models never report them.
type DeviceInfo struct {
	DeviceID        string `json:"device_id"`
	Type            string `json:"type"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"fw_ver"`
	HardwareVersion string `json:"hw_ver"`
	MAC             string `json:"mac"`
	Nickname        string `json:"nickname"`
	DeviceOn        bool   `json:"device_on"`
	Brightness      int    `json:"brightness"`
	Hue             *int   `json:"hue,omitempty"`
	Saturation      *int   `json:"saturation,omitempty"`
	ColorTemp       *int   `json:"color_temp,omitempty"`
	Overheated      bool   `json:"overheated"`
	SignalLevel     int    `json:"signal_level"`
	RSSI            int    `json:"rssi"`
}

// Device error codes observed in the wild. Anything unlisted is reported
// numerically.
var errorMessages = map[int]string{
	-1002: "incorrect request",
	-1003: "malformed request json",
	-1008: "invalid request parameter",
	-1010: "invalid public key length",
	-1012: "invalid terminal uuid",
	-1501: "invalid credentials",
	1002:  "incorrect request",
	9999:  "session expired",
}

func checkErrorCode(code int) error {
	if code == 0 {
		return nil
	}
	if msg, ok := errorMessages[code]; ok {
		return errors.Errorf("device refused request: %s (code %d)", msg, code)
	}
	return errors.Errorf("device refused request: code %d", code)
}
