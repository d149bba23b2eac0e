package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Bulb is what the rest of the tool programs against. *Device implements
// it; tests swap in fakes.
type Bulb interface {
	On(ctx context.Context) error
	Off(ctx context.Context) error
	SetHueSaturation(ctx context.Context, hue, saturation int) error
	SetBrightness(ctx context.Context, brightness int) error
	GetDeviceInfo(ctx context.Context) (*DeviceInfo, error)
	Close() error
}

// Device is a session with a Tapo bulb. It speaks the securePassthrough
// protocol: an RSA handshake negotiates an AES session key, then every
// command travels encrypted inside an outer JSON envelope.
type Device struct {
	address      string
	email        string
	password     string
	terminalUUID string

	httpClient *http.Client
	cipher     *sessionCipher
	token      string
}

// New creates an unconnected device handle. address is the device IP,
// optionally with a port ("192.168.1.40" talks to port 80).
func New(address, email, password string) *Device {
	jar, _ := cookiejar.New(nil)
	return &Device{
		address:      address,
		email:        email,
		password:     password,
		terminalUUID: uuid.NewString(),
		httpClient: &http.Client{
			Timeout: time.Second * 10,
			Jar:     jar,
		},
	}
}

// Connect performs the key exchange and logs in. It must be called once
// before any command.
func (d *Device) Connect(ctx context.Context) error {
	if err := d.handshake(ctx); err != nil {
		return err
	}
	return d.login(ctx)
}

func (d *Device) handshake(ctx context.Context) error {
	key, pemKey, err := generateKeyExchange()
	if err != nil {
		return err
	}
	var result handshakeResult
	if err := d.post(ctx, &request{Method: "handshake", Params: handshakeParams{Key: pemKey}}, &result); err != nil {
		return errors.Wrap(err, "handshake failed")
	}
	wrapped, err := base64.StdEncoding.DecodeString(result.Key)
	if err != nil {
		return errors.Wrap(err, "handshake reply is not valid base64")
	}
	session, err := unwrapKeyMaterial(key, wrapped)
	if err != nil {
		return err
	}
	d.cipher = session
	log.WithField("address", d.address).Debug("handshake complete")
	return nil
}

func (d *Device) login(ctx context.Context) error {
	params := loginParams{
		Username: hashUsername(d.email),
		Password: encodePassword(d.password),
	}
	raw, err := d.passthrough(ctx, "login_device", params)
	if err != nil {
		return errors.Wrap(err, "login failed")
	}
	var result loginResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return errors.Wrap(err, "could not decode login reply")
	}
	if result.Token == "" {
		return errors.New("login reply carried no token")
	}
	d.token = result.Token
	log.WithField("address", d.address).Debug("logged in")
	return nil
}

// On powers the bulb on.
func (d *Device) On(ctx context.Context) error {
	on := true
	return d.setDeviceInfo(ctx, &deviceParams{DeviceOn: &on})
}

// Off powers the bulb off.
func (d *Device) Off(ctx context.Context) error {
	on := false
	return d.setDeviceInfo(ctx, &deviceParams{DeviceOn: &on})
}

// SetHueSaturation switches the bulb into color mode. hue is in degrees,
// saturation in percent. color_temp must ride along as zero or the bulb
// stays in white mode.
func (d *Device) SetHueSaturation(ctx context.Context, hue, saturation int) error {
	ct := 0
	return d.setDeviceInfo(ctx, &deviceParams{Hue: &hue, Saturation: &saturation, ColorTemp: &ct})
}

// SetBrightness sets the brightness percentage. The device accepts 1-100.
func (d *Device) SetBrightness(ctx context.Context, brightness int) error {
	return d.setDeviceInfo(ctx, &deviceParams{Brightness: &brightness})
}

func (d *Device) setDeviceInfo(ctx context.Context, params *deviceParams) error {
	_, err := d.passthrough(ctx, "set_device_info", params)
	return err
}

// GetDeviceInfo fetches the device state snapshot. The nickname comes off
// the wire base64 encoded and is decoded here.
func (d *Device) GetDeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	raw, err := d.passthrough(ctx, "get_device_info", nil)
	if err != nil {
		return nil, err
	}
	info := &DeviceInfo{}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, errors.Wrap(err, "could not decode device info")
	}
	if decoded, err := base64.StdEncoding.DecodeString(info.Nickname); err == nil {
		info.Nickname = string(decoded)
	}
	return info, nil
}

// Close releases the session's idle connections.
func (d *Device) Close() error {
	d.httpClient.CloseIdleConnections()
	return nil
}

// Address returns the address the session talks to.
func (d *Device) Address() string {
	return d.address
}

// passthrough seals an inner command in a securePassthrough envelope,
// sends it, and returns the opened inner result.
func (d *Device) passthrough(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if d.cipher == nil {
		return nil, errors.New("device session is not connected")
	}
	inner, err := json.Marshal(&request{
		Method:          method,
		Params:          params,
		RequestTimeMils: time.Now().UnixMilli(),
		TerminalUUID:    d.terminalUUID,
	})
	if err != nil {
		return nil, err
	}
	sealed, err := d.cipher.encrypt(inner)
	if err != nil {
		return nil, err
	}
	outer := &request{
		Method: "securePassthrough",
		Params: passthroughParams{Request: base64.StdEncoding.EncodeToString(sealed)},
	}
	var wrapped passthroughResult
	if err := d.post(ctx, outer, &wrapped); err != nil {
		return nil, err
	}
	sealedReply, err := base64.StdEncoding.DecodeString(wrapped.Response)
	if err != nil {
		return nil, errors.Wrap(err, "device reply is not valid base64")
	}
	plain, err := d.cipher.decrypt(sealedReply)
	if err != nil {
		return nil, err
	}
	var reply response
	if err := json.Unmarshal(plain, &reply); err != nil {
		return nil, errors.Wrap(err, "could not decode device reply")
	}
	if err := checkErrorCode(reply.ErrorCode); err != nil {
		return nil, err
	}
	return reply.Result, nil
}

func (d *Device) post(ctx context.Context, body *request, target interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	u := d.url()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "could not create request: %s", u)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("bad status code from device: %d", resp.StatusCode)
	}
	var outer response
	if err := json.NewDecoder(resp.Body).Decode(&outer); err != nil {
		return errors.Wrap(err, "could not decode device response")
	}
	if err := checkErrorCode(outer.ErrorCode); err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	if outer.Result == nil {
		return errors.New("device reply carried no result")
	}
	return json.Unmarshal(outer.Result, target)
}

func (d *Device) url() string {
	if d.token == "" {
		return fmt.Sprintf("http://%s/app", d.address)
	}
	return fmt.Sprintf("http://%s/app?token=%s", d.address, url.QueryEscape(d.token))
}
