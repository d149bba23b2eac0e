package main

import (
	"bufio"
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/kr/pretty"
)

// bulbsim is a fake Tapo bulb for poking at tapo-pywal without hardware.
// It speaks the same handshake, login_device and securePassthrough
// exchange a real bulb does. Point device_ip at its listen address.

var (
	addr     = flag.String("addr", "127.0.0.1:8089", "listen address")
	nickname = flag.String("nickname", "Desk Lamp", "device nickname")
	model    = flag.String("model", "L530 Series", "device model")
	dimmer   = flag.Bool("dimmer", false, "simulate a brightness-only bulb")
	email    = flag.String("email", "", "require this account email (default: accept any)")
	password = flag.String("password", "", "require this account password (default: accept any)")
)

type bulbState struct {
	DeviceOn   bool
	Brightness int
	Hue        int
	Saturation int
	ColorTemp  int
}

type session struct {
	key   []byte
	iv    []byte
	token string
}

type simulator struct {
	mu       sync.Mutex
	deviceID string
	state    bulbState
	sessions map[string]*session
}

type envelope struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type result map[string]interface{}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		pretty.Println(err)
	}
}

func (s *simulator) handle(w http.ResponseWriter, r *http.Request) {
	var req envelope
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, result{"error_code": -1003})
		return
	}
	switch req.Method {
	case "handshake":
		s.handshake(w, req.Params)
	case "securePassthrough":
		s.passthrough(w, r, req.Params)
	default:
		writeJSON(w, result{"error_code": -1002})
	}
}

func (s *simulator) handshake(w http.ResponseWriter, params json.RawMessage) {
	var p struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		writeJSON(w, result{"error_code": -1003})
		return
	}
	block, _ := pem.Decode([]byte(p.Key))
	if block == nil {
		writeJSON(w, result{"error_code": -1010})
		return
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		writeJSON(w, result{"error_code": -1010})
		return
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		writeJSON(w, result{"error_code": -1010})
		return
	}

	material := make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		panic(err)
	}
	wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, pub, material)
	if err != nil {
		writeJSON(w, result{"error_code": -1010})
		return
	}

	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		panic(err)
	}
	cookie := hex.EncodeToString(id)

	s.mu.Lock()
	s.sessions[cookie] = &session{key: material[:16], iv: material[16:32]}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "TP_SESSIONID", Value: cookie})
	writeJSON(w, result{
		"error_code": 0,
		"result":     result{"key": base64.StdEncoding.EncodeToString(wrapped)},
	})
}

func (s *simulator) passthrough(w http.ResponseWriter, r *http.Request, params json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cookie, err := r.Cookie("TP_SESSIONID")
	if err != nil {
		writeJSON(w, result{"error_code": 9999})
		return
	}
	sess := s.sessions[cookie.Value]
	if sess == nil {
		writeJSON(w, result{"error_code": 9999})
		return
	}

	var p struct {
		Request string `json:"request"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		writeJSON(w, result{"error_code": -1003})
		return
	}
	sealed, err := base64.StdEncoding.DecodeString(p.Request)
	if err != nil {
		writeJSON(w, result{"error_code": -1003})
		return
	}
	plain, err := decrypt(sess.key, sess.iv, sealed)
	if err != nil {
		writeJSON(w, result{"error_code": -1003})
		return
	}

	var inner envelope
	if err := json.Unmarshal(plain, &inner); err != nil {
		writeJSON(w, result{"error_code": -1003})
		return
	}
	reply := s.dispatch(r, sess, &inner)

	plainReply, err := json.Marshal(reply)
	if err != nil {
		writeJSON(w, result{"error_code": -1002})
		return
	}
	sealedReply, err := encrypt(sess.key, sess.iv, plainReply)
	if err != nil {
		writeJSON(w, result{"error_code": -1002})
		return
	}
	writeJSON(w, result{
		"error_code": 0,
		"result":     result{"response": base64.StdEncoding.EncodeToString(sealedReply)},
	})
}

func (s *simulator) dispatch(r *http.Request, sess *session, inner *envelope) result {
	if inner.Method != "login_device" {
		if sess.token == "" || r.URL.Query().Get("token") != sess.token {
			return result{"error_code": 9999}
		}
	}
	switch inner.Method {
	case "login_device":
		return s.login(sess, inner.Params)
	case "get_device_info":
		return s.deviceInfo()
	case "set_device_info":
		return s.setDeviceInfo(inner.Params)
	default:
		return result{"error_code": -1002}
	}
}

func (s *simulator) login(sess *session, params json.RawMessage) result {
	var p struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return result{"error_code": -1003}
	}
	if *email != "" || *password != "" {
		sum := sha1.Sum([]byte(*email))
		wantUser := base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(sum[:])))
		wantPass := base64.StdEncoding.EncodeToString([]byte(*password))
		if p.Username != wantUser || p.Password != wantPass {
			return result{"error_code": -1501}
		}
	}
	sess.token = uuid.NewString()
	return result{"error_code": 0, "result": result{"token": sess.token}}
}

func (s *simulator) deviceInfo() result {
	info := result{
		"device_id":    s.deviceID,
		"type":         "SMART.TAPOBULB",
		"model":        *model,
		"fw_ver":       "3.0.1 Build 230721",
		"hw_ver":       "3.0",
		"mac":          "28-87-BA-00-12-34",
		"nickname":     base64.StdEncoding.EncodeToString([]byte(*nickname)),
		"device_on":    s.state.DeviceOn,
		"brightness":   s.state.Brightness,
		"overheated":   false,
		"signal_level": 2,
		"rssi":         -44,
	}
	if !*dimmer {
		info["hue"] = s.state.Hue
		info["saturation"] = s.state.Saturation
		info["color_temp"] = s.state.ColorTemp
	}
	return result{"error_code": 0, "result": info}
}

func (s *simulator) setDeviceInfo(params json.RawMessage) result {
	var p struct {
		DeviceOn   *bool `json:"device_on"`
		Brightness *int  `json:"brightness"`
		Hue        *int  `json:"hue"`
		Saturation *int  `json:"saturation"`
		ColorTemp  *int  `json:"color_temp"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return result{"error_code": -1003}
	}
	if p.Brightness != nil && (*p.Brightness < 1 || *p.Brightness > 100) {
		return result{"error_code": -1008}
	}
	if p.Hue != nil && (*p.Hue < 0 || *p.Hue > 360) {
		return result{"error_code": -1008}
	}
	if p.Saturation != nil && (*p.Saturation < 0 || *p.Saturation > 100) {
		return result{"error_code": -1008}
	}
	if p.DeviceOn != nil {
		s.state.DeviceOn = *p.DeviceOn
	}
	if p.Brightness != nil {
		s.state.Brightness = *p.Brightness
	}
	if p.Hue != nil {
		s.state.Hue = *p.Hue
	}
	if p.Saturation != nil {
		s.state.Saturation = *p.Saturation
	}
	if p.ColorTemp != nil {
		s.state.ColorTemp = *p.ColorTemp
	}
	return result{"error_code": 0, "result": result{}}
}

func encrypt(key, iv, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	n := block.BlockSize() - len(plain)%block.BlockSize()
	padded := append(plain, bytes.Repeat([]byte{byte(n)}, n)...)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func decrypt(key, iv, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) == 0 || len(sealed)%block.BlockSize() != 0 {
		return nil, errors.New("bad ciphertext length")
	}
	out := make([]byte, len(sealed))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, sealed)
	n := int(out[len(out)-1])
	if n == 0 || n > block.BlockSize() || n > len(out) {
		return nil, errors.New("bad padding")
	}
	return out[:len(out)-n], nil
}

func main() {
	flag.Parse()

	id := make([]byte, 20)
	if _, err := rand.Read(id); err != nil {
		panic(err)
	}
	sim := &simulator{
		deviceID: hex.EncodeToString(id),
		state: bulbState{
			DeviceOn:   true,
			Brightness: 100,
			ColorTemp:  2700,
		},
		sessions: map[string]*session{},
	}

	go func() {
		http.HandleFunc("/app", sim.handle)
		fmt.Printf("bulbsim listening on %s\n", *addr)
		if err := http.ListenAndServe(*addr, nil); err != nil {
			panic(err)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	var text string
	for text != "q" { // break the loop if text == "q"
		fmt.Print("Press enter for state, q to quit: ")
		if !scanner.Scan() {
			break
		}
		text = scanner.Text()
		if text != "q" {
			sim.mu.Lock()
			pretty.Println(sim.state)
			sim.mu.Unlock()
		}
	}
}
