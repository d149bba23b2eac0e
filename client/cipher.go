package client

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"

	"github.com/pkg/errors"
)

// sessionCipher holds the AES-128-CBC key material negotiated during the
// handshake and seals/opens securePassthrough payloads with it.
type sessionCipher struct {
	key []byte
	iv  []byte
}

func newSessionCipher(material []byte) (*sessionCipher, error) {
	if len(material) != 32 {
		return nil, errors.Errorf("expected 32 bytes of key material, got %d", len(material))
	}
	return &sessionCipher{key: material[:16], iv: material[16:32]}, nil
}

func (s *sessionCipher) encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plain, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, s.iv).CryptBlocks(out, padded)
	return out, nil
}

func (s *sessionCipher) decrypt(sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) == 0 || len(sealed)%block.BlockSize() != 0 {
		return nil, errors.Errorf("ciphertext length %d is not a multiple of the block size", len(sealed))
	}
	out := make([]byte, len(sealed))
	cipher.NewCBCDecrypter(block, s.iv).CryptBlocks(out, sealed)
	return pkcs7Unpad(out, block.BlockSize())
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}

// generateKeyExchange creates the throwaway RSA key pair offered to the
// device during the handshake, returning it with the PEM block the device
// expects in the handshake params.
func generateKeyExchange() (*rsa.PrivateKey, string, error) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		return nil, "", errors.Wrap(err, "could not generate handshake key")
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, "", errors.Wrap(err, "could not encode handshake key")
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return key, string(pemKey), nil
}

// unwrapKeyMaterial decrypts the device's handshake reply into a session
// cipher. The reply is the RSA-wrapped concatenation of key and IV.
func unwrapKeyMaterial(key *rsa.PrivateKey, wrapped []byte) (*sessionCipher, error) {
	material, err := rsa.DecryptPKCS1v15(nil, key, wrapped)
	if err != nil {
		return nil, errors.Wrap(err, "could not decrypt handshake reply")
	}
	return newSessionCipher(material)
}

// hashUsername encodes an account email the way login_device wants it:
// base64 over the hex form of its SHA1 digest.
func hashUsername(email string) string {
	sum := sha1.Sum([]byte(email))
	hexed := hex.EncodeToString(sum[:])
	return base64.StdEncoding.EncodeToString([]byte(hexed))
}

func encodePassword(password string) string {
	return base64.StdEncoding.EncodeToString([]byte(password))
}
