package appview

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptCost            = 16384
	scryptBlockSize       = 8
	scryptParallelization = 1
	scryptKeyLen          = 64
)

var ErrInvalidHandleOrPassword = fmt.Errorf("invalid handle or password")

func encodePassword(password string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	salt := hex.EncodeToString(buf)
	dk, err := scrypt.Key([]byte(password), []byte(salt), scryptCost, scryptBlockSize, scryptParallelization, scryptKeyLen)
	if err != nil {
		return "", err
	}
	return salt + ":" + hex.EncodeToString(dk), nil
}

func verifyPassword(storedHash, password string) error {
	parts := strings.Split(storedHash, ":")
	if len(parts) != 2 {
		return ErrInvalidHandleOrPassword
	}
	salt, want := parts[0], parts[1]

	dk, err := scrypt.Key([]byte(password), []byte(salt), scryptCost, scryptBlockSize, scryptParallelization, scryptKeyLen)
	if err != nil {
		return err
	}

	got := make([]byte, hex.EncodedLen(len(dk)))
	hex.Encode(got, dk)
	if subtle.ConstantTimeCompare([]byte(want), got) != 1 {
		return ErrInvalidHandleOrPassword
	}
	return nil
}
