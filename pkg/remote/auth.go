package remote

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// ChallengeSize is the length of the server's random challenge.
const ChallengeSize = 32

var authInfo = []byte("paramtree-auth-v1")

func newChallenge() ([]byte, error) {
	c := make([]byte, ChallengeSize)
	if _, err := rand.Read(c); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	return c, nil
}

// computeMAC proves knowledge of psk for one challenge. The MAC key is
// derived per challenge with HKDF-SHA256; the MAC itself is HMAC-SHA3-256
// over the client name.
func computeMAC(psk, challenge []byte, client string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, psk, challenge, authInfo), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	mac := hmac.New(sha3.New256, key)
	mac.Write([]byte(client))
	return mac.Sum(nil), nil
}

func verifyMAC(psk, challenge []byte, client string, got []byte) bool {
	want, err := computeMAC(psk, challenge, client)
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}
