package protocol

import "golang.org/x/crypto/blake2b"

// Authenticator checks credentials against a shared secret in constant
// time. Both sides are reduced to fixed-size digests first, so the
// comparison loop never depends on the length or content of the input.
type Authenticator struct {
	digest [blake2b.Size256]byte
	length int
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		digest: blake2b.Sum256([]byte(secret)),
		length: len(secret),
	}
}

// SecretLen is the byte length of the configured secret.
func (a *Authenticator) SecretLen() int { return a.length }

// Check reports whether credential equals the secret.
func (a *Authenticator) Check(credential string) bool {
	d := blake2b.Sum256([]byte(credential))

	var acc byte
	for i := range d {
		acc |= d[i] ^ a.digest[i]
	}
	return acc == 0
}
