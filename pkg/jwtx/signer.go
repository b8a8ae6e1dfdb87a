package jwtx

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	Validate() error
}

// PublicSigner is a Signer whose verification key can be published in a JWKS.
type PublicSigner interface {
	Signer
	PublicJWK() JWK
}

// NewSignerEdDSA creates an EdDSA signer from PEM bytes.
// Ed25519 keys must be in PKCS8 format.
func NewSignerEdDSA(kid string, pemKey []byte) (PublicSigner, error) {
	return newEdDSASigner(kid, pemKey)
}

// NewSignerHS256 creates an HMAC-SHA256 signer. The key must carry at least
// MinHMACKeySize bytes.
func NewSignerHS256(kid string, key []byte) (Signer, error) {
	return newHS256Signer(kid, key)
}
