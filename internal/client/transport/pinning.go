// Package transport provides the pinned HTTP transport used by first-party
// clients. The server's SPKI fingerprint must match one of a small pinned
// set; a chain that validates against the system roots but matches no pin is
// still rejected.
package transport

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
)

// PinSet holds base64-encoded SHA-256 hashes of DER SubjectPublicKeyInfo
// structures. Carrying at least two pins keeps clients working across a
// server key rotation: the retiring key and its successor are both pinned
// during the rollover window.
type PinSet struct {
	pins map[string]struct{}
}

// NewPinSet builds a pin set from base64 SPKI fingerprints.
func NewPinSet(fingerprints ...string) (*PinSet, error) {
	if len(fingerprints) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "at least one certificate pin is required")
	}
	pins := make(map[string]struct{}, len(fingerprints))
	for _, fp := range fingerprints {
		raw, err := base64.StdEncoding.DecodeString(fp)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.KindConfiguration, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, fmt.Sprintf("pin %q is not valid base64", fp))
		}
		if len(raw) != sha256.Size {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("pin %q is not a SHA-256 digest", fp))
		}
		pins[fp] = struct{}{}
	}
	return &PinSet{pins: pins}, nil
}

// Fingerprint computes the base64 SPKI fingerprint of a certificate, in the
// same form NewPinSet accepts. Exposed so deploy tooling can print the pin
// for a freshly issued certificate.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Contains reports whether the certificate's SPKI hash is pinned.
func (p *PinSet) Contains(cert *x509.Certificate) bool {
	_, ok := p.pins[Fingerprint(cert)]
	return ok
}

// verifyPeer checks every presented certificate against the pin set. Matching
// any certificate in the chain accepts the connection, so operators may pin
// either the leaf or an intermediate.
func (p *PinSet) verifyPeer(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			continue
		}
		if p.Contains(cert) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrCertificateMismatch, "")
}

// TLSConfig returns a tls.Config enforcing the pin set on top of standard
// chain verification.
func (p *PinSet) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:            tls.VersionTLS12,
		VerifyPeerCertificate: p.verifyPeer,
	}
}

// NewPinnedClient returns an HTTP client whose every TLS handshake enforces
// the pin set.
func NewPinnedClient(pins *PinSet, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig:     pins.TLSConfig(),
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}
