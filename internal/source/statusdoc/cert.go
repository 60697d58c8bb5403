package statusdoc

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/Dicklesworthstone/edgemon/internal/events"
	"github.com/Dicklesworthstone/edgemon/internal/model"
)

// DecodeCertificates returns one item per CERTIFICATE block in data. Other
// block types (keys, CSRs) are skipped. A file with no certificate, or with a
// certificate that fails to parse, is malformed.
func DecodeCertificates(path string, data []byte) ([]events.Item, error) {
	var items []events.Item
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, malformed(path, fmt.Errorf("certificate %d: %w", len(items), err))
		}
		c := FromX509(path, cert)
		items = append(items, events.Item{Path: path, Key: c.Fingerprint, Payload: c})
	}
	if len(items) == 0 {
		return nil, malformed(path, errors.New("no PEM certificate found"))
	}
	return items, nil
}

// FromX509 converts a parsed certificate.
func FromX509(path string, cert *x509.Certificate) model.Certificate {
	return model.Certificate{
		Fingerprint: Fingerprint(cert.Raw),
		Path:        path,
		Subject:     cert.Subject.String(),
		Issuer:      cert.Issuer.String(),
		Serial:      cert.SerialNumber.Text(16),
		NotBefore:   cert.NotBefore.UTC(),
		NotAfter:    cert.NotAfter.UTC(),
		DNSNames:    cert.DNSNames,
		IsCA:        cert.IsCA,
	}
}

// Fingerprint is the hex SHA-256 of the DER bytes, truncated to 16 bytes.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:16])
}
