package swish

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"software.sslmate.com/src/go-pkcs12"

	pkgerrors "github.com/kevin07696/swish-payment-service/pkg/errors"
)

// ClientIdentity is the merchant certificate, its private key and the issuing chain
// decoded from a PKCS#12 bundle. It is immutable once loaded.
type ClientIdentity struct {
	Certificate tls.Certificate     // leaf followed by the bundled CA certificates
	Leaf        *x509.Certificate   // merchant certificate
	CACerts     []*x509.Certificate // issuing chain shipped in the bundle
}

// NotAfter returns the expiry of the merchant certificate
func (id *ClientIdentity) NotAfter() time.Time {
	return id.Leaf.NotAfter
}

// LoadIdentity reads and decrypts a PKCS#12 bundle from disk
func LoadIdentity(bundlePath, passphrase string) (*ClientIdentity, error) {
	data, err := os.ReadFile(bundlePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, pkgerrors.NewCredentialError("BUNDLE_NOT_FOUND", fmt.Sprintf("credential bundle %s does not exist", bundlePath), err)
		}
		return nil, pkgerrors.NewCredentialError("BUNDLE_UNREADABLE", fmt.Sprintf("failed to read credential bundle %s", bundlePath), err)
	}

	return ParseIdentity(data, passphrase)
}

// ParseIdentity decrypts an in-memory PKCS#12 bundle
func ParseIdentity(bundle []byte, passphrase string) (*ClientIdentity, error) {
	key, leaf, caCerts, err := pkcs12.DecodeChain(bundle, passphrase)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, pkgerrors.NewCredentialError("BAD_PASSPHRASE", "credential bundle passphrase is incorrect", err)
		}
		return nil, pkgerrors.NewCredentialError("BUNDLE_INVALID", "failed to decode credential bundle", err)
	}
	if leaf == nil || key == nil {
		return nil, pkgerrors.NewCredentialError("BUNDLE_INCOMPLETE", "credential bundle has no certificate or key", nil)
	}

	chain := make([][]byte, 0, len(caCerts)+1)
	chain = append(chain, leaf.Raw)
	for _, ca := range caCerts {
		chain = append(chain, ca.Raw)
	}

	return &ClientIdentity{
		Certificate: tls.Certificate{
			Certificate: chain,
			PrivateKey:  key,
			Leaf:        leaf,
		},
		Leaf:    leaf,
		CACerts: caCerts,
	}, nil
}
