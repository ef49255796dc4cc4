package fixtures

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"
)

// TestPassphrase protects every bundle written by NewTLSMaterial
const TestPassphrase = "swish"

// TLSMaterial is a throwaway PKI mirroring the provider's setup: a server CA that
// signs the API certificate, and a client CA that signs the merchant certificate.
type TLSMaterial struct {
	ServerCA   *x509.Certificate
	ServerCert tls.Certificate
	ClientCA   *x509.Certificate
	ClientLeaf *x509.Certificate

	BundlePath string // PKCS#12 with the merchant key, leaf and client CA
	RootCAPath string // PEM with the server CA
	Bundle     []byte
}

type issuer struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

// NewTLSMaterial generates the PKI and writes the bundle and root CA files into t.TempDir()
func NewTLSMaterial(t *testing.T) *TLSMaterial {
	t.Helper()

	serverCA := newCA(t, "Test Swish Root CA")
	clientCA := newCA(t, "Test Swish Customer CA")

	serverKey := newKey(t)
	serverTemplate := &x509.Certificate{
		SerialNumber: serial(t),
		Subject:      pkix.Name{CommonName: "mss.cpc.getswish.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:     []string{"localhost"},
	}
	serverDER := sign(t, serverTemplate, serverCA, &serverKey.PublicKey)

	clientKey := newKey(t)
	clientTemplate := &x509.Certificate{
		SerialNumber: serial(t),
		Subject:      pkix.Name{CommonName: TestPayeeAlias, Organization: []string{"Test Merchant AB"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	clientDER := sign(t, clientTemplate, clientCA, &clientKey.PublicKey)
	clientLeaf, err := x509.ParseCertificate(clientDER)
	require.NoError(t, err)

	bundle, err := pkcs12.Modern.Encode(clientKey, clientLeaf, []*x509.Certificate{clientCA.cert}, TestPassphrase)
	require.NoError(t, err)

	dir := t.TempDir()
	bundlePath := filepath.Join(dir, "merchant.p12")
	require.NoError(t, os.WriteFile(bundlePath, bundle, 0o600))

	rootCAPath := filepath.Join(dir, "root-ca.pem")
	rootPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: serverCA.cert.Raw})
	require.NoError(t, os.WriteFile(rootCAPath, rootPEM, 0o600))

	return &TLSMaterial{
		ServerCA: serverCA.cert,
		ServerCert: tls.Certificate{
			Certificate: [][]byte{serverDER, serverCA.cert.Raw},
			PrivateKey:  serverKey,
		},
		ClientCA:   clientCA.cert,
		ClientLeaf: clientLeaf,
		BundlePath: bundlePath,
		RootCAPath: rootCAPath,
		Bundle:     bundle,
	}
}

// ServerTLSConfig requires and verifies a client certificate issued by the client CA
func (m *TLSMaterial) ServerTLSConfig() *tls.Config {
	clientCAs := x509.NewCertPool()
	clientCAs.AddCert(m.ClientCA)
	return &tls.Config{
		Certificates: []tls.Certificate{m.ServerCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    clientCAs,
		MinVersion:   tls.VersionTLS12,
	}
}

func newCA(t *testing.T, name string) issuer {
	t.Helper()
	key := newKey(t)
	template := &x509.Certificate{
		SerialNumber:          serial(t),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return issuer{cert: cert, key: key}
}

func sign(t *testing.T, template *x509.Certificate, ca issuer, pub *ecdsa.PublicKey) []byte {
	t.Helper()
	der, err := x509.CreateCertificate(rand.Reader, template, ca.cert, pub, ca.key)
	require.NoError(t, err)
	return der
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func serial(t *testing.T) *big.Int {
	t.Helper()
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	require.NoError(t, err)
	return n
}
