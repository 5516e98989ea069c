package certs

import (
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSelfSigned(t *testing.T) {
	certPEM, keyPEM, err := SelfSigned("Example IdP")
	require.NoError(t, err)

	block, _ := pem.Decode([]byte(certPEM))
	require.NotNil(t, block)
	require.Equal(t, "CERTIFICATE", block.Type)

	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	require.Equal(t, []string{"GB"}, cert.Subject.Country)
	require.Equal(t, []string{"ssoforge"}, cert.Subject.Organization)
	require.Equal(t, []string{"Example IdP"}, cert.Subject.OrganizationalUnit)
	require.True(t, cert.NotAfter.After(time.Now().AddDate(19, 0, 0)))

	keyBlock, _ := pem.Decode([]byte(keyPEM))
	require.NotNil(t, keyBlock)
	require.Equal(t, "RSA PRIVATE KEY", keyBlock.Type)
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	require.NoError(t, err)
	require.NoError(t, cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature))
	require.Equal(t, &key.PublicKey, cert.PublicKey)
}

func TestSelfSignedUniqueSerials(t *testing.T) {
	a, _, err := SelfSigned("One")
	require.NoError(t, err)
	b, _, err := SelfSigned("Two")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
