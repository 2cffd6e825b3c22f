package checker

import (
	"context"
	"crypto/tls"
	"crypto/x509/pkix"
	"fmt"
	"net"
	"strconv"
	"time"

	sharederrors "github.com/khanhnv2901/webharden/internal/shared/errors"
)

// versionSSL30 represents the legacy SSL 3.0 protocol version (0x0300).
// Defined locally so we can report SSL 3.0 without referencing the
// deprecated tls.VersionSSL30 symbol.
const versionSSL30 uint16 = 0x0300

// certTimeLayout mirrors the textual notAfter form certificates are usually
// displayed in, e.g. "Jun  1 12:00:00 2030 GMT".
const certTimeLayout = "Jan _2 15:04:05 2006 GMT"

// issuerAttributeNames maps DN attribute OIDs to their conventional names.
var issuerAttributeNames = map[string]string{
	"2.5.4.3":              "commonName",
	"2.5.4.5":              "serialNumber",
	"2.5.4.6":              "countryName",
	"2.5.4.7":              "localityName",
	"2.5.4.8":              "stateOrProvinceName",
	"2.5.4.9":              "streetAddress",
	"2.5.4.10":             "organizationName",
	"2.5.4.11":             "organizationalUnitName",
	"2.5.4.17":             "postalCode",
	"1.2.840.113549.1.9.1": "emailAddress",
}

// TLSInspector performs a direct handshake, independent of the HTTP fetch, to
// read protocol and certificate metadata.
type TLSInspector struct {
	Timeout   time.Duration
	TLSConfig *tls.Config
}

// Inspect dials host:port over TLS. On failure the returned info is marked
// unavailable and the error is a *TLSProbeError.
func (i *TLSInspector) Inspect(ctx context.Context, host string, port int) (HTTPSInfo, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	cfg := cloneTLSConfig(i.TLSConfig)
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}

	if i.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.Timeout)
		defer cancel()
	}

	dialer := &tls.Dialer{Config: cfg, NetDialer: &net.Dialer{Timeout: i.Timeout}}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return unavailableInfo(err), &TLSProbeError{Address: addr, Err: err}
	}
	defer func() {
		_ = nc.Close()
	}()

	conn, ok := nc.(*tls.Conn)
	if !ok {
		return unavailableInfo(sharederrors.ErrNotTLS), &TLSProbeError{Address: addr, Err: sharederrors.ErrNotTLS}
	}

	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return unavailableInfo(sharederrors.ErrNoCertificate), &TLSProbeError{Address: addr, Err: sharederrors.ErrNoCertificate}
	}
	cert := state.PeerCertificates[0]

	version := tlsVersionString(state.Version)
	notAfter := cert.NotAfter.UTC().Format(certTimeLayout)
	return HTTPSInfo{
		Status:     ProbeOK,
		Issuer:     issuerFields(cert.Issuer),
		NotAfter:   &notAfter,
		TLSVersion: &version,
	}, nil
}

func unavailableInfo(err error) HTTPSInfo {
	return HTTPSInfo{Status: ProbeUnavailable, Error: err.Error()}
}

// issuerFields flattens the issuer DN. Later attributes of the same type win;
// unknown attribute types are keyed by their dotted OID.
func issuerFields(name pkix.Name) map[string]string {
	if len(name.Names) == 0 {
		return nil
	}
	fields := make(map[string]string, len(name.Names))
	for _, atv := range name.Names {
		key := atv.Type.String()
		if known, ok := issuerAttributeNames[key]; ok {
			key = known
		}
		fields[key] = fmt.Sprint(atv.Value)
	}
	return fields
}

// tlsVersionString converts TLS version constant to string
func tlsVersionString(version uint16) string {
	switch version {
	case versionSSL30:
		return "SSL 3.0"
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return fmt.Sprintf("Unknown (0x%04x)", version)
	}
}
