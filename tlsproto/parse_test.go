// Copyright (C) 2024  Naomi Kirby
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tlsproto

import (
	"bytes"
	"testing"
)

// S1: a handshake record whose declared length leaves no room for even
// a minimal hello body reads as IncompleteFrame.
func TestTryParseTruncatedHello(t *testing.T) {
	frame := []byte{0x16, 0x03, 0x01, 0x00, 0x05, 0x01, 0x00, 0x00, 0x01, 0x03}
	info, complete := TryParse(frame, ProcessAll, nil)
	if err := compareInteger(int(info.Status), int(StatusIncompleteFrame)); err != nil {
		t.Errorf("status: %v", err)
	}
	if complete {
		t.Errorf("expected complete=false")
	}
}

// S2: a minimal TLS1.2 ClientHello carrying SNI and ALPN.
func TestTryParseClientHelloSniAndAlpn(t *testing.T) {
	extensions := []testExtension{
		{ExtTypeServerName, sniExtension("example.com")},
		{ExtTypeApplicationLayerProtocolNegotiation, alpnExtension("h2", "http/1.1")},
	}
	record := buildClientHelloRecord(VersionTls12, VersionTls12, []uint16{0xc02f}, extensions)

	info, complete := TryParse(record, ProcessAll, nil)
	if err := compareInteger(int(info.Status), int(StatusOk)); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !complete {
		t.Fatalf("expected complete=true")
	}
	if !info.HasTargetName {
		t.Fatalf("expected a target name")
	}
	if err := compareStrings(info.TargetName, "example.com"); err != nil {
		t.Errorf("target name: %v", err)
	}
	wantAlpn := ApplicationProtocolHttp2 | ApplicationProtocolHttp11
	if err := compareInteger(uint8(info.ApplicationProtocols), uint8(wantAlpn)); err != nil {
		t.Errorf("alpn: %v", err)
	}
	if !info.SupportedVersions.Has(VersionTls12) {
		t.Errorf("expected supported_versions to include TLS1.2, got %s", info.SupportedVersions)
	}
	if len(info.CipherSuites) != 1 || info.CipherSuites[0] != 0xc02f {
		t.Errorf("unexpected cipher suites: %v", info.CipherSuites)
	}
}

// S3: a TLS1.3 ClientHello whose record/legacy version is TLS1.2 but
// whose supported_versions extension lists both TLS1.3 and TLS1.2.
func TestTryParseSupportedVersionsAccumulates(t *testing.T) {
	extensions := []testExtension{
		{ExtTypeSupportedVersions, supportedVersionsExtension(VersionTls13, VersionTls12)},
	}
	record := buildClientHelloRecord(VersionTls12, VersionTls12, []uint16{0x1301}, extensions)

	info, complete := TryParse(record, ProcessVersions, nil)
	if !complete {
		t.Fatalf("expected complete=true, status=%s", info.Status)
	}
	if !info.SupportedVersions.Has(VersionTls13) {
		t.Errorf("expected TLS1.3 bit set, got %s", info.SupportedVersions)
	}
	if !info.SupportedVersions.Has(VersionTls12) {
		t.Errorf("expected TLS1.2 bit set, got %s", info.SupportedVersions)
	}
}

// Property 2: supported_versions after a full parse is a superset of
// what's inferable from the record header alone.
func TestMonotoneVersionAccumulation(t *testing.T) {
	extensions := []testExtension{
		{ExtTypeSupportedVersions, supportedVersionsExtension(VersionTls13)},
	}
	record := buildClientHelloRecord(VersionTls12, VersionTls12, []uint16{0x1301}, extensions)

	headerOnly, _ := tryReadRecordHeader(record)
	full, complete := TryParse(record, ProcessVersions, nil)
	if !complete {
		t.Fatalf("expected complete parse")
	}
	if full.SupportedVersions&versionBit(headerOnly.Version) == 0 {
		t.Errorf("full parse lost the header-derived version bit")
	}
	if !full.SupportedVersions.Has(VersionTls13) {
		t.Errorf("full parse missing the extension-derived version bit")
	}
}

// S4: SSL2.0 unified ClientHello.
func TestTryParseSsl2UnifiedHello(t *testing.T) {
	frame := []byte{0x80, 0x2e, 0x01, 0x03, 0x01}
	info, complete := TryParse(frame, ProcessAll, nil)
	if !complete {
		t.Fatalf("expected complete=true")
	}
	if info.HandshakeType != HandshakeTypeClientHello {
		t.Errorf("expected ClientHello handshake type")
	}
	if !info.SupportedVersions.Has(VersionSsl20) || !info.SupportedVersions.Has(VersionTls10) {
		t.Errorf("expected SSL2.0|TLS1.0, got %s", info.SupportedVersions)
	}
}

// S5 / S6: alert decode and the fixed-byte alert encode round-trip for
// every supported protocol_version alert. The SSL3.0 record carries
// handshake_failure (0x28) rather than protocol_version (0x46).
func TestAlertRoundTrip(t *testing.T) {
	versions := []ProtocolVersion{VersionSsl30, VersionTls10, VersionTls11, VersionTls12, VersionTls13}
	for _, v := range versions {
		wantDesc := AlertProtocolVersion
		if v == VersionSsl30 {
			wantDesc = AlertHandshakeFailure
		}
		frame := CreateAlertFrame(v, AlertProtocolVersion)
		if frame == nil {
			t.Fatalf("CreateAlertFrame(%s) returned nil", v)
		}
		level, desc, ok := TryGetAlertInfo(frame)
		if !ok {
			t.Fatalf("TryGetAlertInfo(%x) failed", frame)
		}
		if level != AlertLevelFatal {
			t.Errorf("%s: expected fatal level, got %s", v, level)
		}
		if desc != wantDesc {
			t.Errorf("%s: expected %s description, got %s", v, wantDesc, desc)
		}
	}
}

func TestCreateAlertFrameFixedBytes(t *testing.T) {
	got := CreateAlertFrame(VersionTls13, AlertProtocolVersion)
	want := []byte{0x15, 0x03, 0x04, 0x00, 0x02, 0x02, 0x46}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x want %x", got, want)
	}
}

func TestDecodeAlertRecord(t *testing.T) {
	frame := []byte{0x15, 0x03, 0x03, 0x00, 0x02, 0x02, 0x46}
	level, desc, ok := TryGetAlertInfo(frame)
	if !ok {
		t.Fatalf("expected decode success")
	}
	if level != AlertLevelFatal || desc != AlertProtocolVersion {
		t.Errorf("got level=%s desc=%s", level, desc)
	}
}

// Property 5: ALPN classification.
func TestAlpnClassification(t *testing.T) {
	extensions := []testExtension{
		{ExtTypeApplicationLayerProtocolNegotiation, alpnExtension("h2", "http/1.1", "spdy/3")},
	}
	record := buildClientHelloRecord(VersionTls12, VersionTls12, []uint16{0x1301}, extensions)
	info, complete := TryParse(record, ProcessApplicationProtocol, nil)
	if !complete {
		t.Fatalf("expected complete parse, status=%s", info.Status)
	}
	want := ApplicationProtocolHttp2 | ApplicationProtocolHttp11 | ApplicationProtocolOther
	if info.ApplicationProtocols != want {
		t.Errorf("got %s want %s", info.ApplicationProtocols, want)
	}
}

// Property 7: the extension observer sees every extension exactly once,
// in wire order, with the exact body bytes — including ones this
// package has no dedicated decoder for.
func TestExtensionObserverCoversEveryExtension(t *testing.T) {
	unknownBody := []byte{0xde, 0xad, 0xbe, 0xef}
	extensions := []testExtension{
		{ExtTypeServerName, sniExtension("example.com")},
		{ExtensionType(0x9999), unknownBody},
		{ExtTypeApplicationLayerProtocolNegotiation, alpnExtension("h2")},
	}
	record := buildClientHelloRecord(VersionTls12, VersionTls12, []uint16{0x1301}, extensions)

	var seen []ExtensionType
	var unknownSeen []byte
	_, complete := TryParse(record, ProcessAll, func(info *FrameInfo, extType ExtensionType, body []byte) {
		seen = append(seen, extType)
		if extType == ExtensionType(0x9999) {
			unknownSeen = append([]byte{}, body...)
		}
	})
	if !complete {
		t.Fatalf("expected complete parse")
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 extensions observed, got %d: %v", len(seen), seen)
	}
	if seen[0] != ExtTypeServerName || seen[1] != ExtensionType(0x9999) || seen[2] != ExtTypeApplicationLayerProtocolNegotiation {
		t.Errorf("unexpected observation order: %v", seen)
	}
	if !bytes.Equal(unknownSeen, unknownBody) {
		t.Errorf("unknown extension body mismatch: got %x want %x", unknownSeen, unknownBody)
	}
}

// Property 1 / 3: truncating a valid frame at every byte boundary never
// reads out of bounds and never reports Ok for a frame that isn't
// actually complete.
func TestNoOverReadOnTruncation(t *testing.T) {
	extensions := []testExtension{
		{ExtTypeServerName, sniExtension("example.com")},
		{ExtTypeApplicationLayerProtocolNegotiation, alpnExtension("h2")},
	}
	record := buildClientHelloRecord(VersionTls12, VersionTls12, []uint16{0xc02f, 0xc030}, extensions)

	for n := 0; n < len(record); n++ {
		prefix := record[:n]
		info, complete := TryParse(prefix, ProcessAll, nil)
		if complete && info.Status != StatusOk {
			t.Fatalf("n=%d: complete=true but status=%s", n, info.Status)
		}
		if info.Status == StatusOk && !complete {
			t.Fatalf("n=%d: status Ok but complete=false", n)
		}
		if n < len(record) && complete {
			t.Fatalf("n=%d: truncated prefix falsely reported complete", n)
		}
	}
}

// Property 3: an exact-length mismatch in the extension list must never
// parse as Ok.
func TestExtensionLengthMismatchFails(t *testing.T) {
	extensions := []testExtension{
		{ExtTypeServerName, sniExtension("example.com")},
	}
	record := buildClientHelloRecord(VersionTls12, VersionTls12, []uint16{0xc02f}, extensions)

	// Corrupt the outer extension-list length (2 bytes right before the
	// extension TLVs) to no longer match the actual remaining bytes.
	mutated := append([]byte{}, record...)
	extLenOffset := len(record) - 4 - len(extensions[0].body) - 2
	mutated[extLenOffset] = 0xff
	mutated[extLenOffset+1] = 0xff

	info, complete := TryParse(mutated, ProcessAll, nil)
	if complete {
		t.Fatalf("expected complete=false for mismatched extension length")
	}
	if info.Status == StatusOk {
		t.Fatalf("expected a non-Ok status, got Ok")
	}
}

func TestGetFrameSize(t *testing.T) {
	record := buildClientHelloRecord(VersionTls12, VersionTls12, []uint16{0xc02f}, nil)
	if got := GetFrameSize(record); got != len(record) {
		t.Errorf("got %d want %d", got, len(record))
	}
	if got := GetFrameSize(record[:2]); got != -1 {
		t.Errorf("expected -1 on a too-short buffer, got %d", got)
	}
}

func TestGetServerName(t *testing.T) {
	extensions := []testExtension{
		{ExtTypeServerName, sniExtension("example.com")},
	}
	record := buildClientHelloRecord(VersionTls12, VersionTls12, []uint16{0xc02f}, extensions)
	name, ok := GetServerName(record)
	if !ok {
		t.Fatalf("expected a server name")
	}
	if err := compareStrings(name, "example.com"); err != nil {
		t.Errorf("%v", err)
	}
}

func TestUnsupportedContentType(t *testing.T) {
	frame := []byte{byte(ContentTypeApplicationData), 0x03, 0x03, 0x00, 0x01, 0x00}
	info, complete := TryParse(frame, ProcessAll, nil)
	if complete {
		t.Fatalf("expected complete=false")
	}
	if info.Status != StatusUnsupportedFrame {
		t.Errorf("expected UnsupportedFrame, got %s", info.Status)
	}
}

func TestServerHelloWithoutExtensionsFails(t *testing.T) {
	var hello []byte
	hello = put16(hello, uint16(VersionTls12))
	hello = append(hello, make([]byte, 32)...)
	// Pad the session id so the body clears minHelloBodyLength (44) on
	// its own, with no extensions present, the way the quirk requires.
	hello = opaque1(hello, make([]byte, 6))
	hello = put16(hello, 0xc02f)
	hello = append(hello, 0x00)

	handshake := []byte{byte(HandshakeTypeServerHello)}
	handshake = put24(handshake, len(hello))
	handshake = append(handshake, hello...)

	record := []byte{byte(ContentTypeHandshake)}
	record = put16(record, uint16(VersionTls12))
	record = put16(record, uint16(len(handshake)))
	record = append(record, handshake...)

	info, complete := TryParse(record, ProcessAll, nil)
	if complete {
		t.Fatalf("expected the documented quirk: ServerHello with no extensions fails")
	}
	if info.Status != StatusInvalidFrame {
		t.Errorf("expected InvalidFrame, got %s", info.Status)
	}
}
