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

type ExtensionType uint16

const (
	ExtTypeServerName                          = ExtensionType(0)
	ExtTypeMaxFragmentLength                   = ExtensionType(1)
	ExtTypeStatusRequest                       = ExtensionType(5)
	ExtTypeSupportedGroups                     = ExtensionType(10)
	ExtTypeSignatureAlgorithms                 = ExtensionType(13)
	ExtTypeUseSrtp                             = ExtensionType(14)
	ExtTypeHeartbeat                           = ExtensionType(15)
	ExtTypeApplicationLayerProtocolNegotiation = ExtensionType(16)
	ExtTypeSignedCertificateTimestamp          = ExtensionType(18)
	ExtTypeClientCertificateType               = ExtensionType(19)
	ExtTypeServerCertificateType               = ExtensionType(20)
	ExtTypePadding                             = ExtensionType(21)
	ExtTypePresharedKey                        = ExtensionType(41)
	ExtTypeEarlyData                           = ExtensionType(42)
	ExtTypeSupportedVersions                   = ExtensionType(43)
	ExtTypeCookie                              = ExtensionType(44)
	ExtTypePskKeyExchangeModes                 = ExtensionType(45)
	ExtTypeCertificateAuthorities              = ExtensionType(47)
	ExtTypeOidFilters                          = ExtensionType(48)
	ExtTypePostHandshakeAuth                   = ExtensionType(49)
	ExtTypeSignatureAlgorithmsCert             = ExtensionType(50)
	ExtTypeKeyShare                            = ExtensionType(51)
	ExtTypeEncryptedClientHello                = ExtensionType(0xfe0d)
)

// Extension is a single decoded-to-TLV extension entry, handed to the
// ExtensionObserver regardless of whether this package also has a
// dedicated decoder for its ExtType.
type Extension struct {
	ExtType    ExtensionType
	ExtData    []byte
	ExtContext HandshakeType
}

// walkExtensions iterates the TLVs in body ({u16 ext_type; u16 ext_len;
// ext_len bytes}) and, for the extensions this package decodes, folds
// their contents into info. It invokes observer on every extension,
// known or not, with the exact body bytes.
//
// Iteration stops, without failing the overall parse, as soon as fewer
// than 4 bytes remain or a declared ext_len would overrun body — the
// header may still be useful even though the tail is truncated. A
// structurally malformed SNI, SupportedVersions, or ALPN extension is
// different: that fails the whole parse via status.
func walkExtensions(body []byte, handshakeType HandshakeType, info *FrameInfo, options ProcessingOptions, observer ExtensionObserver) (status ParsingStatus) {
	status = StatusOk
	c := newCursor(body)
	for c.len() >= 4 {
		extTypeVal, next, ok := c.readU16BE()
		if !ok {
			break
		}
		extLenVal, next2, ok := next.readU16BE()
		if !ok {
			break
		}
		extData, rest, ok := next2.take(int(extLenVal))
		if !ok {
			// Declared length overruns what remains: incomplete tail,
			// not a hard failure of the whole parse.
			raiseStatus(&status, StatusIncompleteFrame)
			break
		}
		extType := ExtensionType(extTypeVal)

		if observer != nil {
			observer(info, extType, extData)
		}

		switch extType {
		case ExtTypeServerName:
			if options.has(ProcessServerName) {
				if !decodeServerNameExtension(extData, info) {
					raiseStatus(&status, StatusInvalidFrame)
				}
			}
		case ExtTypeSupportedVersions:
			if options.has(ProcessVersions) {
				if !decodeSupportedVersionsExtension(extData, info) {
					raiseStatus(&status, StatusInvalidFrame)
				}
			}
		case ExtTypeApplicationLayerProtocolNegotiation:
			if options.has(ProcessApplicationProtocol) {
				if !decodeAlpnExtension(extData, info) {
					raiseStatus(&status, StatusInvalidFrame)
				}
			}
		}

		c = rest
	}
	return status
}

// decodeSupportedVersionsExtension decodes RFC 8446 4.2.1's
// supported_versions body: a 1-byte-length-prefixed vector of 2-byte
// versions. Every entry with major==3 contributes its minor to
// info.SupportedVersions. The outer length must exactly match what
// follows, or this fails hard.
func decodeSupportedVersionsExtension(body []byte, info *FrameInfo) bool {
	list, rest, ok := takeOpaque1(newCursor(body))
	if !ok || rest.len() != 0 {
		return false
	}
	if len(list)%2 != 0 {
		return false
	}
	for i := 0; i+2 <= len(list); i += 2 {
		major := list[i]
		minor := list[i+1]
		if major == 3 {
			info.SupportedVersions |= minorVersionBit(minor)
		}
	}
	return true
}

// decodeAlpnExtension decodes RFC 7301 3.1's ALPN body: a 2-byte-length
// vector of 1-byte-length-prefixed protocol name strings. Classifies
// "h2" and "http/1.1" by exact match; everything else is Other.
func decodeAlpnExtension(body []byte, info *FrameInfo) bool {
	list, rest, ok := takeOpaque2(newCursor(body))
	if !ok || rest.len() != 0 {
		return false
	}
	c := newCursor(list)
	for c.len() > 0 {
		name, next, ok := takeOpaque1(c)
		if !ok {
			return false
		}
		switch string(name) {
		case "h2":
			info.ApplicationProtocols |= ApplicationProtocolHttp2
		case "http/1.1":
			info.ApplicationProtocols |= ApplicationProtocolHttp11
		default:
			info.ApplicationProtocols |= ApplicationProtocolOther
		}
		c = next
	}
	return true
}

// decodeServerNameExtension decodes RFC 6066 3's ServerNameList{ opaque2
// }, where each entry is { u8 name_type; opaque2 host_name }. Only the
// first entry is read, matching the behavior this package preserves
// from its source; only name_type==0 (host_name) is recognized.
func decodeServerNameExtension(body []byte, info *FrameInfo) bool {
	list, rest, ok := takeOpaque2(newCursor(body))
	if !ok || rest.len() != 0 {
		return false
	}
	c := newCursor(list)
	nameType, c, ok := c.readU8()
	if !ok {
		return false
	}
	hostName, _, ok := takeOpaque2(c)
	if !ok {
		return false
	}
	if nameType != 0 {
		return false
	}

	// A non-UTF-8 host name is a semantic failure, not a structural
	// one: TargetName just stays unset and the overall parse continues.
	if name, ok := decodeServerName(hostName); ok {
		info.TargetName = name
		info.HasTargetName = true
	}
	return true
}
