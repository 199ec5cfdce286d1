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

// minorToVersion maps a TLS/SSL3-family minor-version byte to its
// ProtocolVersion tag: 4->TLS1.3, 3->TLS1.2, 2->TLS1.1, 1->TLS1.0,
// 0->SSL3.0, anything else has no corresponding tag.
func minorToVersion(minor uint8) ProtocolVersion {
	switch minor {
	case 4:
		return VersionTls13
	case 3:
		return VersionTls12
	case 2:
		return VersionTls11
	case 1:
		return VersionTls10
	case 0:
		return VersionSsl30
	default:
		return VersionNone
	}
}

// ssl2HelloMinLength and ssl2HelloMaxLength bound the "practical sanity
// window" for an SSL2 unified ClientHello's derived record length.
const (
	ssl2HelloMinLength = 20
	ssl2HelloMaxLength = 1000
)

// tryReadRecordHeader consumes either a 5-byte TLS/SSL3-family record
// prefix or an SSL2 unified-ClientHello prefix from frame. It never
// touches bytes beyond len(frame).
//
// ok reports whether a header was recognized at all. It is false, with
// Length == -1, both when frame is too short to tell and when its shape
// is not recognized.
func tryReadRecordHeader(frame []byte) (hdr RecordHeader, ok bool) {
	if len(frame) < 5 {
		return RecordHeader{ContentType: ContentTypeInvalid, Version: 0, Length: -1}, false
	}

	// SSL3/TLS family: byte[1] is always the major version 3.
	if frame[1] == 3 {
		length := int32(frame[3])<<8 | int32(frame[4])
		return RecordHeader{
			ContentType: ContentType(frame[0]),
			Version:     minorToVersion(frame[2]),
			Length:      length,
		}, true
	}

	// Otherwise, this might be an SSL2.0 unified ClientHello: a record
	// and a handshake message co-encoded in one prefix.
	if frame[2] == uint8(HandshakeTypeClientHello) && frame[3] == 3 {
		var length int32
		if frame[0]&0x80 != 0 {
			length = (int32(frame[0]&0x7f)<<8 | int32(frame[1])) + 2
		} else {
			length = (int32(frame[0]&0x3f)<<8 | int32(frame[1])) + 3
		}
		if length > ssl2HelloMinLength && length < ssl2HelloMaxLength {
			return RecordHeader{
				ContentType: ContentTypeHandshake,
				Version:     VersionSsl20,
				Length:      length,
			}, true
		}
	}

	return RecordHeader{ContentType: ContentTypeInvalid, Version: 0, Length: -1}, false
}

// TryGetFrameHeader is the public, standalone entry point for just the
// record header: it may succeed partially, and on failure it always
// reports Length == -1, Version == 0 (None).
func TryGetFrameHeader(frame []byte) (RecordHeader, bool) {
	return tryReadRecordHeader(frame)
}

// GetFrameSize returns the total on-wire size of the record (5 plus the
// body length), or -1 if the header can't be read, or its major version
// is below 3 (which includes the SSL2 unified hello: it has no regular
// 5-byte record framing to size).
func GetFrameSize(frame []byte) int {
	hdr, ok := tryReadRecordHeader(frame)
	if !ok || hdr.Length < 0 || hdr.Version == VersionSsl20 {
		return -1
	}
	return 5 + int(hdr.Length)
}
