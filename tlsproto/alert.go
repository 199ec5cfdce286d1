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

// tryReadAlert decodes a complete 7-byte Alert record's level and
// description. It must only be called once the record header has
// already been accepted as ContentTypeAlert with Length >= 2.
func tryReadAlert(frame []byte) (level AlertLevel, desc AlertDescription, ok bool) {
	if len(frame) < 7 {
		return 0, 0, false
	}
	return AlertLevel(frame[5]), AlertDescription(frame[6]), true
}

// TryGetAlertInfo is the public entry point for decoding a standalone
// Alert record.
func TryGetAlertInfo(frame []byte) (level AlertLevel, desc AlertDescription, ok bool) {
	hdr, hok := tryReadRecordHeader(frame)
	if !hok || hdr.ContentType != ContentTypeAlert {
		return 0, 0, false
	}
	return tryReadAlert(frame)
}

// protocolVersionAlerts holds the five fixed 7-byte records from
// section 6 of the wire format contract, keyed by the version being
// rejected.
var protocolVersionAlerts = map[ProtocolVersion][7]byte{
	VersionTls13: {0x15, 0x03, 0x04, 0x00, 0x02, 0x02, 0x46},
	VersionTls12: {0x15, 0x03, 0x03, 0x00, 0x02, 0x02, 0x46},
	VersionTls11: {0x15, 0x03, 0x02, 0x00, 0x02, 0x02, 0x46},
	VersionTls10: {0x15, 0x03, 0x01, 0x00, 0x02, 0x02, 0x46},
	VersionSsl30: {0x15, 0x03, 0x00, 0x00, 0x02, 0x02, 0x28},
}

// CreateAlertFrame builds an outgoing fatal Alert record for the given
// version and reason. ProtocolVersion-mismatch alerts use the five fixed
// byte sequences; any other reason with version > SSL3.0 builds a
// generic {Alert, major=3, minor, length=2, level=Fatal, description}
// record. Anything else (version <= SSL3.0 with a non-protocol_version
// reason) has no well-defined wire form and returns nil.
func CreateAlertFrame(version ProtocolVersion, reason AlertDescription) []byte {
	if reason == AlertProtocolVersion {
		if fixed, ok := protocolVersionAlerts[version]; ok {
			out := make([]byte, 7)
			copy(out, fixed[:])
			return out
		}
	}
	if version > VersionSsl30 {
		return []byte{
			uint8(ContentTypeAlert), 0x03, uint8(version & 0xff),
			0x00, 0x02,
			uint8(AlertLevelFatal), uint8(reason),
		}
	}
	return nil
}
