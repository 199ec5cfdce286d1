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

// TryParse is the sole entry point for turning a (possibly partial) byte
// buffer sniffed from the front of a TLS connection into a FrameInfo. It
// never panics and never indexes past len(frame); every failure mode is
// reported through info.Status instead of an error return.
//
// complete reports whether the whole record was consumed and fully
// understood; it is false for any non-Ok status and for any extension
// walk that stopped on a short read.
func TryParse(frame []byte, options ProcessingOptions, observer ExtensionObserver) (info FrameInfo, complete bool) {
	if len(frame) < 5 {
		info.Header.Length = -1
		info.Status = StatusIncompleteFrame
		return info, false
	}

	header, headerOk := tryReadRecordHeader(frame)
	info.Header = header
	info.SupportedVersions |= versionBit(header.Version)

	// SSL2.0 unified ClientHello: the record header recognizer already
	// validated the whole shape; there is nothing further to parse.
	if headerOk && header.Version == VersionSsl20 {
		info.HandshakeType = HandshakeTypeClientHello
		info.SupportedVersions |= minorVersionBit(frame[4])
		info.Status = StatusOk
		return info, true
	}

	if header.ContentType == ContentTypeAlert {
		level, desc, ok := tryReadAlert(frame)
		if !ok {
			info.Status = StatusIncompleteFrame
			return info, false
		}
		info.AlertLevel = level
		info.AlertDescription = desc
		info.HasAlert = true
		info.Status = StatusOk
		return info, true
	}

	if header.ContentType != ContentTypeHandshake {
		info.Status = StatusUnsupportedFrame
		return info, false
	}

	if len(frame) <= 5 {
		info.Status = StatusIncompleteFrame
		return info, false
	}

	info.HandshakeType = HandshakeType(frame[5])
	complete = int64(len(frame)) >= int64(5)+int64(header.Length)
	if complete {
		info.Status = StatusOk
	} else {
		info.Status = StatusIncompleteFrame
	}

	helloOk := true
	if header.Version >= VersionTls10 &&
		(info.HandshakeType == HandshakeTypeClientHello || info.HandshakeType == HandshakeTypeServerHello) {
		end := 5 + int(header.Length)
		if end > len(frame) || header.Length < 0 {
			end = len(frame)
		}
		helloStatus := tryParseHello(frame[5:end], header, options, observer, &info)
		raiseStatus(&info.Status, helloStatus)
		helloOk = helloStatus == StatusOk
	}

	return info, complete && helloOk
}

// GetServerName is a thin wrapper around TryParse that returns just the
// SNI, if any was present and decodable.
func GetServerName(frame []byte) (string, bool) {
	info, _ := TryParse(frame, ProcessServerName, nil)
	return info.TargetName, info.HasTargetName
}

// TryGetFrameInfo exposes the full TryParse contract under the name used
// by the programmatic surface description.
func TryGetFrameInfo(frame []byte, options ProcessingOptions, observer ExtensionObserver) (FrameInfo, bool) {
	return TryParse(frame, options, observer)
}
