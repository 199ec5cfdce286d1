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

// minHelloBodyLength is the smallest ClientHello/ServerHello body this
// package parses. It is a few bytes above the 41 bytes of version(2) +
// random(32) + sid-length(1) + ciphers-length(2) + method-length(1) + one
// cipher pair(2) + one method(1).
const minHelloBodyLength = 44

// tryParseHello consumes the { u8 msg_type; u24 length; body } framing of
// a handshake message and, for ClientHello/ServerHello, dispatches to the
// matching body parser. handshakeSlice is frame[5:], trimmed by the
// caller to whatever of the record is on hand (which may be less than
// the full declared record length).
func tryParseHello(handshakeSlice []byte, header RecordHeader, options ProcessingOptions, observer ExtensionObserver, info *FrameInfo) ParsingStatus {
	// A record too small to ever hold a minimal hello body reads as
	// "haven't seen enough yet" rather than "definitely malformed": a
	// legitimate ClientHello's declared record length is never this
	// small, so the more useful diagnosis for a caller that might still
	// be accumulating bytes is IncompleteFrame. Contrast with the
	// length checks below, which compare two lengths already read from
	// the buffer and fail hard on a genuine contradiction.
	if int(header.Length)-4 < minHelloBodyLength {
		return StatusIncompleteFrame
	}
	if len(handshakeSlice) < 4 {
		return StatusIncompleteFrame
	}

	msgType := HandshakeType(handshakeSlice[0])
	info.HandshakeType = msgType
	if msgType != HandshakeTypeClientHello && msgType != HandshakeTypeServerHello {
		return StatusUnsupportedFrame
	}

	helloLength := int(handshakeSlice[1])<<16 | int(handshakeSlice[2])<<8 | int(handshakeSlice[3])
	if helloLength < minHelloBodyLength || helloLength > int(header.Length)-4 {
		return StatusInvalidFrame
	}
	if len(handshakeSlice)-4 < helloLength {
		return StatusIncompleteFrame
	}
	body := handshakeSlice[4 : 4+helloLength]

	if len(body) < 2 {
		return StatusIncompleteFrame
	}
	helloVersion := ProtocolVersion(uint16(body[0])<<8 | uint16(body[1]))
	if body[0] == 3 {
		info.SupportedVersions |= minorVersionBit(body[1])
	}

	if msgType == HandshakeTypeClientHello {
		return parseClientHelloBody(body, helloVersion, options, observer, info)
	}
	return parseServerHelloBody(body, helloVersion, options, observer, info)
}

// parseClientHelloBody parses { u16 version; 32B random; opaque1
// session_id; opaque2 cipher_suites; opaque1 compression_methods;
// optional opaque2 extensions }.
func parseClientHelloBody(body []byte, version ProtocolVersion, options ProcessingOptions, observer ExtensionObserver, info *FrameInfo) ParsingStatus {
	c := newCursor(body)
	c, ok := c.skip(2 + 32)
	if !ok {
		return StatusInvalidFrame
	}

	_, c, ok = takeOpaque1(c)
	if !ok {
		return StatusInvalidFrame
	}

	cipherBytes, c, ok := takeOpaque2(c)
	if !ok {
		return StatusInvalidFrame
	}
	if options.has(ProcessCipherSuites) && len(cipherBytes)%2 == 0 && len(cipherBytes) > 0 {
		suites := make([]uint16, len(cipherBytes)/2)
		for i := range suites {
			suites[i] = uint16(cipherBytes[2*i])<<8 | uint16(cipherBytes[2*i+1])
		}
		info.CipherSuites = suites
	}

	_, c, ok = takeOpaque1(c)
	if !ok {
		return StatusInvalidFrame
	}

	if c.len() == 0 {
		// No extensions present; a legitimate hello (e.g. SSL3.0/TLS1.0
		// with nothing to negotiate beyond ciphers).
		return StatusOk
	}

	extTotalLen, c, ok := c.readU16BE()
	if !ok {
		return StatusInvalidFrame
	}
	if int(extTotalLen) != c.len() {
		return StatusInvalidFrame
	}

	return walkExtensions(c.buf, HandshakeTypeClientHello, info, options, observer)
}

// parseServerHelloBody parses { u16 version; 32B random; opaque1
// session_id; 2B cipher_suite; 1B compression_method; optional opaque2
// extensions }.
//
// Preserved quirk: a ServerHello whose extension area is entirely absent
// is treated as malformed here, even though a fully valid handshake can
// legitimately omit extensions. Kept intentionally rather than "fixed".
func parseServerHelloBody(body []byte, version ProtocolVersion, options ProcessingOptions, observer ExtensionObserver, info *FrameInfo) ParsingStatus {
	c := newCursor(body)
	c, ok := c.skip(2 + 32)
	if !ok {
		return StatusInvalidFrame
	}

	_, c, ok = takeOpaque1(c)
	if !ok {
		return StatusInvalidFrame
	}

	c, ok = c.skip(2 + 1) // cipher_suite + compression_method
	if !ok {
		return StatusInvalidFrame
	}

	if c.len() == 0 {
		return StatusInvalidFrame
	}

	extTotalLen, c, ok := c.readU16BE()
	if !ok {
		return StatusInvalidFrame
	}
	if int(extTotalLen) != c.len() {
		return StatusInvalidFrame
	}

	return walkExtensions(c.buf, HandshakeTypeServerHello, info, options, observer)
}
