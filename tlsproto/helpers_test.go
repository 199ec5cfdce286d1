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
	"fmt"

	"golang.org/x/exp/constraints"
)

func compareInteger[T constraints.Integer](result T, expect T) error {
	if expect == result {
		return nil
	}
	return fmt.Errorf("expected %d got %d", expect, result)
}

func compareStrings(result string, expect string) error {
	if expect == result {
		return nil
	}
	return fmt.Errorf("expected '%s' got '%s'", expect, result)
}

func put16(b []byte, v uint16) []byte { return append(b, byte(v>>8), byte(v)) }
func put24(b []byte, v int) []byte    { return append(b, byte(v>>16), byte(v>>8), byte(v)) }

func opaque1(b []byte, body []byte) []byte {
	b = append(b, byte(len(body)))
	return append(b, body...)
}

func opaque2(b []byte, body []byte) []byte {
	b = put16(b, uint16(len(body)))
	return append(b, body...)
}

// sniExtension builds a server_name extension body from a single
// host_name entry.
func sniExtension(host string) []byte {
	entry := []byte{0x00} // name_type = host_name
	entry = opaque2(entry, []byte(host))
	return opaque2(nil, entry)
}

// alpnExtension builds an application_layer_protocol_negotiation
// extension body from a list of protocol names.
func alpnExtension(protocols ...string) []byte {
	var list []byte
	for _, p := range protocols {
		list = opaque1(list, []byte(p))
	}
	return opaque2(nil, list)
}

// supportedVersionsExtension builds a supported_versions extension body
// from a list of two-byte versions.
func supportedVersionsExtension(versions ...ProtocolVersion) []byte {
	var list []byte
	for _, v := range versions {
		list = put16(list, uint16(v))
	}
	return opaque1(nil, list)
}

type testExtension struct {
	extType ExtensionType
	body    []byte
}

// buildClientHelloRecord assembles a complete TLS record containing a
// ClientHello with the given legacy version, cipher suites, and
// extensions.
func buildClientHelloRecord(recordVersion, helloVersion ProtocolVersion, ciphers []uint16, extensions []testExtension) []byte {
	var hello []byte
	hello = put16(hello, uint16(helloVersion))
	hello = append(hello, make([]byte, 32)...) // random
	hello = opaque1(hello, nil)                // session_id

	var cipherBytes []byte
	for _, c := range ciphers {
		cipherBytes = put16(cipherBytes, c)
	}
	hello = opaque2(hello, cipherBytes)
	hello = opaque1(hello, []byte{0x00}) // compression methods

	if extensions != nil {
		var extBytes []byte
		for _, e := range extensions {
			extBytes = put16(extBytes, uint16(e.extType))
			extBytes = opaque2(extBytes, e.body)
		}
		hello = opaque2(hello, extBytes)
	}

	handshake := []byte{byte(HandshakeTypeClientHello)}
	handshake = put24(handshake, len(hello))
	handshake = append(handshake, hello...)

	record := []byte{byte(ContentTypeHandshake)}
	record = put16(record, uint16(recordVersion))
	record = put16(record, uint16(len(handshake)))
	record = append(record, handshake...)
	return record
}
