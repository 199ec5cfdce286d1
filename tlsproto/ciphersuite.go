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

import "fmt"

// CipherSuite is the two-byte IANA cipher suite identifier as offered by
// a ClientHello or selected by a ServerHello.
type CipherSuite uint16

// A handful of the suites that show up constantly on real traffic; this
// is not the full IANA registry, just enough for readable logs.
const (
	CipherSuiteTls13Aes128GcmSha256       = CipherSuite(0x1301)
	CipherSuiteTls13Aes256GcmSha384       = CipherSuite(0x1302)
	CipherSuiteTls13Chacha20Poly1305Sha256 = CipherSuite(0x1303)
	CipherSuiteEcdheRsaAes128GcmSha256    = CipherSuite(0xc02f)
	CipherSuiteEcdheRsaAes256GcmSha384    = CipherSuite(0xc030)
	CipherSuiteEcdheEcdsaAes128GcmSha256  = CipherSuite(0xc02b)
	CipherSuiteEcdheEcdsaAes256GcmSha384  = CipherSuite(0xc02c)
	CipherSuiteEcdheRsaChacha20Poly1305   = CipherSuite(0xcca8)
	CipherSuiteTlsEmptyRenegotiationInfo  = CipherSuite(0x00ff)
	CipherSuiteGreaseMin                  = CipherSuite(0x0a0a)
)

var cipherSuiteNames = map[CipherSuite]string{
	CipherSuiteTls13Aes128GcmSha256:        "TLS_AES_128_GCM_SHA256",
	CipherSuiteTls13Aes256GcmSha384:        "TLS_AES_256_GCM_SHA384",
	CipherSuiteTls13Chacha20Poly1305Sha256: "TLS_CHACHA20_POLY1305_SHA256",
	CipherSuiteEcdheRsaAes128GcmSha256:     "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
	CipherSuiteEcdheRsaAes256GcmSha384:     "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
	CipherSuiteEcdheEcdsaAes128GcmSha256:   "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
	CipherSuiteEcdheEcdsaAes256GcmSha384:   "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
	CipherSuiteEcdheRsaChacha20Poly1305:    "TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256",
	CipherSuiteTlsEmptyRenegotiationInfo:   "TLS_EMPTY_RENEGOTIATION_INFO_SCSV",
}

// IsGrease reports whether the suite value is one of the reserved
// GREASE placeholders (RFC 8701): both bytes equal and the low nibble
// 0xa, e.g. 0x0a0a, 0x1a1a, ... 0xfafa.
func (suite CipherSuite) IsGrease() bool {
	return suite&0x0f0f == 0x0a0a && (suite>>8) == (suite&0xff)
}

func (suite CipherSuite) String() string {
	if name, ok := cipherSuiteNames[suite]; ok {
		return name
	}
	if suite.IsGrease() {
		return "GREASE"
	}
	return fmt.Sprintf("Unknown(0x%04x)", uint16(suite))
}
