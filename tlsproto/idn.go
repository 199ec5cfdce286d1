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
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// idnProfile is the process-wide, immutable IDN-to-Unicode configuration.
// AllowUnassigned mirrors the source behavior of accepting code points
// that haven't been assigned a Unicode meaning yet rather than rejecting
// the whole name; it never needs to change per call, so one profile is
// shared across every invocation.
var idnProfile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
)

// decodeServerName turns the raw SNI host_name bytes into the string
// FrameInfo.TargetName should carry:
//
//  1. Strict UTF-8 decode. A malformed sequence isn't a parse failure at
//     the frame level; it just means no SNI was usable, so ok is false.
//  2. IDN-to-Unicode. If the profile rejects the string (it wasn't valid
//     Punycode, or isn't actually an IDN label), fall back to the raw
//     UTF-8 string rather than failing outright — the host may simply
//     not have been IDN-encoded.
func decodeServerName(raw []byte) (name string, ok bool) {
	if !utf8.Valid(raw) {
		return "", false
	}
	s := string(raw)

	decoded, err := idnProfile.ToUnicode(s)
	if err != nil {
		return s, true
	}
	return decoded, true
}
