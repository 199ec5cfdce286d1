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

package main

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/kestrel-tls/tls-sniff/tlsproto"
)

// TlsConnection tracks a single accepted client connection through the
// handshake-sniffing phase and, once a route is picked, the bidirectional
// relay to the chosen backend.
type TlsConnection struct {
	client  *net.TCPConn
	backend *net.TCPConn
	config  *Configuration

	// Parsed out of the ClientHello by handleRequest.
	Frame tlsproto.FrameInfo

	// The raw bytes read from the client so far. Once handleRequest
	// completes, this holds every byte read, starting with the first TLS
	// record — it gets replayed verbatim to whichever backend the router
	// picks.
	helloData []byte
}

func (tcon *TlsConnection) Close() {
	if tcon.client != nil {
		tcon.client.Close()
	}
	if tcon.backend != nil {
		tcon.backend.Close()
	}
}

// handleRequest accumulates bytes from the client connection, handing
// each growing prefix to tlsproto.TryParse, until the parse is either
// complete or has failed outright. It gives up once more than
// RecordMaxLength+5 bytes have accumulated without a complete parse.
func (tcon *TlsConnection) handleRequest(ctx context.Context) error {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		n, err := tcon.client.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			return fmt.Errorf("read error: %v", err)
		}

		info, complete := tlsproto.TryParse(buf, tlsproto.ProcessAll, nil)
		tcon.Frame = info

		switch info.Status {
		case tlsproto.StatusIncompleteFrame:
			if len(buf) > tlsproto.RecordMaxLength+5 {
				return fmt.Errorf("tls record length exceeded")
			}
			continue
		case tlsproto.StatusInvalidFrame:
			return fmt.Errorf("malformed handshake")
		case tlsproto.StatusUnsupportedFrame:
			return fmt.Errorf("unsupported record type")
		case tlsproto.StatusOk:
			if !complete {
				// TryParse reports Ok only together with complete=true,
				// so this is a defensive check. Alert records, SSL2
				// hellos and Handshake records that carry no hello come
				// back Ok and complete and take the path below.
				return fmt.Errorf("unroutable handshake record")
			}
			tcon.helloData = buf
			tcon.logHello()
			return nil
		}
	}
}

func (tcon *TlsConnection) logHello() {
	info := tcon.Frame
	log.Printf("TLS ClientHello received")
	log.Printf("  Versions: %s", info.SupportedVersions.String())
	log.Printf("  Server Name: %q (present=%v)", info.TargetName, info.HasTargetName)
	log.Printf("  Application Protocols: %s", info.ApplicationProtocols.String())
	log.Printf("  Cipher Suites:")
	for _, suite := range info.CipherSuites {
		log.Printf("    %s", tlsproto.CipherSuite(suite).String())
	}

	// Re-decode the full message for the fields FrameInfo doesn't carry
	// (session ID, raw extension count) — only possible for a ClientHello
	// outside the SSL2 unified hello.
	if info.Header.Version == tlsproto.VersionSsl20 || info.HandshakeType != tlsproto.HandshakeTypeClientHello {
		return
	}
	helloBody := tcon.helloBody()
	if helloBody == nil {
		return
	}
	var hello tlsproto.ClientHello
	if err := hello.Unmarshal(helloBody); err != nil {
		return
	}
	log.Printf("  Session ID: %d bytes", len(hello.SessionId))
	log.Printf("  Extension Count: %d", len(hello.Extensions))
}

// helloBody returns the handshake-message body (the part after the
// 4-byte { msg_type; u24 length } prefix) out of the raw bytes captured
// by handleRequest, or nil if the captured bytes are shorter than that
// prefix or than the body length it declares. It does not check the
// record's content type.
func (tcon *TlsConnection) helloBody() []byte {
	if len(tcon.helloData) < 9 {
		return nil
	}
	helloLength := int(tcon.helloData[6])<<16 | int(tcon.helloData[7])<<8 | int(tcon.helloData[8])
	start, end := 9, 9+helloLength
	if end > len(tcon.helloData) {
		return nil
	}
	return tcon.helloData[start:end]
}

// resendHandshake retransmits the exact bytes read from the client to
// dest — a passthrough re-send, not a re-encode, since this package
// never builds a new ClientHello.
func (tcon *TlsConnection) resendHandshake(dest net.Conn) error {
	txLen := 0
	for txLen < len(tcon.helloData) {
		n, err := dest.Write(tcon.helloData[txLen:])
		if err != nil {
			return err
		}
		txLen += n
	}
	return nil
}

// rejectWithAlert writes a fatal Alert with the given reason back to the
// client, using the highest version the hello claimed to support (TLS1.2
// when none is known) — a real caller for build_alert/create_alert_frame.
// It does not close the connection.
func (tcon *TlsConnection) rejectWithAlert(reason tlsproto.AlertDescription) {
	version := tlsproto.VersionTls12
	switch {
	case tcon.Frame.SupportedVersions.Has(tlsproto.VersionTls13):
		version = tlsproto.VersionTls13
	case tcon.Frame.SupportedVersions.Has(tlsproto.VersionTls12):
		version = tlsproto.VersionTls12
	case tcon.Frame.SupportedVersions.Has(tlsproto.VersionTls11):
		version = tlsproto.VersionTls11
	case tcon.Frame.SupportedVersions.Has(tlsproto.VersionTls10):
		version = tlsproto.VersionTls10
	case tcon.Frame.SupportedVersions.Has(tlsproto.VersionSsl30):
		version = tlsproto.VersionSsl30
	}
	frame := tlsproto.CreateAlertFrame(version, reason)
	if frame == nil {
		return
	}
	tcon.client.Write(frame)
}
