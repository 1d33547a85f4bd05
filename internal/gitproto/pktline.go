package gitproto

import (
	"fmt"
	"io"

	"github.com/go-git/go-git/v5/plumbing/format/pktline"
)

// FlushPkt is the zero-length flush packet.
const FlushPkt = "0000"

// PktLine frames payload with its 4-hex-digit length prefix; the length
// counts the prefix itself.
func PktLine(payload string) string {
	return fmt.Sprintf("%04x%s", len(payload)+4, payload)
}

// WriteServiceAnnouncement writes the "# service=<svc>" line followed by a
// flush packet, which precede the engine advertisement on info/refs.
func WriteServiceAnnouncement(w io.Writer, svc Service) error {
	enc := pktline.NewEncoder(w)

	if err := enc.EncodeString("# service=" + svc.String() + "\n"); err != nil {
		return fmt.Errorf("failed to write service announcement: %w", err)
	}

	if err := enc.Flush(); err != nil {
		return fmt.Errorf("failed to write flush packet: %w", err)
	}

	return nil
}
