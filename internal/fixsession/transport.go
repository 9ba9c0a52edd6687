package fixsession

import (
	"bufio"
	"bytes"
)

// ReadMessage reads one complete tag=value FIX message from r: fields are
// SOH-delimited with no outer framing, so a message boundary is recognized
// by the trailing CheckSum field (10=nnn<SOH>) rather than a fixed
// delimiter.
func ReadMessage(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	for {
		chunk, err := r.ReadBytes(0x01)
		if len(chunk) > 0 {
			buf.Write(chunk)
			if bytes.HasPrefix(chunk, []byte("10=")) {
				return buf.Bytes(), nil
			}
		}
		if err != nil {
			return buf.Bytes(), err
		}
	}
}
