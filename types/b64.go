package types

import (
	"encoding/base64"
	"fmt"
)

// b64 is the transport encoding for every cryptographic element: URL-safe
// base64 without padding.
var b64 = base64.RawURLEncoding

// B64Bytes is a []byte which encodes as URL-safe unpadded base64 in json.
// It is the wire form for serialized group elements, scalars, signatures
// and confirmation codes.
type B64Bytes []byte

// Bytes returns the underlying byte slice of the B64Bytes.
func (b *B64Bytes) Bytes() []byte {
	return *b
}

// String returns the URL-safe unpadded base64 representation.
func (b B64Bytes) String() string {
	return b64.EncodeToString(b)
}

// Equal compares the current B64Bytes with the provided one byte per byte.
func (b B64Bytes) Equal(other B64Bytes) bool {
	if len(b) != len(other) {
		return false
	}
	for i := range b {
		if b[i] != other[i] {
			return false
		}
	}
	return true
}

// MarshalJSON implements the json.Marshaler interface for B64Bytes.
func (b B64Bytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, b64.EncodedLen(len(b))+2)
	enc[0] = '"'
	b64.Encode(enc[1:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface for B64Bytes.
func (b *B64Bytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string: %q", data)
	}
	decoded, err := b64.DecodeString(string(data[1 : len(data)-1]))
	if err != nil {
		return fmt.Errorf("invalid base64 string: %w", err)
	}
	*b = decoded
	return nil
}

// B64StringToB64Bytes decodes a URL-safe unpadded base64 string.
func B64StringToB64Bytes(s string) (B64Bytes, error) {
	b, err := b64.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 string: %w", err)
	}
	return b, nil
}
