package autodrip

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// DefaultInputMIMEType is assumed when a data URI carries no usable header.
const DefaultInputMIMEType = "image/jpeg"

// DefaultOutputMIMEType is assumed when the service returns image data
// without a mime type.
const DefaultOutputMIMEType = "image/png"

// DataURI is an image encoded as data:<mime>;base64,<payload>.
type DataURI string

var dataURIHeader = regexp.MustCompile(`^data:(.+);base64,`)

// EncodeDataURI encodes raw image bytes with their mime type.
func EncodeDataURI(mimeType string, data []byte) DataURI {
	return DataURI("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data))
}

// MIMEType returns the mime type from the header, or DefaultInputMIMEType.
func (d DataURI) MIMEType() string {
	if m := dataURIHeader.FindStringSubmatch(string(d)); m != nil {
		return m[1]
	}
	return DefaultInputMIMEType
}

// Bytes decodes the payload.
func (d DataURI) Bytes() ([]byte, error) {
	return DecodeImagePayload([]byte(d))
}

func (d DataURI) String() string {
	return string(d)
}

// DecodeImagePayload returns raw image bytes. Input starting with "data:" is
// treated as a data URI: the header is stripped and the rest base64-decoded.
// Anything else is returned unchanged.
func DecodeImagePayload(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("data:")) {
		return data, nil
	}
	s := string(data)
	idx := strings.Index(s, ",")
	if idx < 0 {
		return nil, fmt.Errorf("malformed data URI: missing payload separator")
	}
	if !strings.HasSuffix(s[:idx], ";base64") {
		return nil, fmt.Errorf("malformed data URI: payload is not base64")
	}
	raw, err := base64.StdEncoding.DecodeString(s[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("decoding data URI payload: %w", err)
	}
	return raw, nil
}
