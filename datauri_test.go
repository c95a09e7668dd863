package autodrip

import (
	"bytes"
	"testing"
)

func TestDataURI_MIMEType(t *testing.T) {
	tests := []struct {
		name string
		uri  DataURI
		want string
	}{
		{"png header", "data:image/png;base64,AAAA", "image/png"},
		{"webp header", "data:image/webp;base64,AAAA", "image/webp"},
		{"missing header", "AAAA", DefaultInputMIMEType},
		{"header without base64 marker", "data:image/png,AAAA", DefaultInputMIMEType},
		{"empty", "", DefaultInputMIMEType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.uri.MIMEType(); got != tt.want {
				t.Errorf("MIMEType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeImagePayload(t *testing.T) {
	raw := []byte{0xff, 0xd8, 0xff, 0x00, 0x10}

	got, err := DecodeImagePayload([]byte(EncodeDataURI("image/jpeg", raw)))
	if err != nil {
		t.Fatalf("DecodeImagePayload() error = %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("decoded %v, want %v", got, raw)
	}

	got, err = DecodeImagePayload(raw)
	if err != nil || !bytes.Equal(got, raw) {
		t.Errorf("raw bytes should pass through, got %v, %v", got, err)
	}

	for _, bad := range []string{"data:image/png;base64", "data:image/png,plain", "data:image/png;base64,!!"} {
		if _, err := DecodeImagePayload([]byte(bad)); err == nil {
			t.Errorf("DecodeImagePayload(%q) expected error", bad)
		}
	}
}

func TestEncodeDataURI(t *testing.T) {
	uri := EncodeDataURI("image/png", []byte("hi"))
	if uri != "data:image/png;base64,aGk=" {
		t.Errorf("EncodeDataURI() = %q", uri)
	}
	b, err := uri.Bytes()
	if err != nil || string(b) != "hi" {
		t.Errorf("Bytes() = %q, %v", b, err)
	}
}
