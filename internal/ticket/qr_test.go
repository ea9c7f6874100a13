package ticket

import (
	"bytes"
	"net/url"
	"strings"
	"testing"
)

func TestBuildVerificationURL(t *testing.T) {
	e := &Encoder{BaseURL: "https://konferenca.example.org/"}

	// los tokens JWT llevan caracteres que requieren percent-encoding en query
	token := "abc.def+ghi/jkl=="
	got := e.BuildVerificationURL(token)

	if !strings.HasPrefix(got, "https://konferenca.example.org/verify?token=") {
		t.Fatalf("unexpected URL shape: %s", got)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("built URL does not parse: %v", err)
	}
	if u.Query().Get("token") != token {
		t.Fatalf("token no sobrevivió el percent-encoding: %q", u.Query().Get("token"))
	}
}

func TestRenderQRProducesPNG(t *testing.T) {
	e := &Encoder{BaseURL: "https://konferenca.example.org"}

	png, err := e.RenderQR("eyJhbGciOiJSUzI1NiJ9.payload.sig")
	if err != nil {
		t.Fatalf("RenderQR: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatal("output is not a PNG")
	}
}

func TestRenderQREmptyPayload(t *testing.T) {
	e := &Encoder{}
	if _, err := e.RenderQR("   "); err == nil {
		t.Fatal("empty payload should fail")
	}
}

func TestRenderQRDataURL(t *testing.T) {
	e := &Encoder{}
	dataURL, err := e.RenderQRDataURL("token-123")
	if err != nil {
		t.Fatalf("RenderQRDataURL: %v", err)
	}
	if !strings.HasPrefix(dataURL, "data:image/png;base64,") {
		t.Fatalf("unexpected data URL prefix: %.40s", dataURL)
	}
}
