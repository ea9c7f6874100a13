package scanner

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractTokenFromVerificationURL(t *testing.T) {
	tok := "eyJhbGciOiJSUzI1NiJ9.eyJzdWIiOiJyMSJ9.c2ln"
	got, err := ExtractToken("https://konferenca.example.org/verify?token=" + tok)
	if err != nil {
		t.Fatalf("ExtractToken: %v", err)
	}
	if got != tok {
		t.Fatalf("got %q, want %q", got, tok)
	}
}

func TestExtractTokenPercentEncoded(t *testing.T) {
	// token=abc%2Bdef embebido en una URL: el valor se URL-decodea
	got, err := ExtractToken("https://x.example/verify?token=abc%2Bdef")
	if err != nil {
		t.Fatalf("ExtractToken: %v", err)
	}
	if got != "abc+def" {
		t.Fatalf("got %q, want abc+def", got)
	}
}

func TestExtractTokenRegexFallback(t *testing.T) {
	// texto que no es una URL absoluta pero contiene token=
	got, err := ExtractToken("scan result: token=aaa.bbb.ccc&x=1")
	if err != nil {
		t.Fatalf("ExtractToken: %v", err)
	}
	if got != "aaa.bbb.ccc" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractTokenBare(t *testing.T) {
	bare := strings.Repeat("a", 40)
	got, err := ExtractToken("  " + bare + "  ")
	if err != nil {
		t.Fatalf("ExtractToken: %v", err)
	}
	if got != bare {
		t.Fatalf("bare token should pass through unchanged, got %q", got)
	}
}

func TestExtractTokenRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t", "hola que tal", "???!!!"} {
		if _, err := ExtractToken(in); !errors.Is(err, ErrNoToken) {
			t.Fatalf("input %q: want ErrNoToken, got %v", in, err)
		}
	}
}

func TestExtractTokenURLWithoutParamFallsThrough(t *testing.T) {
	// URL absoluta sin ?token= pero con token= en el fragmento raro:
	// cae al fallback por regex
	got, err := ExtractToken("https://x.example/path#token=zzz")
	if err != nil {
		t.Fatalf("ExtractToken: %v", err)
	}
	if got != "zzz" {
		t.Fatalf("got %q, want zzz", got)
	}
}
