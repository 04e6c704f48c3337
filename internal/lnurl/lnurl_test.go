package lnurl

import (
	"strings"
	"testing"
)

// Reference vector from the LNURL spec (LUD-01).
const (
	vectorURL   = "https://service.com/api?q=3fc3645b439ce8e7f2553a69e5267081d96dcd340693afabe04be7b0ccd178df"
	vectorLNURL = "LNURL1DP68GURN8GHJ7UM9WFMXJCM99E3K7MF0V9CXJ0M385EKVCENXC6R2C35XVUKXEFCV5MKVV34X5EKZD3EV56NYD3HXQURZEPEXEJXXEPNXSCRVWFNV9NXZCN9XQ6XYEFHVGCXXCMYXYMNSERXFQ5FNS"
)

func TestEncodeKnownVector(t *testing.T) {
	got, err := Encode(vectorURL)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got != vectorLNURL {
		t.Errorf("Encode = %s, want %s", got, vectorLNURL)
	}
}

func TestDecodeKnownVector(t *testing.T) {
	got, err := Decode(vectorLNURL)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != vectorURL {
		t.Errorf("Decode = %s, want %s", got, vectorURL)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	urls := []string{
		"http://localhost:8080/api/v1/lnurl/abc123",
		"https://example.com/api/v1/lnurl/cb?k1=deadbeef&v=0123456789abcdef",
	}
	for _, u := range urls {
		encoded, err := Encode(u)
		if err != nil {
			t.Fatalf("Encode(%s): %v", u, err)
		}
		if !strings.HasPrefix(encoded, "LNURL1") {
			t.Errorf("encoded form %s missing LNURL1 prefix", encoded)
		}
		if encoded != strings.ToUpper(encoded) {
			t.Errorf("encoded form must be uppercase: %s", encoded)
		}
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(%s): %v", encoded, err)
		}
		if decoded != u {
			t.Errorf("round trip = %s, want %s", decoded, u)
		}
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode("LNURL1NOTVALID!!!"); err == nil {
		t.Error("expected error for malformed input")
	}
}

func TestStatusShapes(t *testing.T) {
	if ok := OK(); ok.Status != "OK" {
		t.Errorf("OK().Status = %s", ok.Status)
	}
	e := Error("link not found")
	if e.Status != "ERROR" || e.Reason != "link not found" {
		t.Errorf("Error() = %+v", e)
	}
}
