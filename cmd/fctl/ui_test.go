package main

import "testing"

func TestComma(t *testing.T) {
	tests := map[int64]string{
		0:         "0",
		999:       "999",
		1000:      "1,000",
		-25000:    "-25,000",
		123456789: "123,456,789",
	}
	for in, want := range tests {
		if got := comma(in); got != want {
			t.Fatalf("comma(%d)=%q want %q", in, got, want)
		}
	}
}

func TestSignedCoins(t *testing.T) {
	if got := signedCoins(5); got != "+5c" {
		t.Fatalf("got %q", got)
	}
	if got := signedCoins(-1200); got != "-1,200c" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Adds 5 coins", 40); got != "Adds 5 coins" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("Doubles this cycle's output", 10); got != "Doubles..." {
		t.Fatalf("got %q", got)
	}
}
