package hashing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSum_KnownDigests(t *testing.T) {
	tests := []struct {
		alg  Algorithm
		want string
	}{
		{SHA1, "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{SHA256, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{BLAKE2b, "bddd813c634239723171ef3fee98579b94964e3bb1cb3e427262c8c068d52319"},
	}

	for _, tt := range tests {
		t.Run(string(tt.alg), func(t *testing.T) {
			h, err := New(tt.alg)
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.alg, err)
			}
			if got := h.SumString("abc"); got != tt.want {
				t.Errorf("SumString(abc) = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSum_DefaultIsSHA1(t *testing.T) {
	var zero Hasher
	if zero.Algorithm() != SHA1 {
		t.Errorf("zero Hasher algorithm = %q, want %q", zero.Algorithm(), SHA1)
	}
	if got, want := Sum([]byte("abc")), zero.SumString("abc"); got != want {
		t.Errorf("Sum() = %q, want %q", got, want)
	}
}

func TestSum_Deterministic(t *testing.T) {
	h, _ := New(SHA256)
	a := h.SumString("define(['a'], function(){});")
	b := h.SumString("define(['a'], function(){});")
	c := h.SumString("define(['b'], function(){});")

	if a != b {
		t.Errorf("identical content hashed differently: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("different content hashed identically: %q", a)
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", SHA1, false},
		{"sha1", SHA1, false},
		{"SHA-256", SHA256, false},
		{" blake2b ", BLAKE2b, false},
		{"md5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAlgorithm(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew_Unsupported(t *testing.T) {
	if _, err := New("crc32"); err == nil {
		t.Error("New(crc32) should fail")
	}
}

func TestSumFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	h, _ := New(SHA1)
	got, err := h.SumFile(path)
	if err != nil {
		t.Fatalf("SumFile() error = %v", err)
	}
	if got != h.SumString("abc") {
		t.Errorf("SumFile() = %q, want %q", got, h.SumString("abc"))
	}

	got, err = h.SumReader(strings.NewReader("abc"))
	if err != nil || got != h.SumString("abc") {
		t.Errorf("SumReader() = %q, %v", got, err)
	}

	if _, err := h.SumFile(filepath.Join(dir, "missing.js")); err == nil {
		t.Error("SumFile(missing) should fail")
	}
}
