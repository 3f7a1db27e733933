package codec_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mboersen/telwerk/internal/alias"
	"github.com/mboersen/telwerk/internal/alias/codec"
)

func buildIndex(t *testing.T) *alias.Index {
	t.Helper()
	ix, err := alias.BuildIndex([]alias.Species{
		{ID: "parmaj", Canonical: "Koolmees", TileName: "Koolmees", Aliases: []string{"grote mees"}},
		{ID: "butbut", Canonical: "Buizerd"},
		{ID: "cyacae", Canonical: "Pimpelmees", Aliases: []string{"blauwmees"}},
	}, alias.DefaultQGramSize)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return ix
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	ix := buildIndex(t)

	var buf bytes.Buffer
	if err := codec.Encode(&buf, ix); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := codec.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Len() != ix.Len() {
		t.Fatalf("record count = %d, want %d", got.Len(), ix.Len())
	}
	for _, orig := range ix.Records() {
		dec := got.ByAliasID(orig.AliasID)
		if dec == nil {
			t.Errorf("decoded index is missing alias %q", orig.AliasID)
			continue
		}
		if dec.SpeciesID != orig.SpeciesID {
			t.Errorf("alias %q: species = %q, want %q", orig.AliasID, dec.SpeciesID, orig.SpeciesID)
		}
		if dec.SimHash64 != orig.SimHash64 {
			t.Errorf("alias %q: simhash changed across round trip", orig.AliasID)
		}
		if len(dec.MinHash64) != len(orig.MinHash64) {
			t.Errorf("alias %q: minhash length %d, want %d", orig.AliasID, len(dec.MinHash64), len(orig.MinHash64))
		}
	}
}

func TestEncode_Deterministic(t *testing.T) {
	t.Parallel()

	ix := buildIndex(t)

	var a, b bytes.Buffer
	if err := codec.Encode(&a, ix); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := codec.Encode(&b, ix); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("Encode: same index produced different bytes across runs")
	}
}

func TestDecode_FailsClosed(t *testing.T) {
	t.Parallel()

	ix := buildIndex(t)
	var buf bytes.Buffer
	if err := codec.Encode(&buf, ix); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	valid := buf.Bytes()

	corrupt := func(mutate func(b []byte)) []byte {
		c := make([]byte, len(valid))
		copy(c, valid)
		mutate(c)
		return c
	}

	cases := []struct {
		name string
		data []byte
	}{
		{"truncated header", valid[:10]},
		{"bad magic", corrupt(func(b []byte) { b[0] = 'X' })},
		{"wrong version", corrupt(func(b []byte) { b[4] = 99 })},
		{"wrong dataset kind", corrupt(func(b []byte) { b[5] = 0x7f })},
		{"unknown codec tag", corrupt(func(b []byte) { b[6] = 0x7f })},
		{"unknown compression tag", corrupt(func(b []byte) { b[7] = 0x7f })},
		{"checksum mismatch", corrupt(func(b []byte) { b[20] ^= 0xff })},
		{"truncated payload", valid[:len(valid)-5]},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := codec.Decode(bytes.NewReader(tc.data))
			if err == nil {
				t.Fatal("Decode accepted corrupt input")
			}
			if !errors.Is(err, codec.ErrInvalidIndex) {
				t.Errorf("Decode error = %v, want wrapped ErrInvalidIndex", err)
			}
		})
	}
}

func TestExportLight_OmitsHeavyFields(t *testing.T) {
	t.Parallel()

	ix := buildIndex(t)
	var buf bytes.Buffer
	if err := codec.ExportLight(&buf, ix); err != nil {
		t.Fatalf("ExportLight: %v", err)
	}
	out := buf.String()

	for _, field := range []string{"minhash", "MinHash64", "simhash", "SimHash64"} {
		if strings.Contains(out, field) {
			t.Errorf("light export contains heavy field %q", field)
		}
	}
	for _, field := range []string{"aliasId", "speciesId", "norm", "cologne"} {
		if !strings.Contains(out, field) {
			t.Errorf("light export is missing field %q", field)
		}
	}
}
