package streaming

import "testing"

func TestUTF8Decoder_SplitEmojiAcrossChunks(t *testing.T) {
	d := &UTF8Decoder{}

	text1, remainder1 := d.Decode([]byte("Hi \xf0\x9f"))
	if text1 != "Hi " {
		t.Fatalf("expected %q, got %q", "Hi ", text1)
	}
	if string(remainder1) != "\xf0\x9f" {
		t.Fatalf("expected remainder bytes preserved, got %x", remainder1)
	}

	text2, remainder2 := d.Decode([]byte("\x98\x8e done"))
	if text2 != "😎 done" {
		t.Fatalf("expected %q, got %q", "😎 done", text2)
	}
	if len(remainder2) != 0 {
		t.Fatalf("expected no remainder once the rune completes, got %x", remainder2)
	}
}

func TestUTF8Decoder_PlainASCIINeverBuffers(t *testing.T) {
	d := &UTF8Decoder{}
	text, remainder := d.Decode([]byte("hello world"))
	if text != "hello world" {
		t.Fatalf("unexpected decode: %q", text)
	}
	if len(remainder) != 0 {
		t.Fatalf("expected no remainder for plain ASCII, got %x", remainder)
	}
}

func TestUTF8Decoder_CompleteMultiByteInOneChunk(t *testing.T) {
	d := &UTF8Decoder{}
	text, remainder := d.Decode([]byte("café"))
	if text != "café" {
		t.Fatalf("unexpected decode: %q", text)
	}
	if len(remainder) != 0 {
		t.Fatalf("expected no remainder, got %x", remainder)
	}
}

func TestUTF8Decoder_Flush(t *testing.T) {
	d := &UTF8Decoder{}
	d.Decode([]byte("x\xe2\x98")) // 3-byte lead (e.g. star ★ = e2 98 85), missing final byte
	flushed := d.Flush()
	if flushed != "\xe2\x98" {
		t.Fatalf("expected Flush to return the buffered bytes verbatim, got %x", []byte(flushed))
	}
	if d.Flush() != "" {
		t.Fatal("expected a second Flush to return empty")
	}
}

func TestUTF8Decoder_ThreeByteSplitAcrossChunks(t *testing.T) {
	d := &UTF8Decoder{}
	// ★ is U+2605, encoded \xe2\x98\x85. Split after the lead byte.
	text1, rem1 := d.Decode([]byte("a\xe2"))
	if text1 != "a" {
		t.Fatalf("expected %q, got %q", "a", text1)
	}
	if len(rem1) != 1 {
		t.Fatalf("expected 1 buffered lead byte, got %x", rem1)
	}
	text2, rem2 := d.Decode([]byte("\x98\x85b"))
	if text2 != "★b" {
		t.Fatalf("expected %q, got %q", "★b", text2)
	}
	if len(rem2) != 0 {
		t.Fatalf("expected no remainder, got %x", rem2)
	}
}
