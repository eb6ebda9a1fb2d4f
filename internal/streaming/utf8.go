package streaming

// UTF8Decoder implements the streaming dispatcher's UTF-8 safety contract
// (spec §4.11): a tokenizer emits bytes in arbitrary chunks that may split
// a multi-byte rune across two chunks, so a decoder must buffer the
// incomplete trailing bytes until a subsequent chunk completes them.
type UTF8Decoder struct {
	remainder []byte
}

// Decode feeds the next chunk of raw bytes and returns the text that could
// be fully decoded plus any incomplete trailing bytes (decode_streaming's
// contract). The decoder keeps those bytes and prepends them to the next
// call's input itself; callers do not pass them back in.
func (d *UTF8Decoder) Decode(chunk []byte) (string, []byte) {
	buf := append(d.remainder, chunk...)
	d.remainder = nil

	n := len(buf)
	cut := n

	// Walk back at most 3 bytes looking for the start of a multi-byte
	// sequence that the chunk boundary may have split.
	for back := 1; back <= 3 && back <= n; back++ {
		lead := buf[n-back]
		if lead&0xC0 == 0x80 {
			continue // continuation byte, keep walking back
		}
		if couldBeIncomplete(buf[n-back:]) {
			cut = n - back
		}
		break
	}

	d.remainder = append([]byte(nil), buf[cut:]...)
	return string(buf[:cut]), d.remainder
}

// Flush returns any buffered incomplete bytes decoded as-is (replacement
// characters for genuinely invalid sequences), used when the stream ends
// with unresolved trailing bytes.
func (d *UTF8Decoder) Flush() string {
	if len(d.remainder) == 0 {
		return ""
	}
	s := string(d.remainder)
	d.remainder = nil
	return s
}

// couldBeIncomplete reports whether tail looks like the start of a
// multi-byte UTF-8 sequence that simply hasn't been completed yet.
func couldBeIncomplete(tail []byte) bool {
	if len(tail) == 0 {
		return false
	}
	b := tail[0]
	switch {
	case b&0x80 == 0: // ASCII, never incomplete
		return false
	case b&0xE0 == 0xC0: // 2-byte lead
		return len(tail) < 2
	case b&0xF0 == 0xE0: // 3-byte lead
		return len(tail) < 3
	case b&0xF8 == 0xF0: // 4-byte lead
		return len(tail) < 4
	default: // continuation byte with no lead in tail, or invalid
		return len(tail) < 4
	}
}
