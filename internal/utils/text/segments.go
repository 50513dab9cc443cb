// Package text provides SMS payload analysis: GSM 03.38 alphabet detection
// and wire segment estimation. Vendors bill per segment, so the dispatcher
// records the segment count of every SMS it hands to a provider.
package text

import "unicode/utf16"

// Encoding names for SMS payloads.
const (
	EncodingGSM7 = "gsm7"
	EncodingUCS2 = "ucs2"
)

// Segment capacity per GSM 03.38. Multipart messages lose header room to
// the concatenation UDH, so per-segment capacity shrinks.
const (
	gsm7SingleLimit = 160
	gsm7MultiLimit  = 153
	ucs2SingleLimit = 70
	ucs2MultiLimit  = 67
)

// Segments describes how one SMS body splits on the wire.
type Segments struct {
	Encoding string
	Count    int
}

// gsm7Base is the GSM 7-bit default alphabet (ESC excluded).
var gsm7Base = func() map[rune]struct{} {
	const alphabet = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑܧ¿abcdefghijklmnopqrstuvwxyzäöñüà"
	set := make(map[rune]struct{}, 128)
	for _, r := range alphabet {
		set[r] = struct{}{}
	}
	return set
}()

// gsm7Extended holds the escape-table characters, each costing two septets.
var gsm7Extended = map[rune]struct{}{
	'^': {}, '{': {}, '}': {}, '\\': {}, '[': {}, ']': {}, '~': {}, '|': {}, '€': {},
}

// IsGSM7 reports whether every rune of body fits the GSM 03.38 default
// alphabet (base or extended table). A single rune outside it forces the
// whole message into UCS-2.
func IsGSM7(body string) bool {
	for _, r := range body {
		if _, ok := gsm7Base[r]; ok {
			continue
		}
		if _, ok := gsm7Extended[r]; ok {
			continue
		}
		return false
	}
	return true
}

// SeptetLength returns the septet count of a GSM-7 body. Extended-table
// characters occupy two septets (ESC plus the character).
func SeptetLength(body string) int {
	n := 0
	for _, r := range body {
		if _, ok := gsm7Extended[r]; ok {
			n += 2
			continue
		}
		n++
	}
	return n
}

// CountSegments estimates the wire segments for an SMS body.
//
// GSM-7 bodies fit 160 septets in one segment and 153 per segment when
// concatenated. UCS-2 bodies are measured in UTF-16 code units (characters
// outside the BMP cost two) with limits of 70 and 67. An empty body counts
// zero segments.
func CountSegments(body string) Segments {
	if body == "" {
		return Segments{Encoding: EncodingGSM7, Count: 0}
	}

	if IsGSM7(body) {
		septets := SeptetLength(body)
		if septets <= gsm7SingleLimit {
			return Segments{Encoding: EncodingGSM7, Count: 1}
		}
		return Segments{Encoding: EncodingGSM7, Count: ceilDiv(septets, gsm7MultiLimit)}
	}

	units := len(utf16.Encode([]rune(body)))
	if units <= ucs2SingleLimit {
		return Segments{Encoding: EncodingUCS2, Count: 1}
	}
	return Segments{Encoding: EncodingUCS2, Count: ceilDiv(units, ucs2MultiLimit)}
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
