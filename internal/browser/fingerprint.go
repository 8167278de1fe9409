package browser

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// ContentFingerprint produces a stable fingerprint of a text block for
// duplicate suppression during category click-through. The text is
// whitespace-normalized and sampled from its head, middle, and tail so that
// lazy-loaded padding or trailing widgets don't defeat the comparison.
func ContentFingerprint(text string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if norm == "" {
		return ""
	}

	const slice = 160
	var sample strings.Builder
	sample.WriteString(head(norm, slice))
	if len(norm) > slice*2 {
		mid := len(norm) / 2
		sample.WriteString(norm[mid : min(mid+slice, len(norm))])
	}
	if len(norm) > slice {
		sample.WriteString(norm[len(norm)-min(slice, len(norm)):])
	}
	sample.WriteString(strconv.Itoa(len(norm)))

	h := fnv.New64a()
	_, _ = h.Write([]byte(sample.String()))
	return strconv.FormatUint(h.Sum64(), 16)
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
