package app

import (
	"errors"
	"fmt"
	"strings"
)

// MessageLimit is the chat platform's maximum message length.
const MessageLimit = 4096

var ErrPrefixTooLong = errors.New("prefix exceeds the maximum chunk length")

// SplitMessage greedily packs items into message bodies bounded by maxLength.
// Items are joined with ", "; only the first chunk carries the prefix, and
// items are never split mid-way. An item that alone exceeds the limit still
// gets its own chunk. Order is preserved and each emitted chunk is trimmed
// of surrounding whitespace.
func SplitMessage(prefix string, items []string, maxLength int) ([]string, error) {
	if len(prefix) > maxLength {
		return nil, fmt.Errorf("%w: %d > %d", ErrPrefixTooLong, len(prefix), maxLength)
	}
	if len(items) == 0 {
		return []string{prefix}, nil
	}

	var chunks []string
	cur := prefix
	count := 0 // items in the current chunk
	for _, item := range items {
		sep := ""
		if count > 0 {
			sep = ", "
		}
		if count > 0 && len(cur)+len(sep)+len(item) > maxLength {
			chunks = append(chunks, strings.TrimSpace(cur))
			cur = item
			count = 1
			continue
		}
		cur += sep + item
		count++
	}
	return append(chunks, strings.TrimSpace(cur)), nil
}
