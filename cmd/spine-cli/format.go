package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
)

// formatReply renders a reply the way redis-cli does: quoted strings,
// (integer) and (nil) markers, and numbered array elements.
func formatReply(v interface{}, indent string) string {
	switch r := v.(type) {
	case nil:
		return "(nil)\n"
	case redis.Error:
		return "(error) " + r.Error() + "\n"
	case string:
		if r == "OK" || r == "PONG" {
			return r + "\n"
		}
		return strconv.Quote(r) + "\n"
	case int64:
		return fmt.Sprintf("(integer) %d\n", r)
	case float64:
		return fmt.Sprintf("(double) %s\n", strconv.FormatFloat(r, 'g', -1, 64))
	case []interface{}:
		if len(r) == 0 {
			return "(empty array)\n"
		}
		var b strings.Builder
		width := len(strconv.Itoa(len(r)))
		for i, elem := range r {
			prefix := fmt.Sprintf("%*d) ", width, i+1)
			if i > 0 {
				b.WriteString(indent)
			}
			b.WriteString(prefix)
			b.WriteString(formatReply(elem, indent+strings.Repeat(" ", len(prefix))))
		}
		return b.String()
	}
	return fmt.Sprintf("%v\n", v)
}
