package service

import (
	"fmt"
	"strings"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatFileSize renders bytes in the largest unit under which the
// value stays below 1024, with two decimals. Unknown or zero sizes are
// reported as such rather than "0 B".
func FormatFileSize(size int64) string {
	if size <= 0 {
		return "Unknown"
	}

	v := float64(size)
	for _, unit := range sizeUnits[:len(sizeUnits)-1] {
		if v < 1024 {
			return fmt.Sprintf("%.2f %s", v, unit)
		}
		v /= 1024
	}

	return fmt.Sprintf("%.2f %s", v, sizeUnits[len(sizeUnits)-1])
}

// escapeMsg escapes special characters in a message to prevent Telegram
// from interpreting them as formatting
func escapeMsg(msg string) string {
	// Replace backticks with single quotes to avoid code block formatting issues
	msg = strings.ReplaceAll(msg, "`", "'")

	msg = strings.ReplaceAll(msg, "_", "\\_")
	msg = strings.ReplaceAll(msg, "*", "\\*")
	msg = strings.ReplaceAll(msg, "[", "\\[")
	msg = strings.ReplaceAll(msg, "]", "\\]")
	msg = strings.ReplaceAll(msg, "(", "\\(")
	msg = strings.ReplaceAll(msg, ")", "\\)")

	return msg
}
