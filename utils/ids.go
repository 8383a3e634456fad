package utils

import (
	"fmt"
	"strconv"
)

func FormatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses a positive numeric path id.
func ParseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(n), nil
}
