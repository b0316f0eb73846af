package util

import (
	"strconv"
)

func FormatUint(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
