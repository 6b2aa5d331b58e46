package store

import "strconv"

func intToStr(v int) string { return strconv.Itoa(v) }

func floatToStr(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
