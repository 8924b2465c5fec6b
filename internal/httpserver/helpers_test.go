package httpserver

import "strconv"

func strconvU(id uint) string { return strconv.FormatUint(uint64(id), 10) }
