package main

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"damo/internal/damon"
)

var numberPrinter = message.NewPrinter(language.English)

func formatNr(n uint64, raw bool) string {
	if raw {
		return strconv.FormatUint(n, 10)
	}
	if n == damon.MaxCount || n == damon.MaxSize {
		return "max"
	}
	return numberPrinter.Sprintf("%d", n)
}

func formatSize(n uint64, raw bool) string {
	if raw {
		return strconv.FormatUint(n, 10)
	}
	if n == damon.MaxSize {
		return "max"
	}
	return humanize.IBytes(n)
}

func formatDuration(d time.Duration, raw bool) string {
	if raw {
		return strconv.FormatInt(d.Microseconds(), 10)
	}
	return d.String()
}

func formatAddrRange(start, end uint64, raw bool) string {
	if raw {
		return strconv.FormatUint(start, 10) + "-" + strconv.FormatUint(end, 10)
	}
	size := uint64(0)
	if end > start {
		size = end - start
	}
	return numberPrinter.Sprintf("[%d, %d) (%s)", start, end, humanize.IBytes(size))
}
