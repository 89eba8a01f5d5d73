package output

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"

	fgethttp "github.com/tanq16/fget/internal/downloaders/http"
	"github.com/tanq16/fget/internal/utils"
)

// ProgressBar renders a fixed-width bar. An unknown total (< 0) draws an empty bar
// without a percentage.
func ProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	if total < 0 {
		return StyleSymbols["bullet"] + strings.Repeat(StyleSymbols["dot"], width) + StyleSymbols["bullet"] + " --.-%"
	}
	if total == 0 {
		current, total = 1, 1
	}
	current = max(0, min(current, total))
	percent := float64(current) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	bar += strings.Repeat(" ", width-filled)
	bar += StyleSymbols["bullet"]
	return fmt.Sprintf("%s %.1f%%", bar, percent*100)
}

// StatusLine summarizes a session snapshot on one line: bar, bytes, smoothed rate,
// ETA and live connections.
func StatusLine(st fgethttp.Status) string {
	sizeText := utils.FormatUnits(float64(st.BytesReceived))
	if st.TotalSize >= 0 {
		sizeText += " / " + utils.FormatUnits(float64(st.TotalSize))
	}
	parts := []string{
		ProgressBar(st.BytesReceived, st.TotalSize, 30),
		sizeText,
		st.SmoothedRateFormatted,
		"ETA " + st.ETAFormatted,
	}
	if st.ActiveChunks > 0 {
		parts = append(parts, fmt.Sprintf("%d conns", st.ActiveChunks))
	}
	return strings.Join(parts, " "+StyleSymbols["bullet"]+" ")
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

func getTerminalHeight() int {
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || height <= 0 {
		return 24
	}
	return height
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func wrapText(text string, indent int) []string {
	maxWidth := getTerminalWidth() - indent - 2
	if maxWidth <= 10 {
		maxWidth = 80
	}
	if utf8.RuneCountInString(text) <= maxWidth {
		return []string{text}
	}
	var lines []string
	var current strings.Builder
	width := 0
	for _, r := range text {
		if width+1 > maxWidth {
			lines = append(lines, current.String())
			current.Reset()
			width = 0
		}
		current.WriteRune(r)
		width++
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
