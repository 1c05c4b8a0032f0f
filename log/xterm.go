package log

import "fmt"

type color struct {
	f uint8
	b uint8
}

var (
	colorRed    = color{f: 31, b: 1}
	colorYellow = color{f: 33, b: 1}
)

func (c color) S(text string) string {
	return fmt.Sprintf("\x1b[%d;%dm%s\x1b[m", c.b, c.f, text)
}
