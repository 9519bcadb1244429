package logx

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

const (
	red    = 31
	green  = 32
	yellow = 33
	blue   = 36

	defaultTimeFormat = "2006-01-02 15:04:05.000"
	templateColored   = "\x1b[%dm%s\x1b[0m"
)

var (
	spewfmt = &spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		DisableMethods:          true,
		DisablePointerMethods:   true,
	}

	levels = map[logrus.Level]string{
		logrus.PanicLevel: "PANIC",
		logrus.FatalLevel: "FATAL",
		logrus.ErrorLevel: "ERROR",
		logrus.WarnLevel:  "WARN ",
		logrus.InfoLevel:  "INFO ",
		logrus.DebugLevel: "DEBUG",
		logrus.TraceLevel: "TRACE",
	}
)

type format struct {
	color bool
}

func (f *format) Format(entry *logrus.Entry) ([]byte, error) {
	sb := &strings.Builder{}
	sb.WriteString(entry.Time.Format(defaultTimeFormat))
	sb.WriteRune(' ')
	sb.WriteString(f.level(entry.Level))
	if name, ok := entry.Data[NameKey]; ok {
		sb.WriteString(" [")
		sb.WriteString(fmt.Sprint(name))
		sb.WriteString("]")
	}

	sb.WriteRune(' ')
	sb.WriteString(entry.Message)
	if last, _ := utf8.DecodeLastRuneInString(entry.Message); last != '\n' {
		sb.WriteRune('\n')
	}

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		if key != NameKey {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteString("  ")
		sb.WriteString(key)
		sb.WriteString(": ")

		var dumped string
		switch value := entry.Data[key].(type) {
		case error:
			dumped = value.Error()
		case fmt.Stringer:
			dumped = value.String()
		case string:
			dumped = value
		default:
			dumped = spewfmt.Sdump(value)
		}

		sb.WriteString(dumped)
		if last, _ := utf8.DecodeLastRuneInString(dumped); last != '\n' {
			sb.WriteRune('\n')
		}
	}

	return []byte(sb.String()), nil
}

func (f *format) level(l logrus.Level) string {
	if !f.color {
		return levels[l]
	}

	var color int
	switch l {
	case logrus.InfoLevel:
		color = green
	case logrus.WarnLevel:
		color = yellow
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		color = red
	default:
		color = blue
	}

	return fmt.Sprintf(templateColored, color, levels[l])
}
