package diag

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
)

type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

type Diagnostic struct {
	From     Loc
	To       Loc
	Msg      string
	Severity Severity
}

// Sink collects source files and the diagnostics reported against them.
// It is not safe for concurrent use; the front-end is single-threaded.
type Sink struct {
	files map[string]string
	lines map[string][]int // byte offsets of line starts, always begins with 0
	diags []Diagnostic
}

func NewSink() *Sink {
	return &Sink{
		files: make(map[string]string),
		lines: make(map[string][]int),
	}
}

// Register stores the contents of a file so later diagnostics can be
// rendered with line/column positions. Registering the same filename
// again replaces the previous contents.
func (s *Sink) Register(filename, src string) {
	s.files[filename] = src
	lines := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	s.lines[filename] = lines
}

func (s *Sink) Source(filename string) (string, bool) {
	src, ok := s.files[filename]
	return src, ok
}

// Files returns a snapshot of the registry.
func (s *Sink) Files() map[string]string {
	return maps.Clone(s.files)
}

func (s *Sink) Errorf(from, to Loc, format string, args ...any) {
	s.diags = append(s.diags, Diagnostic{
		From:     from,
		To:       to,
		Msg:      fmt.Sprintf(format, args...),
		Severity: Error,
	})
}

func (s *Sink) Warnf(from, to Loc, format string, args ...any) {
	s.diags = append(s.diags, Diagnostic{
		From:     from,
		To:       to,
		Msg:      fmt.Sprintf(format, args...),
		Severity: Warning,
	})
}

func (s *Sink) Diagnostics() []Diagnostic {
	return s.diags
}

func (s *Sink) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range s.diags {
		if d.Severity == Error {
			out = append(out, d)
		}
	}
	return out
}

func (s *Sink) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range s.diags {
		if d.Severity == Warning {
			out = append(out, d)
		}
	}
	return out
}

func (s *Sink) ErrorCount() int {
	return len(s.Errors())
}

// Position maps a Loc to 1-based line and column. Unregistered files and
// unknown Locs report 0:0.
func (s *Sink) Position(l Loc) (line, col int) {
	if l.Unknown {
		return 0, 0
	}
	starts, ok := s.lines[l.File]
	if !ok {
		return 0, 0
	}
	i, found := sort.Find(len(starts), func(i int) int {
		switch {
		case l.Pos == starts[i]:
			return 0
		case l.Pos < starts[i]:
			return -1
		}
		return 1
	})
	if !found {
		i--
	}
	return i + 1, l.Pos - starts[i] + 1
}

// FormatLoc renders the file:line:col form of a Loc.
func (s *Sink) FormatLoc(l Loc) string {
	if l.Unknown {
		return "<unknown>"
	}
	line, col := s.Position(l)
	return fmt.Sprintf("%s:%d:%d", l.File, line, col)
}

func (s *Sink) FormatDiagnostic(d Diagnostic) string {
	return fmt.Sprintf("%s: %s: %s", s.FormatLoc(d.From), d.Severity, d.Msg)
}

func (s *Sink) String() string {
	var sb strings.Builder
	for _, d := range s.diags {
		sb.WriteString(s.FormatDiagnostic(d))
		sb.WriteByte('\n')
	}
	return sb.String()
}
