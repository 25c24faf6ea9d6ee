package logger

import (
	"io"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// secretPatterns match provider key formats whether or not the key is one
// of ours.
var secretPatterns = []*regexp.Regexp{
	// OpenAI, Anthropic
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	// Google
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	// Groq
	regexp.MustCompile(`gsk_[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),
	regexp.MustCompile(`token["\s:=]+[a-zA-Z0-9._-]{20,}`),
	regexp.MustCompile(`secret["\s:=]+[^\s"]+`),
}

// keyFieldPattern keeps the field name and masks only the value.
var keyFieldPattern = regexp.MustCompile(`(api_key["\s:=]+)[^\s",}]+`)

// Redactor masks credentials in log output: known key formats plus any
// literal secrets it was given, such as configured API keys.
type Redactor struct {
	patterns []*regexp.Regexp
	literals *strings.Replacer
}

// NewRedactor creates a redactor. Secrets shorter than eight characters
// are ignored so common words are never masked.
func NewRedactor(secrets ...string) *Redactor {
	r := &Redactor{patterns: append([]*regexp.Regexp(nil), secretPatterns...)}

	var pairs []string
	for _, s := range secrets {
		if len(s) >= 8 {
			pairs = append(pairs, s, redacted)
		}
	}
	if len(pairs) > 0 {
		r.literals = strings.NewReplacer(pairs...)
	}
	return r
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact masks every secret in s.
func (r *Redactor) Redact(s string) string {
	if r.literals != nil {
		s = r.literals.Replace(s)
	}
	s = keyFieldPattern.ReplaceAllString(s, "${1}"+redacted)
	for _, pattern := range r.patterns {
		s = pattern.ReplaceAllString(s, redacted)
	}
	return s
}

// Wrap returns a writer that redacts before writing to w. Each Write is
// redacted on its own; zerolog writes one event per call.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{w: w, r: r}
}

type redactingWriter struct {
	w io.Writer
	r *Redactor
}

func (rw *redactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(rw.w, rw.r.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
