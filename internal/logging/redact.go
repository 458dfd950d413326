package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	redactedKey     = "[REDACTED]"
	redactedPattern = "[REDACTED:pattern]"
)

// redactor decides what must not be written: values under listed keys,
// and string values matching a pattern such as a bearer header.
type redactor struct {
	keys     map[string]bool
	patterns []*regexp.Regexp
}

func newRedactor(cfg RedactionConfig) (*redactor, error) {
	r := &redactor{keys: make(map[string]bool, len(cfg.Fields))}
	if !cfg.Enabled {
		return r, nil
	}
	for _, k := range cfg.Fields {
		r.keys[strings.ToLower(k)] = true
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

func (r *redactor) hidesKey(key string) bool {
	return r.keys[strings.ToLower(key)]
}

// mask returns the replacement for val and whether one applies.
func (r *redactor) mask(key, val string) (string, bool) {
	if r.hidesKey(key) {
		return redactedKey, true
	}
	for _, re := range r.patterns {
		if re.MatchString(val) {
			return redactedPattern, true
		}
	}
	return val, false
}

// RedactingEncoder applies a redactor to both per-entry fields and fields
// bound with Logger.With.
type RedactingEncoder struct {
	zapcore.Encoder
	r *redactor
}

// NewRedactingEncoder wraps base. With redaction disabled it passes
// everything through.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	r, err := newRedactor(cfg)
	if err != nil {
		return nil, err
	}
	return &RedactingEncoder{Encoder: base, r: r}, nil
}

func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	clean := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		switch {
		case e.r.hidesKey(f.Key):
			f = zap.String(f.Key, redactedKey)
		case f.Type == zapcore.StringType:
			if v, ok := e.r.mask(f.Key, f.String); ok {
				f = zap.String(f.Key, v)
			}
		}
		clean = append(clean, f)
	}
	return e.Encoder.EncodeEntry(ent, clean)
}

func (e *RedactingEncoder) AddString(key, val string) {
	v, _ := e.r.mask(key, val)
	e.Encoder.AddString(key, v)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if v, ok := e.r.mask(key, string(val)); ok {
		e.Encoder.AddString(key, v)
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val any) error {
	if e.r.hidesKey(key) {
		e.Encoder.AddString(key, redactedKey)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.r.hidesKey(key) {
		e.Encoder.AddString(key, redactedKey)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), r: e.r}
}
