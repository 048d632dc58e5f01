// Package params parses and validates synthesis parameter lines.
package params

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrValidation is matched by every error returned from Parse.
var ErrValidation = errors.New("params: validation failed")

const (
	// MinTokens is the number of tokens when the addition rate is derived.
	MinTokens = 7
	// MaxTokens is the number of tokens when the addition rate is explicit.
	MaxTokens = 8
)

// Field identifies one positional parameter.
type Field int

const (
	FieldEu Field = iota
	FieldPhen
	FieldLigandConcentration
	FieldLigandType
	FieldPH
	FieldVolume
	FieldTime
	FieldRate
)

var fieldNames = [...]string{
	FieldEu:                  "europium concentration",
	FieldPhen:                "phenanthroline concentration",
	FieldLigandConcentration: "ligand concentration",
	FieldLigandType:          "ligand type",
	FieldPH:                  "pH",
	FieldVolume:              "addition volume",
	FieldTime:                "addition time",
	FieldRate:                "addition rate",
}

var fieldCodes = [...]string{
	FieldEu:                  "eu",
	FieldPhen:                "phen",
	FieldLigandConcentration: "ligand",
	FieldLigandType:          "ligand_type",
	FieldPH:                  "ph",
	FieldVolume:              "volume",
	FieldTime:                "time",
	FieldRate:                "rate",
}

// Fields lists every field in positional order.
var Fields = []Field{
	FieldEu, FieldPhen, FieldLigandConcentration, FieldLigandType,
	FieldPH, FieldVolume, FieldTime, FieldRate,
}

// String returns the human-readable field name.
func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// Code returns the short code used by chart commands.
func (f Field) Code() string {
	if f < 0 || int(f) >= len(fieldCodes) {
		return ""
	}
	return fieldCodes[f]
}

// LookupField resolves a field by code or by 1-based position.
func LookupField(code string) (Field, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(code); err == nil {
		if n >= 1 && n <= len(Fields) {
			return Fields[n-1], true
		}
		return 0, false
	}
	for _, f := range Fields {
		if f.Code() == code {
			return f, true
		}
	}
	return 0, false
}

// Record is a validated set of synthesis parameters.
type Record struct {
	EuConcentration     float64
	PhenConcentration   float64
	LigandConcentration float64
	LigandType          int
	PH                  int
	AdditionVolume      float64
	AdditionTime        float64
	AdditionRate        float64

	tokens []string
}

// Tokens returns a copy of the raw tokens the record was parsed from.
func (r Record) Tokens() []string {
	return append([]string(nil), r.tokens...)
}

// RateDerived reports whether the addition rate was computed from volume and time.
func (r Record) RateDerived() bool {
	return len(r.tokens) == MinTokens
}

// Value returns the numeric value of a field.
func (r Record) Value(f Field) float64 {
	switch f {
	case FieldEu:
		return r.EuConcentration
	case FieldPhen:
		return r.PhenConcentration
	case FieldLigandConcentration:
		return r.LigandConcentration
	case FieldLigandType:
		return float64(r.LigandType)
	case FieldPH:
		return float64(r.PH)
	case FieldVolume:
		return r.AdditionVolume
	case FieldTime:
		return r.AdditionTime
	case FieldRate:
		return r.AdditionRate
	}
	return math.NaN()
}

// FromStored rebuilds a record loaded from storage; tokens are re-rendered from values.
func FromStored(eu, phen, ligand float64, ligandType, ph int, volume, time, rate float64) Record {
	rec := Record{
		EuConcentration:     eu,
		PhenConcentration:   phen,
		LigandConcentration: ligand,
		LigandType:          ligandType,
		PH:                  ph,
		AdditionVolume:      volume,
		AdditionTime:        time,
		AdditionRate:        rate,
	}
	rec.tokens = []string{
		formatNumber(eu), formatNumber(phen), formatNumber(ligand),
		strconv.Itoa(ligandType), strconv.Itoa(ph),
		formatNumber(volume), formatNumber(time), formatNumber(rate),
	}
	return rec
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Tokenize splits a raw parameter line on any whitespace.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// Parse validates tokens positionally and builds a Record.
// The first failing field, in positional order, is reported.
func Parse(tokens []string) (Record, error) {
	if len(tokens) != MinTokens && len(tokens) != MaxTokens {
		return Record{}, &CountError{Got: len(tokens)}
	}

	var (
		rec Record
		err error
	)
	if rec.EuConcentration, err = parseFloat(FieldEu, tokens[0], nonNegative); err != nil {
		return Record{}, err
	}
	if rec.PhenConcentration, err = parseFloat(FieldPhen, tokens[1], nonNegative); err != nil {
		return Record{}, err
	}
	if rec.LigandConcentration, err = parseFloat(FieldLigandConcentration, tokens[2], nonNegative); err != nil {
		return Record{}, err
	}
	if rec.LigandType, err = parseInt(FieldLigandType, tokens[3], 0, 3); err != nil {
		return Record{}, err
	}
	if rec.PH, err = parseInt(FieldPH, tokens[4], 7, 11); err != nil {
		return Record{}, err
	}
	if rec.AdditionVolume, err = parseFloat(FieldVolume, tokens[5], positive); err != nil {
		return Record{}, err
	}
	if rec.AdditionTime, err = parseFloat(FieldTime, tokens[6], positive); err != nil {
		return Record{}, err
	}
	if len(tokens) == MaxTokens {
		if rec.AdditionRate, err = parseFloat(FieldRate, tokens[7], positive); err != nil {
			return Record{}, err
		}
	} else {
		rec.AdditionRate = rec.AdditionVolume / rec.AdditionTime
	}

	rec.tokens = append([]string(nil), tokens...)
	return rec, nil
}

type bound struct {
	constraint string
	ok         func(float64) bool
}

var (
	nonNegative = bound{constraint: "must be >= 0", ok: func(v float64) bool { return v >= 0 }}
	positive    = bound{constraint: "must be > 0", ok: func(v float64) bool { return v > 0 }}
)

func parseFloat(f Field, raw string, b bound) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FieldError{Field: f, Value: raw, Constraint: "must be a number"}
	}
	if !b.ok(v) {
		return 0, &FieldError{Field: f, Value: raw, Constraint: b.constraint}
	}
	return v, nil
}

func parseInt(f Field, raw string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &FieldError{Field: f, Value: raw, Constraint: "must be an integer"}
	}
	if v < lo || v > hi {
		return 0, &FieldError{Field: f, Value: raw, Constraint: fmt.Sprintf("must be between %d and %d", lo, hi)}
	}
	return v, nil
}
