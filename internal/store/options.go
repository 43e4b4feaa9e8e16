package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyLabel is returned when an answer option has a blank label.
	ErrEmptyLabel = errors.New("answer option label must not be empty")

	// ErrDuplicateLabel is returned when two answer options share a label.
	ErrDuplicateLabel = errors.New("duplicate answer option label")
)

// Option is one selectable answer: the label shown to the user and the text
// substituted into the document when it is chosen.
type Option struct {
	Label  string `json:"label" yaml:"label"`
	Result string `json:"result" yaml:"result"`
}

// OptionList is an ordered set of options. A nil or empty list means the
// question is free-text. It is stored as a JSON column; NULL means free-text.
type OptionList []Option

// Selectable reports whether the list turns its question into a choice.
func (l OptionList) Selectable() bool {
	return len(l) > 0
}

// Validate checks that every label is non-empty and unique.
func (l OptionList) Validate() error {
	seen := make(map[string]bool, len(l))
	for _, o := range l {
		if strings.TrimSpace(o.Label) == "" {
			return ErrEmptyLabel
		}
		if seen[o.Label] {
			return fmt.Errorf("%w: %q", ErrDuplicateLabel, o.Label)
		}
		seen[o.Label] = true
	}
	return nil
}

// Lookup returns the option whose label exactly equals label.
func (l OptionList) Lookup(label string) (Option, bool) {
	for _, o := range l {
		if o.Label == label {
			return o, true
		}
	}
	return Option{}, false
}

// Value implements driver.Valuer.
func (l OptionList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]Option(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *OptionList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan OptionList: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	var opts []Option
	if err := json.Unmarshal(raw, &opts); err != nil {
		return fmt.Errorf("scan OptionList: %w", err)
	}
	if len(opts) == 0 {
		*l = nil
		return nil
	}
	*l = opts
	return nil
}
