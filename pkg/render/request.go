package render

import (
	"os"
	"strconv"
	"strings"

	"github.com/matzehuels/inktex/pkg/errors"
)

// Settings keys understood by RequestFromSettings.
const (
	SettingPreamble = "preamble"
	SettingScale    = "scale"
)

// Request is one render: the body text, an optional preamble and a scale.
// Requests are values; build them with NewRequest or RequestFromSettings.
type Request struct {
	Source      string
	Preamble    string
	HasPreamble bool
	Scale       float64
}

// RequestOption configures a Request.
type RequestOption func(*Request)

// WithPreamble sets the preamble inserted before \begin{document}.
func WithPreamble(preamble string) RequestOption {
	return func(r *Request) {
		r.Preamble = preamble
		r.HasPreamble = true
	}
}

// WithScale sets the uniform scale applied to the merged group.
func WithScale(scale float64) RequestOption {
	return func(r *Request) { r.Scale = scale }
}

// NewRequest creates a request with scale 1 and no preamble.
func NewRequest(source string, opts ...RequestOption) Request {
	r := Request{Source: source, Scale: 1.0}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Validate checks the body text and the scale.
func (r Request) Validate() error {
	if err := errors.ValidateSource(r.Source); err != nil {
		return err
	}
	if r.HasPreamble {
		if err := errors.ValidateSource(r.Preamble); err != nil {
			return err
		}
	}
	return errors.ValidateScale(r.Scale)
}

// RequestFromSettings builds a request from stored document settings.
// The preamble setting names a file; it is read when it exists and ignored
// otherwise. A scale that does not parse is an error.
func RequestFromSettings(source string, settings map[string]string) (Request, error) {
	req := NewRequest(source)

	if path := settings[SettingPreamble]; path != "" {
		if data, err := os.ReadFile(path); err == nil {
			req = NewRequest(source, WithPreamble(string(data)))
		}
	}

	if s := strings.TrimSpace(settings[SettingScale]); s != "" {
		scale, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Request{}, errors.Wrap(errors.ErrCodeInvalidScale, err, "stored scale %q", s)
		}
		req.Scale = scale
	}

	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}
