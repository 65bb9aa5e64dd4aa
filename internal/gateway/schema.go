package gateway

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// Schema describes the shape a stage expects back, written in CUE.
// ArrayKey names the field a bare top-level array is wrapped under.
type Schema struct {
	Name       string
	Definition string
	ArrayKey   string
}

// Validate checks field presence, types, enums and numeric ranges of a
// JSON payload. A fresh CUE context is used per call so the gateway keeps
// no shared state besides its limiter.
func (s Schema) Validate(payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("%w: payload is not JSON", errMalformed)
	}
	if s.Definition == "" {
		return nil
	}

	cctx := cuecontext.New()
	def := cctx.CompileString(s.Definition, cue.Filename(s.Name+".cue"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("%w %s: %s", errInvalidSchema, s.Name, cueerrors.Details(err, nil))
	}
	data := cctx.CompileBytes(payload, cue.Filename(s.Name+".json"))
	if err := data.Err(); err != nil {
		return fmt.Errorf("%w: %s", errMalformed, cueerrors.Details(err, nil))
	}
	if err := def.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s does not match: %s", errMalformed, s.Name, cueerrors.Details(err, nil))
	}
	return nil
}
