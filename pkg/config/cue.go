package config

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// CUEParser decodes CUE deployment files against the built-in schema.
type CUEParser struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewCUEParser creates a parser with the deployment schema compiled.
func NewCUEParser() (*CUEParser, error) {
	ctx := cuecontext.New()

	root := ctx.CompileString(deploymentSchema, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile deployment schema: %w", err)
	}

	return &CUEParser{
		ctx:    ctx,
		schema: root.LookupPath(cue.ParsePath("#Deployment")),
	}, nil
}

// Parse compiles content, unifies it with the schema and decodes the result.
// Schema violations are returned as ValidationErrors with file positions.
func (cp *CUEParser) Parse(filename string, content []byte) (*Deployment, []ValidationError) {
	val := cp.ctx.CompileBytes(content, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, convertCUEErrors(err)
	}

	unified := cp.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEErrors(err)
	}

	var d Deployment
	if err := unified.Decode(&d); err != nil {
		return nil, []ValidationError{{File: filename, Message: fmt.Sprintf("failed to decode deployment: %v", err)}}
	}
	return &d, nil
}

func convertCUEErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range errors.Errors(err) {
		ve := ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: errors.Details(e, nil),
		}
		if pos := errors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		out = append(out, ve)
	}
	return out
}

