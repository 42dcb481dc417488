package decision

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/fuser/internal/ir"
)

// Schema validates raw model output against the catalog.
//
// Known command names must carry exactly their declared number of arguments;
// an arity mismatch rejects the whole decision. Unknown names pass validation
// and are dropped at dispatch.
type Schema struct {
	catalog Catalog
	source  string

	mu       sync.Mutex // cue.Context is not safe for concurrent use
	ctx      *cue.Context
	decision cue.Value
}

// NewSchema compiles the CUE definitions for a catalog.
func NewSchema(catalog Catalog) (*Schema, error) {
	for _, h := range catalog {
		if !ValidCommandName(h.Name) {
			return nil, fmt.Errorf("invalid command name %q", h.Name)
		}
	}

	src := cueSource(catalog)
	ctx := cuecontext.New()
	root := ctx.CompileString(src, cue.Filename("decision.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile decision schema: %w", err)
	}

	def := root.LookupPath(cue.ParsePath("#Decision"))
	if !def.Exists() {
		return nil, fmt.Errorf("compile decision schema: #Decision not defined")
	}

	return &Schema{
		catalog:  append(Catalog(nil), catalog...),
		source:   src,
		ctx:      ctx,
		decision: def,
	}, nil
}

// Catalog returns the catalog the schema was built from.
func (s *Schema) Catalog() Catalog {
	return s.catalog
}

// Source returns the generated CUE source.
func (s *Schema) Source() string {
	return s.source
}

// Parse validates raw model output and decodes it into a Decision.
func (s *Schema) Parse(raw []byte) (ir.Decision, error) {
	body := extractJSON(raw)
	if len(body) == 0 {
		return ir.Decision{}, fmt.Errorf("empty response")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.ctx.CompileBytes(body, cue.Filename("decision.json"))
	if err := data.Err(); err != nil {
		return ir.Decision{}, fmt.Errorf("parse response: %w", err)
	}
	// An empty list is a valid decision; an absent one is not.
	if !data.LookupPath(cue.ParsePath("commands")).Exists() {
		return ir.Decision{}, fmt.Errorf("validate response: commands field is required")
	}

	v := s.decision.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return ir.Decision{}, fmt.Errorf("validate response: %w", err)
	}

	var d ir.Decision
	if err := v.Decode(&d); err != nil {
		return ir.Decision{}, fmt.Errorf("decode response: %w", err)
	}
	return d, nil
}

// cueSource generates one closed definition per known command plus a
// catch-all for unknown names.
func cueSource(catalog Catalog) string {
	var b strings.Builder
	b.WriteString("#Argument: {value: string}\n\n")

	alts := make([]string, 0, len(catalog)+1)
	for _, h := range catalog {
		def := "#cmd_" + h.Name
		alts = append(alts, def)

		args := make([]string, h.Arity())
		for i := range args {
			args[i] = "#Argument"
		}
		fmt.Fprintf(&b, "%s: {\n\tname: %s\n\targuments: [%s]\n}\n\n", def, strconv.Quote(h.Name), strings.Join(args, ", "))
	}

	unknown := "string"
	for _, h := range catalog {
		unknown += " & !=" + strconv.Quote(h.Name)
	}
	fmt.Fprintf(&b, "#cmd_unknown: {\n\tname: %s\n\targuments: [...#Argument]\n}\n\n", unknown)
	alts = append(alts, "#cmd_unknown")

	fmt.Fprintf(&b, "#Command: %s\n\n", strings.Join(alts, " | "))
	b.WriteString("#Decision: {\n\tcommands!: [...#Command]\n\t...\n}\n")
	return b.String()
}

// extractJSON strips surrounding whitespace and a Markdown code fence.
func extractJSON(raw []byte) []byte {
	body := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	body = bytes.TrimPrefix(body, []byte("```"))
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	}
	body = bytes.TrimSuffix(bytes.TrimSpace(body), []byte("```"))
	return bytes.TrimSpace(body)
}
