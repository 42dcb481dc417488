package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fuser/internal/ir"
)

func TestNewSchema_RejectsInvalidName(t *testing.T) {
	_, err := NewSchema(Catalog{{Name: `bad"name`}})
	assert.Error(t, err)
}

func TestSchema_Source(t *testing.T) {
	s, err := NewSchema(testCatalog())
	require.NoError(t, err)

	src := s.Source()
	assert.Contains(t, src, `#cmd_speech: {`)
	assert.Contains(t, src, `name: string & !="move" & !="speech" & !="face"`)
	assert.Contains(t, src, `#Command: #cmd_move | #cmd_speech | #cmd_face | #cmd_unknown`)
	assert.Contains(t, src, `commands!: [...#Command]`)
}

func TestSchema_Parse(t *testing.T) {
	s, err := NewSchema(testCatalog())
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		want    ir.Decision
		wantErr bool
	}{
		{
			name: "two commands in order",
			raw:  `{"commands":[{"name":"move","arguments":[{"value":"forward"}]},{"name":"speech","arguments":[{"value":"hi"}]}]}`,
			want: ir.Decision{Commands: []ir.Command{ir.NewCommand("move", "forward"), ir.NewCommand("speech", "hi")}},
		},
		{
			name: "empty decision is valid",
			raw:  `{"commands":[]}`,
			want: ir.Decision{Commands: []ir.Command{}},
		},
		{
			name: "unknown command passes validation",
			raw:  `{"commands":[{"name":"dance","arguments":[{"value":"a"},{"value":"b"}]}]}`,
			want: ir.Decision{Commands: []ir.Command{ir.NewCommand("dance", "a", "b")}},
		},
		{
			name: "extra top-level fields are tolerated",
			raw:  `{"reasoning":"greet","commands":[{"name":"face","arguments":[{"value":"smile"}]}]}`,
			want: ir.Decision{Commands: []ir.Command{ir.NewCommand("face", "smile")}},
		},
		{
			name: "markdown fence",
			raw:  "```json\n{\"commands\":[{\"name\":\"speech\",\"arguments\":[{\"value\":\"yo\"}]}]}\n```",
			want: ir.Decision{Commands: []ir.Command{ir.NewCommand("speech", "yo")}},
		},
		{name: "arity mismatch", raw: `{"commands":[{"name":"speech","arguments":[]}]}`, wantErr: true},
		{name: "too many arguments", raw: `{"commands":[{"name":"move","arguments":[{"value":"a"},{"value":"b"}]}]}`, wantErr: true},
		{name: "non-string value", raw: `{"commands":[{"name":"speech","arguments":[{"value":3}]}]}`, wantErr: true},
		{name: "missing commands", raw: `{}`, wantErr: true},
		{name: "only reasoning", raw: `{"reasoning":"nothing to do"}`, wantErr: true},
		{name: "null commands", raw: `{"commands":null}`, wantErr: true},
		{name: "top-level list", raw: `[{"name":"speech","arguments":[{"value":"hi"}]}]`, wantErr: true},
		{name: "commands not a list", raw: `{"commands":"speech"}`, wantErr: true},
		{name: "malformed json", raw: `{"commands":[`, wantErr: true},
		{name: "empty", raw: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Parse([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, 0, got.Len(), "failed decisions carry no commands")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Len(), got.Len())
			for i := range tt.want.Commands {
				assert.Equal(t, tt.want.Commands[i].String(), got.Commands[i].String())
			}
		})
	}
}

func TestSchema_EmptyCatalog(t *testing.T) {
	s, err := NewSchema(nil)
	require.NoError(t, err)

	d, err := s.Parse([]byte(`{"commands":[{"name":"anything","arguments":[]}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())
}
