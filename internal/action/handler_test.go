package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fuser/internal/ir"
)

func TestPassthrough_Identity(t *testing.T) {
	ctx := context.Background()
	for _, s := range []string{"", "hi", "hello there", "caf\u00e9", "{\"json\": true}"} {
		out, err := Passthrough[SpeechInput]{}.Execute(ctx, SpeechInput{Sentence: s})
		require.NoError(t, err)
		assert.Equal(t, SpeechInput{Sentence: s}, out)
	}

	n, err := Passthrough[int]{}.Execute(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestBind_DecodesAndExecutes(t *testing.T) {
	h := Speech(Passthrough[SpeechInput]{})
	assert.Equal(t, "speech", h.Spec().Name)

	out, err := h.Handle(context.Background(), ir.NewCommand("speech", "hi"))
	require.NoError(t, err)
	assert.Equal(t, SpeechInput{Sentence: "hi"}, out)
}

func TestBind_Arity(t *testing.T) {
	h := Move(Passthrough[MoveInput]{})

	_, err := h.Handle(context.Background(), ir.NewCommand("move"))
	assert.ErrorIs(t, err, ErrArity)

	_, err = h.Handle(context.Background(), ir.NewCommand("move", "walk", "fast"))
	assert.ErrorIs(t, err, ErrArity)
}

func TestBind_DecodeError(t *testing.T) {
	boom := errors.New("not a number")
	h := Bind(WalletSpec, func(ir.Command) (WalletInput, error) {
		return WalletInput{}, boom
	}, Passthrough[WalletInput]{})

	_, err := h.Handle(context.Background(), ir.NewCommand("wallet", "abc"))
	assert.ErrorIs(t, err, boom)
}

func TestBuiltins(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		handler Handler
		cmd     ir.Command
		want    any
	}{
		{Tweet(Passthrough[TweetInput]{}), ir.NewCommand("tweet", "gm"), TweetInput{Tweet: "gm"}},
		{Face(Passthrough[FaceInput]{}), ir.NewCommand("face", "smile"), FaceInput{Expression: "smile"}},
		{Wallet(Passthrough[WalletInput]{}), ir.NewCommand("wallet", "1.5"), WalletInput{Balance: "1.5"}},
		{Move(Passthrough[MoveInput]{}), ir.NewCommand("move", "sit"), MoveInput{Action: "sit"}},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name, func(t *testing.T) {
			out, err := tt.handler.Handle(ctx, tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}
