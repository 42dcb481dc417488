package action

import (
	"github.com/roach88/fuser/internal/decision"
	"github.com/roach88/fuser/internal/ir"
)

// SpeechInput is a sentence to say out loud.
type SpeechInput struct {
	Sentence string `json:"sentence"`
}

// TweetInput is a message to post.
type TweetInput struct {
	Tweet string `json:"tweet"`
}

// MoveInput names a movement or animation.
type MoveInput struct {
	Action string `json:"action"`
}

// FaceInput names a facial expression.
type FaceInput struct {
	Expression string `json:"expression"`
}

// WalletInput is a balance to display.
type WalletInput struct {
	Balance string `json:"balance"`
}

// Built-in command specs.
var (
	SpeechSpec = decision.HandlerSpec{
		Name:        "speech",
		Args:        []string{"sentence"},
		Description: "Say a sentence out loud.",
	}
	TweetSpec = decision.HandlerSpec{
		Name:        "tweet",
		Args:        []string{"tweet"},
		Description: "Post a short public message.",
	}
	MoveSpec = decision.HandlerSpec{
		Name:        "move",
		Args:        []string{"action"},
		Description: "Perform a movement such as walk, run, sit, jump, wag tail or dance.",
	}
	FaceSpec = decision.HandlerSpec{
		Name:        "face",
		Args:        []string{"expression"},
		Description: "Show a facial expression such as smile, frown, think or surprised.",
	}
	WalletSpec = decision.HandlerSpec{
		Name:        "wallet",
		Args:        []string{"balance"},
		Description: "Display the wallet balance in ETH.",
	}
)

// Speech binds a speech implementation.
func Speech(impl Implementation[SpeechInput, SpeechInput]) Handler {
	return Bind(SpeechSpec, func(cmd ir.Command) (SpeechInput, error) {
		return SpeechInput{Sentence: cmd.Arg(0)}, nil
	}, impl)
}

// Tweet binds a tweet implementation.
func Tweet(impl Implementation[TweetInput, TweetInput]) Handler {
	return Bind(TweetSpec, func(cmd ir.Command) (TweetInput, error) {
		return TweetInput{Tweet: cmd.Arg(0)}, nil
	}, impl)
}

// Move binds a movement implementation.
func Move(impl Implementation[MoveInput, MoveInput]) Handler {
	return Bind(MoveSpec, func(cmd ir.Command) (MoveInput, error) {
		return MoveInput{Action: cmd.Arg(0)}, nil
	}, impl)
}

// Face binds a facial expression implementation.
func Face(impl Implementation[FaceInput, FaceInput]) Handler {
	return Bind(FaceSpec, func(cmd ir.Command) (FaceInput, error) {
		return FaceInput{Expression: cmd.Arg(0)}, nil
	}, impl)
}

// Wallet binds a wallet display implementation.
func Wallet(impl Implementation[WalletInput, WalletInput]) Handler {
	return Bind(WalletSpec, func(cmd ir.Command) (WalletInput, error) {
		return WalletInput{Balance: cmd.Arg(0)}, nil
	}, impl)
}
