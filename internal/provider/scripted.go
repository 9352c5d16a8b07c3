package provider

import (
	"context"
)

// TurnComplete is the answer a ScriptedProvider gives once a turn's script
// has no more steps.
const TurnComplete = "Turn complete."

// ScriptedProvider replays recorded tool calls. Turns[t][s] lists the calls
// returned for step s of turn t.
//
// It keeps no cursor: the turn is derived from the number of user messages in
// the conversation and the step from the assistant messages after the last
// one, so the same script can be replayed any number of times.
type ScriptedProvider struct {
	Turns [][][]ToolCall
}

func NewScriptedProvider(turns [][][]ToolCall) *ScriptedProvider {
	return &ScriptedProvider{Turns: turns}
}

func (p *ScriptedProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	turn, step := -1, 0
	for _, m := range messages {
		switch m.Role {
		case "user":
			turn++
			step = 0
		case "assistant":
			step++
		}
	}

	if turn < 0 || turn >= len(p.Turns) || step >= len(p.Turns[turn]) {
		return &Response{Content: TurnComplete}, nil
	}

	calls := make([]ToolCall, len(p.Turns[turn][step]))
	copy(calls, p.Turns[turn][step])
	return &Response{ToolCalls: calls}, nil
}

func (p *ScriptedProvider) Name() string {
	return "scripted"
}
