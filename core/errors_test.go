package core_test

import (
	"errors"
	"testing"

	"github.com/hupe1980/ifai/core"
	"github.com/stretchr/testify/assert"
)

func TestFaultError(t *testing.T) {
	cause := errors.New("boom")
	err := &core.FaultError{Command: core.CommandKindUserInput, Err: cause}
	assert.Equal(t, "processing user_input command: boom", err.Error())
	assert.ErrorIs(t, err, cause)

	var fe *core.FaultError
	assert.True(t, errors.As(error(err), &fe))
}

func TestFaultError_Panic(t *testing.T) {
	err := &core.FaultError{Command: core.CommandKindSystem, Panic: "oops"}
	assert.Equal(t, "processing system command: panic: oops", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}

func TestCloneMessages(t *testing.T) {
	assert.Nil(t, core.CloneMessages(nil))

	in := []core.ChatMessage{core.UserMessage("a")}
	out := core.CloneMessages(in)
	out[0] = core.AssistantMessage("b")
	assert.Equal(t, core.UserMessage("a"), in[0])
}
