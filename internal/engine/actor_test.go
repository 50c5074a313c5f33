package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestActor_SubmitAnswerDeliversToMailbox(t *testing.T) {
	a := &Actor{gameID: uuid.New(), mailbox: make(chan inboundAnswer, 1), done: make(chan struct{})}

	userID := uuid.New()
	ok := a.SubmitAnswer(userID, "paris")
	assert.True(t, ok)

	msg := <-a.mailbox
	assert.Equal(t, userID, msg.UserID)
	assert.Equal(t, "paris", msg.Text)
}

func TestActor_SubmitAnswerDropsWhenMailboxFull(t *testing.T) {
	a := &Actor{gameID: uuid.New(), mailbox: make(chan inboundAnswer, 1), done: make(chan struct{})}

	assert.True(t, a.SubmitAnswer(uuid.New(), "first"))
	assert.False(t, a.SubmitAnswer(uuid.New(), "second"), "second submit should be dropped, mailbox has capacity 1")
}

func TestActor_DoneClosesAfterRun(t *testing.T) {
	a := &Actor{gameID: uuid.New(), mailbox: make(chan inboundAnswer, 1), done: make(chan struct{})}
	close(a.done)

	select {
	case <-a.Done():
	default:
		t.Fatal("Done channel should report closed")
	}
}
