package command

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sandevgo/knowbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueries struct {
	err   error
	limit int
}

func (f *fakeQueries) History(_ context.Context, _ string, limit int) ([]core.StoredMessage, error) {
	f.limit = limit
	return []core.StoredMessage{{Role: core.RoleUser, Content: "hi"}}, f.err
}

func (f *fakeQueries) State(context.Context, string) (core.SessionState, error) {
	swept := int64(0)
	return core.SessionState{Initialized: true, MessageCount: 4, LastScheduledTask: &swept}, f.err
}

func (f *fakeQueries) Notes(_ context.Context, _ string, limit int) ([]core.Note, error) {
	f.limit = limit
	return nil, f.err
}

func TestRouter_Execute(t *testing.T) {
	q := &fakeQueries{}
	r := New(NewCommands(q))
	ctx := context.Background()

	tests := []struct {
		name     string
		input    string
		handled  bool
		contains string
	}{
		{name: "plain text", input: "hello", handled: false},
		{name: "state", input: "/state", handled: true, contains: "**Messages**  ›  `4`"},
		{name: "state with bot name", input: "/state@knowbot", handled: true, contains: "Session"},
		{name: "history", input: " /history 3 ", handled: true, contains: "**user** hi"},
		{name: "notes empty", input: "/notes", handled: true, contains: "Nothing saved yet"},
		{name: "bad limit", input: "/history nope", handled: true, contains: "Command Error"},
		{name: "unknown", input: "/model gpt", handled: true, contains: "Unknown command: /model"},
		{name: "help", input: "/help", handled: true, contains: "`/notes` Show saved notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, handled := r.Execute(ctx, "s1", tt.input)
			require.Equal(t, tt.handled, handled)
			assert.Contains(t, out, tt.contains)
		})
	}
}

func TestRouter_PassesLimit(t *testing.T) {
	q := &fakeQueries{}
	r := New(NewCommands(q))

	r.Execute(context.Background(), "s1", "/history 3")
	assert.Equal(t, 3, q.limit)

	r.Execute(context.Background(), "s1", "/notes")
	assert.Equal(t, defaultListLimit, q.limit)
}

func TestRouter_QueryError(t *testing.T) {
	r := New(NewCommands(&fakeQueries{err: errors.New("db closed")}))

	out, handled := r.Execute(context.Background(), "s1", "/state")
	require.True(t, handled)
	assert.Contains(t, out, "db closed")
}

func TestRouter_ListCommandsSorted(t *testing.T) {
	r := New(NewCommands(&fakeQueries{}))

	var names []string
	for _, c := range r.ListCommands() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"help", "history", "notes", "state"}, names)
}

func TestRouter_HidesProcessingErrors(t *testing.T) {
	r := New(NewCommands(&fakeQueries{err: fmt.Errorf("%w: no such table: notes", core.ErrProcessing)}))

	out, _ := r.Execute(context.Background(), "s1", "/notes")
	assert.Contains(t, out, core.UserFacingError)
	assert.NotContains(t, out, "no such table")
}
