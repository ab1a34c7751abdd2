package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name   string
	titles []string
	err    error
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.titles = append(s.titles, title)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersByEvent(t *testing.T) {
	s := &recordingSender{name: "telegram"}
	n := NewNotifier([]Sender{s}, []string{EventTradePlaced, " Cap_Hit "}, discardLogger())

	require.NoError(t, n.Notify(context.Background(), EventTradePlaced, "placed", "m"))
	require.NoError(t, n.Notify(context.Background(), EventTradeSettled, "settled", "m"))
	// Config names match case-insensitively and ignore stray whitespace.
	require.NoError(t, n.Notify(context.Background(), EventCapHit, "cap", "m"))

	assert.Equal(t, []string{"placed", "cap"}, s.titles)
}

func TestNotifyEmptyEventListAllowsAll(t *testing.T) {
	s := &recordingSender{name: "discord"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())

	require.NoError(t, n.Notify(context.Background(), EventError, "boom", "m"))
	assert.Equal(t, []string{"boom"}, s.titles)
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	bad := &recordingSender{name: "telegram", err: errors.New("401")}
	good := &recordingSender{name: "discord"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.NotifyAll(context.Background(), "title", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
	// The failure did not block delivery to the other channel.
	assert.Equal(t, []string{"title"}, good.titles)
}
