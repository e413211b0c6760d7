package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/omochice/chatanon/internal/session"
	"github.com/omochice/chatanon/internal/transport"
)

func entry(role session.Role, content string) session.Entry {
	return session.Entry{ID: uuid.New(), Role: role, Content: content}
}

func TestRenderer_PrintsOnlyNewEntries(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	r := newRenderer(&out, false)

	onboarding := []session.Entry{entry(session.RoleSystem, "warning"), entry(session.RoleSystem, "greeting")}
	r.Render(session.Snapshot{Connection: transport.StateOpen, Pairing: session.Paired, Entries: onboarding})

	msg := entry(session.RolePeer, "hi")
	msg.Timestamp = time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local)
	r.Render(session.Snapshot{
		Connection: transport.StateOpen,
		Pairing:    session.Paired,
		Entries:    append(onboarding, msg),
	})

	got := out.String()
	req.Equal(1, strings.Count(got, "* warning"))
	req.Equal(1, strings.Count(got, "* greeting"))
	req.Contains(got, "10:00 stranger: hi")
	req.Contains(got, "Connected.")
	req.Contains(got, "Stranger found.")
}

func TestRenderer_ReplacedTranscriptIsReprinted(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	r := newRenderer(&out, false)

	first := []session.Entry{entry(session.RoleSystem, "warning"), entry(session.RoleSystem, "greeting"), entry(session.RoleSelf, "old")}
	r.Render(session.Snapshot{Entries: first})

	second := []session.Entry{entry(session.RoleSystem, "warning"), entry(session.RoleSystem, "greeting")}
	r.Render(session.Snapshot{Entries: second})

	req.Equal(2, strings.Count(out.String(), "* warning"))
	req.Equal(1, strings.Count(out.String(), "you: old"))
}

func TestRenderer_ErrorEntries(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out, false)
	r.Render(session.Snapshot{Connection: transport.StateFailed, Entries: []session.Entry{entry(session.RoleError, "Connection error. Please try again.")}})

	require.Contains(t, out.String(), "! Connection error. Please try again.")
	require.Contains(t, out.String(), "Offline.")
}
