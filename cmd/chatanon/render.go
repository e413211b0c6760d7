package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/omochice/chatanon/internal/client"
	"github.com/omochice/chatanon/internal/session"
	"github.com/omochice/chatanon/internal/transport"
)

var roleStyles = map[session.Role]color.Style{
	session.RoleSelf:   color.New(color.FgGreen, color.OpBold),
	session.RolePeer:   color.New(color.FgCyan, color.OpBold),
	session.RoleSystem: color.New(color.FgGray),
	session.RoleError:  color.New(color.FgRed),
}

var noticeStyle = color.New(color.FgYellow)

// renderer prints the transcript incrementally as snapshots arrive.
type renderer struct {
	w      io.Writer
	colors bool

	first      uuid.UUID
	printed    int
	connection transport.State
	pairing    session.PairingState
}

func newRenderer(w io.Writer, colors bool) *renderer {
	return &renderer{w: w, colors: colors}
}

func (r *renderer) paint(style color.Style, s string) string {
	if !r.colors {
		return s
	}
	return style.Render(s)
}

// Render prints what changed since the previous snapshot.
func (r *renderer) Render(s session.Snapshot) {
	if s.Connection != r.connection {
		r.connection = s.Connection
		if line := connectionNotice(s.Connection); line != "" {
			fmt.Fprintln(r.w, r.paint(noticeStyle, line))
		}
	}
	if s.Pairing != r.pairing {
		r.pairing = s.Pairing
		if line := pairingNotice(s.Pairing); line != "" {
			fmt.Fprintln(r.w, r.paint(noticeStyle, line))
		}
	}

	// The transcript was replaced or cleared: start over.
	if len(s.Entries) < r.printed || (len(s.Entries) > 0 && s.Entries[0].ID != r.first) {
		r.printed = 0
	}
	if len(s.Entries) > 0 {
		r.first = s.Entries[0].ID
	} else {
		r.first = uuid.Nil
	}
	for _, e := range s.Entries[r.printed:] {
		fmt.Fprintln(r.w, r.formatEntry(e))
	}
	r.printed = len(s.Entries)
}

func (r *renderer) formatEntry(e session.Entry) string {
	switch e.Role {
	case session.RoleSelf, session.RolePeer:
		label := r.paint(roleStyles[e.Role], e.Role.String()+":")
		stamp := ""
		if !e.Timestamp.IsZero() {
			stamp = r.paint(roleStyles[session.RoleSystem], e.Timestamp.Local().Format("15:04")) + " "
		}
		return stamp + label + " " + e.Content
	case session.RoleError:
		return r.paint(roleStyles[e.Role], "! "+e.Content)
	default:
		return r.paint(roleStyles[e.Role], "* "+e.Content)
	}
}

func connectionNotice(s transport.State) string {
	switch s {
	case transport.StateConnecting:
		return "Connecting..."
	case transport.StateOpen:
		return "Connected."
	case transport.StateManuallyClosed:
		return "Disconnected. Type /next to start a new chat."
	case transport.StateFailed:
		return "Offline. Type /next to try again."
	default:
		return ""
	}
}

func pairingNotice(p session.PairingState) string {
	switch p {
	case session.WaitingForPartner:
		return "Looking for a stranger..."
	case session.Paired:
		return "Stranger found."
	default:
		return ""
	}
}

func renderStatus(w io.Writer, st client.Status) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Connection", "Pairing", "Online", "Reconnect", "Messages"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(true)
	reconnect := "-"
	if st.Connection == transport.StateReconnecting {
		reconnect = fmt.Sprintf("%d/%d", st.Attempt, st.MaxAttempts)
	}
	messages := lo.CountBy(st.Entries, func(e session.Entry) bool {
		return e.Role == session.RoleSelf || e.Role == session.RolePeer
	})
	table.Append([]string{
		st.Connection.String(),
		st.Pairing.String(),
		fmt.Sprint(st.OnlineCount),
		reconnect,
		fmt.Sprint(messages),
	})
	table.Render()
}

func renderProfile(w io.Writer, rows [][2]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	for _, row := range rows {
		value := row[1]
		if strings.TrimSpace(value) == "" {
			value = "-"
		}
		table.Append([]string{row[0], value})
	}
	table.Render()
}
