package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/helpdesk-triage/internal/logger"
	"github.com/suPer8Hu/helpdesk-triage/internal/messaging"
	"github.com/suPer8Hu/helpdesk-triage/internal/store"
	"github.com/suPer8Hu/helpdesk-triage/internal/ticketmap"
)

type fakeReplies struct {
	reply string
	found bool
	err   error
	calls int
}

func (f *fakeReplies) LatestReply(_ context.Context, _ string) (string, bool, error) {
	f.calls++
	return f.reply, f.found, f.err
}

func TestParseUpdate(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Update
	}{
		{
			name: "nested",
			body: `{"ticket":{"id":"TEST-001","subject":"Domain Lock - DC5365","status":4,"status_name":"Resolved","latest_note":"Account unlocked","responder_name":"Automation"}}`,
			want: Update{TicketID: "TEST-001", Subject: "Domain Lock - DC5365", Status: 4, StatusName: "Resolved", LatestNote: "Account unlocked", ResponderName: "Automation"},
		},
		{
			name: "top level numeric id and string status",
			body: `{"id":42,"subject":"VPN","status":"2"}`,
			want: Update{TicketID: "42", Subject: "VPN", Status: 2},
		},
		{
			name: "ticket_id and status word",
			body: `{"ticket":{"ticket_id":"7","status":"Closed"}}`,
			want: Update{TicketID: "7", StatusName: "Closed"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseUpdate([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseUpdate([]byte(`{"ticket":{"subject":"no id"}}`))
	assert.ErrorIs(t, err, ErrInvalidUpdate)
	_, err = ParseUpdate([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidUpdate)
}

func TestUpdate_Terminal(t *testing.T) {
	assert.True(t, Update{Status: StatusResolved}.Terminal())
	assert.True(t, Update{StatusName: "closed"}.Terminal())
	assert.False(t, Update{Status: StatusOpen, StatusName: "Open"}.Terminal())
	assert.Equal(t, "Pending", Update{Status: StatusPending}.StatusLabel())
}

type handlerHarness struct {
	h       *Handler
	maps    *ticketmap.Store
	replies *fakeReplies
	msgs    *messaging.Recorder
}

func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()
	hh := &handlerHarness{
		maps:    ticketmap.NewStore(store.NewMemoryStore(), nil, 0, logger.Discard()),
		replies: &fakeReplies{},
		msgs:    messaging.NewRecorder(),
	}
	hh.h = NewHandler(hh.maps, hh.replies, hh.msgs, logger.Discard())
	return hh
}

func TestHandle_NoMapping(t *testing.T) {
	hh := newHandlerHarness(t)

	out, err := hh.h.Handle(context.Background(), Update{TicketID: "404", Status: StatusResolved})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMapping, out)
	assert.Empty(t, hh.msgs.Deliveries())
}

func TestHandle_SensitiveResolvedGoesPrivateOnly(t *testing.T) {
	hh := newHandlerHarness(t)
	ctx := context.Background()
	_, err := hh.maps.Put(ctx, "100", "U1", "C-general", "password_reset")
	require.NoError(t, err)
	hh.replies.reply, hh.replies.found = "Your temporary password is TempPass123!", true

	out, err := hh.h.Handle(ctx, Update{TicketID: "100", Status: StatusResolved, LatestNote: "note must not leak"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeliveredPrivate, out)

	d := hh.msgs.Deliveries()
	require.Len(t, d, 1)
	assert.Equal(t, messaging.KindDirect, d[0].Kind)
	assert.Equal(t, "U1", d[0].UserID)
	assert.Empty(t, d[0].ChannelID)
	assert.Contains(t, d[0].Message.Text, "TempPass123!")
	assert.NotContains(t, d[0].Message.Text, "note must not leak")
}

func TestHandle_SensitiveWithoutReplySendsNothing(t *testing.T) {
	hh := newHandlerHarness(t)
	ctx := context.Background()
	_, err := hh.maps.Put(ctx, "101", "U1", "C1", "domain_lock")
	require.NoError(t, err)

	out, err := hh.h.Handle(ctx, Update{TicketID: "101", Status: StatusResolved})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoReply, out)
	assert.Empty(t, hh.msgs.Deliveries())
	assert.Equal(t, 1, hh.replies.calls)
}

func TestHandle_SensitiveReplyErrorIsRetryable(t *testing.T) {
	hh := newHandlerHarness(t)
	ctx := context.Background()
	_, err := hh.maps.Put(ctx, "102", "U1", "C1", "domain_lock")
	require.NoError(t, err)
	hh.replies.err = errors.New("freshservice down")

	out, err := hh.h.Handle(ctx, Update{TicketID: "102"})
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, out)
}

func TestHandle_StatusWording(t *testing.T) {
	hh := newHandlerHarness(t)
	ctx := context.Background()
	_, err := hh.maps.Put(ctx, "200", "U2", "C1", "vpn_issue")
	require.NoError(t, err)

	cases := []struct {
		update Update
		want   string
	}{
		{Update{TicketID: "200", Subject: "VPN", Status: StatusResolved, StatusName: "Resolved"}, "has been *Resolved*"},
		{Update{TicketID: "200", Status: StatusOpen, LatestNote: "Looking into it", ResponderName: "IT Support"}, "> Looking into it"},
		{Update{TicketID: "200", Status: StatusPending}, "changed to *Pending*"},
	}
	for _, tc := range cases {
		hh.msgs.Reset()
		out, err := hh.h.Handle(ctx, tc.update)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDeliveredStatus, out)

		d := hh.msgs.Deliveries()
		require.Len(t, d, 1)
		assert.Equal(t, messaging.KindDirect, d[0].Kind)
		assert.Equal(t, "U2", d[0].UserID)
		assert.Contains(t, d[0].Message.Text, tc.want)
	}
	assert.Zero(t, hh.replies.calls)
}

func TestJobRoundTrip(t *testing.T) {
	j := NewJob(Update{TicketID: "9", Status: StatusClosed}, time.Now())
	b, err := j.Encode()
	require.NoError(t, err)

	got, err := DecodeJob(b)
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, "9", got.Update.TicketID)

	_, err = DecodeJob([]byte(`{"job_id":"x"}`))
	assert.Error(t, err)
}
