package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripMention(t *testing.T) {
	cases := []struct {
		name, text, bot, want string
		mentioned            bool
	}{
		{"tagged", "<@UBOT> my vpn is down", "UBOT", "my vpn is down", true},
		{"tagged with label", "hey <@UBOT|helpdesk> printer", "UBOT", "hey  printer", true},
		{"other user", "<@UOTHER> lunch?", "UBOT", "<@UOTHER> lunch?", false},
		{"no bot id", "<@UBOT> hi", "", "<@UBOT> hi", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, mentioned := StripMention(tc.text, tc.bot)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.mentioned, mentioned)
		})
	}
}

func TestEvent_IsDirect(t *testing.T) {
	assert.True(t, Event{ChannelType: "im", ChannelID: "C1"}.IsDirect())
	assert.False(t, Event{ChannelType: "channel", ChannelID: "D1"}.IsDirect())
	assert.True(t, Event{ChannelID: "D0123"}.IsDirect())
	assert.False(t, Event{ChannelID: "C0123"}.IsDirect())
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder()
	r.Profiles["U1"] = Profile{DisplayName: "Jane", Email: "jane@example.com"}

	require.NoError(t, r.SendPublic(ctx, "C1", Text("hello")))
	require.NoError(t, r.SendDirect(ctx, "U1", Text("dm")))
	require.NoError(t, r.PublishHome(ctx, "U1", Text("home")))
	r.FailEphemeral = true
	assert.Error(t, r.SendEphemeral(ctx, "C1", "U1", Text("secret")))

	d := r.Deliveries()
	require.Len(t, d, 3)
	assert.Equal(t, KindPublic, d[0].Kind)
	assert.Equal(t, KindDirect, d[1].Kind)
	assert.Equal(t, KindHome, d[2].Kind)
	assert.Equal(t, "U1", d[2].UserID)

	p, err := r.LookupUser(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", p.DisplayName)

	_, err = r.LookupUser(ctx, "U2")
	assert.ErrorIs(t, err, ErrProfileLookup)
}

type slackCall struct {
	method string
	form   map[string]string
	body   string
}

func fakeSlack(t *testing.T) (*httptest.Server, func() []slackCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []slackCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.TrimPrefix(r.URL.Path, "/")
		call := slackCall{method: method, form: map[string]string{}}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			b, _ := io.ReadAll(r.Body)
			call.body = string(b)
		} else {
			_ = r.ParseForm()
			for k := range r.PostForm {
				call.form[k] = r.PostForm.Get(k)
			}
		}
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "users.info":
			_, _ = w.Write([]byte(`{"ok":true,"user":{"id":"U1","name":"jdoe","real_name":"","profile":{"email":"jdoe@example.com"}}}`))
		case "views.open", "views.publish":
			_, _ = w.Write([]byte(`{"ok":true,"view":{"id":"V1"}}`))
		case "chat.postEphemeral":
			_, _ = w.Write([]byte(`{"ok":true,"message_ts":"1.2"}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1.1"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []slackCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]slackCall(nil), calls...)
	}
}

func TestSlack_SendRendersBlocks(t *testing.T) {
	srv, calls := fakeSlack(t)
	s := NewSlack("xoxb-test", srv.URL, nil)

	msg := Message{
		Header: "Troubleshooting Step 1/5",
		Text:   "*Restart*",
		Buttons: []Button{
			{ActionID: ActionStepSolved, Text: "It worked!", Value: `{"step":1}`, Style: StylePrimary},
		},
	}
	require.NoError(t, s.SendPublic(context.Background(), "C1", msg))
	require.NoError(t, s.SendEphemeral(context.Background(), "C1", "U1", Text("just you")))

	got := calls()
	require.Len(t, got, 2)
	assert.Equal(t, "chat.postMessage", got[0].method)
	assert.Equal(t, "C1", got[0].form["channel"])
	assert.Contains(t, got[0].form["blocks"], ActionStepSolved)
	assert.Contains(t, got[0].form["blocks"], `"type":"header"`)

	assert.Equal(t, "chat.postEphemeral", got[1].method)
	assert.Equal(t, "U1", got[1].form["user"])
}

func TestSlack_LookupUserFallsBackToHandle(t *testing.T) {
	srv, _ := fakeSlack(t)
	s := NewSlack("xoxb-test", srv.URL, nil)

	p, err := s.LookupUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", p.DisplayName)
	assert.Equal(t, "jdoe@example.com", p.Email)
}

func TestSlack_OpenForm(t *testing.T) {
	srv, calls := fakeSlack(t)
	s := NewSlack("xoxb-test", srv.URL, nil)

	form := Form{
		CallbackID:  CallbackSubmitForm,
		Title:       "Report an IT Issue",
		SubmitLabel: "Submit",
		Fields: []FormField{
			{BlockID: "desc_block", ActionID: "desc", Label: "Description", Multiline: true},
			{BlockID: "type_block", ActionID: "type", Label: "Category", Options: []Option{{Label: "Other", Value: "other"}}},
		},
	}
	require.NoError(t, s.OpenForm(context.Background(), "trigger-1", form))

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "views.open", got[0].method)

	var req struct {
		TriggerID string          `json:"trigger_id"`
		View      json.RawMessage `json:"view"`
	}
	require.NoError(t, json.Unmarshal([]byte(got[0].body), &req))
	assert.Equal(t, "trigger-1", req.TriggerID)
	assert.Contains(t, string(req.View), CallbackSubmitForm)
	assert.Contains(t, string(req.View), "static_select")
}

func TestSlack_PublishHome(t *testing.T) {
	srv, calls := fakeSlack(t)
	s := NewSlack("xoxb-test", srv.URL, nil)

	home := Message{
		Text:    "*Hey <@U1>*",
		Buttons: []Button{{ActionID: ActionReportIssue, Text: "Report an Issue", Value: "report", Style: StylePrimary}},
	}
	require.NoError(t, s.PublishHome(context.Background(), "U1", home))

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "views.publish", got[0].method)

	var req struct {
		UserID string          `json:"user_id"`
		View   json.RawMessage `json:"view"`
	}
	require.NoError(t, json.Unmarshal([]byte(got[0].body), &req))
	assert.Equal(t, "U1", req.UserID)
	assert.Contains(t, string(req.View), `"type":"home"`)
	assert.Contains(t, string(req.View), ActionReportIssue)
}

func sign(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + ts + ":"))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyRequest(t *testing.T) {
	body := []byte(`{"type":"event_callback"}`)
	now := strconv.FormatInt(time.Now().Unix(), 10)

	h := http.Header{}
	h.Set("X-Slack-Request-Timestamp", now)
	h.Set("X-Slack-Signature", sign("s3cret", now, body))
	assert.NoError(t, VerifyRequest(h, body, "s3cret"))

	assert.ErrorIs(t, VerifyRequest(h, body, "other"), ErrBadSignature)

	old := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	h.Set("X-Slack-Request-Timestamp", old)
	h.Set("X-Slack-Signature", sign("s3cret", old, body))
	assert.ErrorIs(t, VerifyRequest(h, body, "s3cret"), ErrBadSignature)
}
