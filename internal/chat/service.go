package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/suPer8Hu/helpdesk-triage/internal/common"
	"github.com/suPer8Hu/helpdesk-triage/internal/kb"
	"github.com/suPer8Hu/helpdesk-triage/internal/messaging"
	"github.com/suPer8Hu/helpdesk-triage/internal/resolver"
	"github.com/suPer8Hu/helpdesk-triage/internal/ticketing"
	"github.com/suPer8Hu/helpdesk-triage/internal/ticketmap"
)

const (
	reasonMaxAttempts = "Reached maximum troubleshooting steps"
	reasonNoMoreSteps = "No more steps in guide"
)

type Resolver interface {
	ResolveIntent(ctx context.Context, text string) resolver.Intent
	ResolveSteps(ctx context.Context, description string, forceFallback bool) []string
}

type Articles interface {
	Find(query string) *kb.Article
	FindByName(name string) *kb.Article
}

type Tickets interface {
	CreateTicket(ctx context.Context, req ticketing.TicketRequest) (*ticketing.Ticket, error)
}

type Mappings interface {
	Put(ctx context.Context, ticketID, requesterID, channelID, ticketType string) (ticketmap.Mapping, error)
}

type Deps struct {
	Resolver  Resolver
	Articles  Articles
	Tickets   Tickets
	Mappings  Mappings
	Messenger messaging.Messenger
	Log       *slog.Logger
}

type Options struct {
	MaxAttempts      int
	StepsTimeout     time.Duration
	HistoryLimit     int
	SerializePerUser bool
}

// Service drives each user's conversation: ticket data gathering, the
// troubleshooting loop and ticket finalization.
type Service struct {
	repo     *Repo
	res      Resolver
	articles Articles
	tickets  Tickets
	mappings Mappings
	msgr     messaging.Messenger
	opts     Options
	locks    *keyedMutex
	log      *slog.Logger
	now      func() time.Time
}

func NewService(repo *Repo, deps Deps, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:     repo,
		res:      deps.Resolver,
		articles: deps.Articles,
		tickets:  deps.Tickets,
		mappings: deps.Mappings,
		msgr:     deps.Messenger,
		opts:     opts,
		locks:    newKeyedMutex(),
		log:      log,
		now:      time.Now,
	}
}

// WithMessenger returns a Service that replies through m. Sessions and
// per-user locks are shared with s.
func (s *Service) WithMessenger(m messaging.Messenger) *Service {
	c := *s
	c.msgr = m
	return &c
}

// Session exposes the stored session, mostly for the JSON API and tests.
func (s *Service) Session(ctx context.Context, userID string) (*Session, error) {
	return s.repo.Get(ctx, userID)
}

func (s *Service) lock(userID string) func() {
	if !s.opts.SerializePerUser {
		return func() {}
	}
	return s.locks.Lock(userID)
}

// HandleMessage processes text addressed to the bot: a DM or a mention.
func (s *Service) HandleMessage(ctx context.Context, ev messaging.Event) error {
	unlock := s.lock(ev.UserID)
	defer unlock()
	return s.handle(ctx, ev, nil)
}

// HandleAmbient processes a channel message that did not mention the bot.
// It is engaged only when the user is already in a conversation or the text
// reads as an actionable IT issue. The bool reports whether it engaged.
func (s *Service) HandleAmbient(ctx context.Context, ev messaging.Event) (bool, error) {
	if ev.IsDirect() {
		return true, s.HandleMessage(ctx, ev)
	}
	unlock := s.lock(ev.UserID)
	defer unlock()

	sess, err := s.repo.Get(ctx, ev.UserID)
	if err != nil {
		return false, err
	}
	if sess.InConversation() {
		return true, s.handle(ctx, ev, nil)
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return false, nil
	}
	in := s.res.ResolveIntent(ctx, text)
	if !in.Actionable() {
		s.log.Debug("ambient message ignored", "user", ev.UserID, "channel", ev.ChannelID, "action", in.Action)
		return false, nil
	}
	return true, s.handle(ctx, ev, &in)
}

func (s *Service) handle(ctx context.Context, ev messaging.Event, pre *resolver.Intent) error {
	sess, err := s.repo.Get(ctx, ev.UserID)
	if err != nil {
		s.log.Error("load session failed", "user", ev.UserID, "error", err)
		s.say(ctx, ev, messaging.Text(msgUnexpected))
		return err
	}

	text := strings.TrimSpace(ev.Text)
	sess.addHistory(RoleUser, text, s.now(), s.opts.HistoryLimit)

	switch sess.State {
	case StateAwaitingEmpIDQuick, StateAwaitingEmpID, StateAwaitingHostname:
		return s.gather(ctx, ev, sess, text, pre)
	}
	return s.route(ctx, ev, sess, text, pre)
}

// gather consumes text as the datum the current state is waiting for.
func (s *Service) gather(ctx context.Context, ev messaging.Event, sess *Session, text string, pre *resolver.Intent) error {
	d := sess.PendingTicket
	if d == nil {
		s.log.Warn("pending state without draft, resetting", "user", ev.UserID, "state", sess.State)
		sess.State = StateIdle
		return s.route(ctx, ev, sess, text, pre)
	}
	if text == "" {
		prompt := msgAskEmpIDAgain
		if sess.State == StateAwaitingHostname {
			prompt = msgAskHostnameNext
		}
		s.reply(ctx, ev, sess, messaging.Text(prompt))
		return s.repo.Save(ctx, sess)
	}

	switch sess.State {
	case StateAwaitingEmpIDQuick:
		d.EmpID = text
		return s.finalize(ctx, ev, sess)
	case StateAwaitingEmpID:
		d.EmpID = text
		if strings.EqualFold(d.Type, "biometric") {
			return s.finalize(ctx, ev, sess)
		}
		sess.State = StateAwaitingHostname
		s.reply(ctx, ev, sess, messaging.Text(msgAskHostname))
		return s.repo.Save(ctx, sess)
	default:
		d.Hostname = text
		return s.finalize(ctx, ev, sess)
	}
}

// route picks a branch for an idle user. Ticket phrasing wins over a
// knowledge-base hit, which wins over a full resolution.
func (s *Service) route(ctx context.Context, ev messaging.Event, sess *Session, text string, pre *resolver.Intent) error {
	if text == "" {
		return s.repo.Save(ctx, sess)
	}
	if typ, ok := resolver.IsQuickTicketRequest(text); ok {
		return s.startQuickTicket(ctx, ev, sess, typ, text)
	}
	if resolver.IsTicketRequest(text) {
		return s.startTicket(ctx, ev, sess, s.guessIssueType(text), text)
	}
	if a := s.articles.Find(text); a != nil && len(a.Steps) > 0 {
		s.log.Info("knowledge base match", "user", ev.UserID, "article", a.ID)
		return s.startArticle(ctx, ev, sess, a)
	}

	var in resolver.Intent
	if pre != nil {
		in = *pre
	} else {
		in = s.res.ResolveIntent(ctx, text)
	}
	s.log.Info("intent resolved",
		"user", ev.UserID,
		"action", in.Action,
		"issue_type", in.IssueType,
		"source", in.Source,
	)

	switch {
	case in.Action == resolver.ActionQuickTicket:
		return s.startQuickTicket(ctx, ev, sess, in.IssueType, text)
	case in.Action == resolver.ActionCreateTicket:
		return s.startTicket(ctx, ev, sess, in.IssueType, text)
	case in.Action == resolver.ActionTroubleshoot, in.NeedsTroubleshooting, in.Answer() == "":
		return s.troubleshoot(ctx, ev, sess, in, text)
	}

	s.reply(ctx, ev, sess, answerMessage(in.Answer()))
	return s.repo.Save(ctx, sess)
}

func (s *Service) guessIssueType(text string) string {
	if a := s.articles.Find(text); a != nil && a.IssueType != "" {
		return a.IssueType
	}
	return "general"
}

func (s *Service) startQuickTicket(ctx context.Context, ev messaging.Event, sess *Session, ticketType, text string) error {
	sess.beginDraft(StateAwaitingEmpIDQuick, &TicketDraft{
		Type:          ticketType,
		IsQuickTicket: true,
		Description:   "User request: " + text,
	})
	s.reply(ctx, ev, sess, messaging.Text(quickTicketPrompt(ticketType)))
	return s.repo.Save(ctx, sess)
}

func (s *Service) startTicket(ctx context.Context, ev messaging.Event, sess *Session, issueType, text string) error {
	if issueType == "" {
		issueType = "general"
	}
	sess.beginDraft(StateAwaitingEmpID, &TicketDraft{
		Subject:     "Support Request: " + TypeName(issueType),
		Description: "User message: " + text,
		Type:        issueType,
	})
	s.reply(ctx, ev, sess, messaging.Text(msgAskEmpID))
	return s.repo.Save(ctx, sess)
}

func (s *Service) startArticle(ctx context.Context, ev messaging.Event, sess *Session, a *kb.Article) error {
	sess.startTroubleshooting(a)
	s.reply(ctx, ev, sess, stepMessage(a.Steps[0], 1, len(a.Steps), a.ID))
	return s.repo.Save(ctx, sess)
}

func (s *Service) troubleshoot(ctx context.Context, ev messaging.Event, sess *Session, in resolver.Intent, text string) error {
	a := s.articles.Find(in.IssueType)
	if in.SuggestedArticle != nil {
		if named := s.articles.FindByName(*in.SuggestedArticle); named != nil {
			a = named
		}
	}

	if a == nil || len(a.Steps) == 0 {
		s.reply(ctx, ev, sess, messaging.Text(msgNoGuide))
		a = s.synthesize(ctx, text)
	}
	if a == nil {
		sess.beginDraft(StateAwaitingEmpID, &TicketDraft{
			Subject:     "No Steps Found: " + truncate(text, 30),
			Description: "Could not generate or find steps for user request: " + text,
			Type:        "general",
		})
		s.reply(ctx, ev, sess, messaging.Text(msgNoSteps))
		return s.repo.Save(ctx, sess)
	}
	return s.startArticle(ctx, ev, sess, a)
}

// synthesize builds a throwaway article from generated steps.
func (s *Service) synthesize(ctx context.Context, text string) *kb.Article {
	steps := s.generateSteps(ctx, text)
	if len(steps) == 0 {
		return nil
	}
	return &kb.Article{
		ID:        "dynamic_" + common.NewULID(s.now()),
		Title:     "Dynamic Help: " + truncate(text, 30),
		IssueType: "general",
		Steps:     steps,
		Synthetic: true,
	}
}

// generateSteps bounds the whole step generation by StepsTimeout and falls
// back to the canned steps when it runs out.
func (s *Service) generateSteps(ctx context.Context, text string) []string {
	if s.opts.StepsTimeout <= 0 {
		return s.res.ResolveSteps(ctx, text, false)
	}
	sctx, cancel := context.WithTimeout(ctx, s.opts.StepsTimeout)
	defer cancel()

	done := make(chan []string, 1)
	go func() { done <- s.res.ResolveSteps(sctx, text, false) }()

	select {
	case steps := <-done:
		return steps
	case <-sctx.Done():
		s.log.Warn("step generation timed out, using fallback steps", "timeout", s.opts.StepsTimeout)
		return s.res.ResolveSteps(ctx, text, true)
	}
}

// StepSolved ends the troubleshooting session.
func (s *Service) StepSolved(ctx context.Context, ev messaging.Event) error {
	unlock := s.lock(ev.UserID)
	defer unlock()

	s.say(ctx, ev, messaging.Text(msgSolved))
	s.log.Info("issue resolved by troubleshooting", "user", ev.UserID)
	return s.repo.Clear(ctx, ev.UserID)
}

// StepFailed advances to the step after shownStep, or hands off to ticket
// data gathering once attempts or steps run out.
func (s *Service) StepFailed(ctx context.Context, ev messaging.Event, shownStep int) error {
	unlock := s.lock(ev.UserID)
	defer unlock()

	sess, err := s.repo.Get(ctx, ev.UserID)
	if err != nil {
		s.say(ctx, ev, messaging.Text(msgUnexpected))
		return err
	}
	if sess.TicketCreated {
		s.log.Debug("ticket flow already started, ignoring step failure", "user", ev.UserID)
		return nil
	}
	a := sess.CurrentArticle
	if a == nil {
		s.say(ctx, ev, messaging.Text(msgSessionLost))
		return nil
	}
	if shownStep <= 0 {
		shownStep = sess.Step
	}

	sess.Attempts++
	total := len(a.Steps)
	if sess.Attempts >= s.opts.MaxAttempts || shownStep >= total {
		reason := reasonNoMoreSteps
		if sess.Attempts >= s.opts.MaxAttempts {
			reason = reasonMaxAttempts
		}
		issueType := a.IssueType
		if issueType == "" {
			issueType = "general"
		}
		attempts := sess.Attempts
		desc := fmt.Sprintf("User attempted troubleshooting for %s but was not resolved after %d steps.\n\nSummary: %s",
			a.Title, attempts, reason)

		sess.TicketCreated = true
		sess.beginDraft(StateAwaitingEmpID, &TicketDraft{
			Subject:     "Unresolved Issue: " + a.Title,
			Description: desc,
			Type:        issueType,
		})
		s.log.Info("troubleshooting exhausted", "user", ev.UserID, "article", a.ID, "attempts", attempts, "reason", reason)
		s.reply(ctx, ev, sess, messaging.Text(unresolvedPrompt(reason)))
		return s.repo.Save(ctx, sess)
	}

	next := shownStep + 1
	sess.Step = next
	s.reply(ctx, ev, sess, stepMessage(a.Steps[next-1], next, total, a.ID))
	return s.repo.Save(ctx, sess)
}

// finalize creates the drafted ticket. On failure the session keeps the
// gathered data so the user can retry.
func (s *Service) finalize(ctx context.Context, ev messaging.Event, sess *Session) error {
	if _, err := s.createTicket(ctx, ev, *sess.PendingTicket); err != nil {
		s.log.Error("ticket creation failed", "user", ev.UserID, "error", err)
		s.reply(ctx, ev, sess, messaging.Text(finalizeFailedPrompt(sess.State)))
		return s.repo.Save(ctx, sess)
	}
	return s.repo.Clear(ctx, ev.UserID)
}

// FinalizeTicket creates a ticket from d for the event's user and clears
// their session. Nothing is cleared when creation fails.
func (s *Service) FinalizeTicket(ctx context.Context, ev messaging.Event, d TicketDraft) (*ticketing.Ticket, error) {
	unlock := s.lock(ev.UserID)
	defer unlock()

	t, err := s.createTicket(ctx, ev, d)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Clear(ctx, ev.UserID); err != nil {
		s.log.Warn("clear session failed", "user", ev.UserID, "error", err)
	}
	return t, nil
}

func (s *Service) createTicket(ctx context.Context, ev messaging.Event, d TicketDraft) (*ticketing.Ticket, error) {
	name, email := s.requester(ctx, ev.UserID)

	subject, kind := d.Subject, kindStandard
	if d.IsQuickTicket {
		subject, kind = fmt.Sprintf("%s - %s", TypeName(d.Type), d.EmpID), kindQuick
	}

	t, err := s.tickets.CreateTicket(ctx, ticketing.TicketRequest{
		Subject:        subject,
		Description:    ticketBody(d),
		RequesterEmail: email,
		RequesterName:  name,
	})
	if err != nil {
		return nil, err
	}
	ticketsCreated.WithLabelValues(kind).Inc()

	id := t.ID.String()
	s.log.Info("ticket created", "ticket_id", id, "user", ev.UserID, "type", d.Type, "kind", kind)
	if _, err := s.mappings.Put(ctx, id, ev.UserID, ev.ChannelID, d.Type); err != nil {
		s.log.Warn("store ticket mapping failed", "ticket_id", id, "error", err)
	}
	s.announce(ctx, ev, ticketCreatedMessage(id))
	return t, nil
}

// requester never fails: a lookup error yields placeholders.
func (s *Service) requester(ctx context.Context, userID string) (name, email string) {
	name, email = placeholderName, placeholderEmail
	p, err := s.msgr.LookupUser(ctx, userID)
	if err != nil {
		s.log.Warn("profile lookup failed, using placeholders", "user", userID, "error", err)
		return name, email
	}
	if p.DisplayName != "" {
		name = p.DisplayName
	}
	if p.Email != "" {
		email = p.Email
	}
	return name, email
}

// PublishHome renders the user's home tab.
func (s *Service) PublishHome(ctx context.Context, userID string) error {
	if err := s.msgr.PublishHome(ctx, userID, homeMessage(userID)); err != nil {
		return fmt.Errorf("publish home: %w", err)
	}
	return nil
}

// ReportIssue opens the report-issue form.
func (s *Service) ReportIssue(ctx context.Context, triggerID string) error {
	if err := s.msgr.OpenForm(ctx, triggerID, reportIssueForm()); err != nil {
		return fmt.Errorf("open report form: %w", err)
	}
	return nil
}

// SubmitIssueForm creates a ticket straight from the report-issue form and
// confirms by direct message.
func (s *Service) SubmitIssueForm(ctx context.Context, userID, category, description string) (*ticketing.Ticket, error) {
	name, email := s.requester(ctx, userID)
	t, err := s.tickets.CreateTicket(ctx, ticketing.TicketRequest{
		Subject:        "New Issue: " + categoryLabel(category),
		Description:    description,
		RequesterEmail: email,
		RequesterName:  name,
	})
	if err != nil {
		s.log.Error("form ticket creation failed", "user", userID, "error", err)
		if derr := s.msgr.SendDirect(ctx, userID, messaging.Text(msgFormFailed)); derr != nil {
			s.log.Error("direct message failed", "user", userID, "error", derr)
		}
		return nil, err
	}
	ticketsCreated.WithLabelValues(kindForm).Inc()

	id := t.ID.String()
	if category == "" {
		category = "other"
	}
	if _, err := s.mappings.Put(ctx, id, userID, "", category); err != nil {
		s.log.Warn("store ticket mapping failed", "ticket_id", id, "error", err)
	}
	if err := s.msgr.SendDirect(ctx, userID, ticketCreatedMessage(id)); err != nil {
		s.log.Error("direct message failed", "user", userID, "error", err)
	}
	return t, nil
}

// reply sends privately and records the text in the session history.
func (s *Service) reply(ctx context.Context, ev messaging.Event, sess *Session, msg messaging.Message) {
	s.say(ctx, ev, msg)
	sess.addHistory(RoleAssistant, msg.Plain(), s.now(), s.opts.HistoryLimit)
}

// say answers in the DM, or ephemerally in a channel with a public message
// as the fallback.
func (s *Service) say(ctx context.Context, ev messaging.Event, msg messaging.Message) {
	var err error
	switch {
	case ev.ChannelID == "":
		err = s.msgr.SendDirect(ctx, ev.UserID, msg)
	case ev.IsDirect():
		err = s.msgr.SendPublic(ctx, ev.ChannelID, msg)
	default:
		if err = s.msgr.SendEphemeral(ctx, ev.ChannelID, ev.UserID, msg); err != nil {
			s.log.Warn("ephemeral reply failed, posting publicly", "channel", ev.ChannelID, "error", err)
			err = s.msgr.SendPublic(ctx, ev.ChannelID, msg)
		}
	}
	if err != nil {
		s.log.Error("reply failed", "user", ev.UserID, "channel", ev.ChannelID, "error", err)
	}
}

// announce posts publicly in the originating channel.
func (s *Service) announce(ctx context.Context, ev messaging.Event, msg messaging.Message) {
	var err error
	if ev.ChannelID == "" {
		err = s.msgr.SendDirect(ctx, ev.UserID, msg)
	} else {
		err = s.msgr.SendPublic(ctx, ev.ChannelID, msg)
	}
	if err != nil {
		s.log.Error("announcement failed", "user", ev.UserID, "channel", ev.ChannelID, "error", err)
	}
}
