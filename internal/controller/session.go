// Package controller runs the per-connection interaction state machines:
// the connect button, the post form and one like button per rendered post.
// Each element goes idle -> busy -> idle around its asynchronous call and
// ignores actions while busy.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/blackmichael/onchain-posts/internal/contract"
	"github.com/blackmichael/onchain-posts/internal/domain"
	"github.com/blackmichael/onchain-posts/internal/journal"
	"github.com/blackmichael/onchain-posts/internal/render"
	"github.com/blackmichael/onchain-posts/internal/wallet"
)

const (
	connectElement = "connect"
	submitElement  = "submit"

	noProviderMessage = "No wallet provider detected. Please install a wallet."
)

func likeElement(id uint64) string {
	return "like:" + strconv.FormatUint(id, 10)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Wallet   domain.Wallet
	Contract domain.PostContract
	Renderer *render.Renderer
	Recorder domain.Recorder
}

// Session holds the interaction state of one connected page. Nothing is
// persisted; a reload starts a fresh session.
type Session struct {
	id     string
	deps   Deps
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	account  domain.Account
	busy     map[string]struct{}
	likes    map[uint64]uint64 // post id -> count from the newest render
	issued   uint64            // last refresh sequence number handed out
	rendered uint64            // newest sequence number pushed to the page

	renderMu sync.Mutex
	wg       sync.WaitGroup
}

// NewSession creates a disconnected session.
func NewSession(id string, deps Deps, sink Sink, logger *slog.Logger) *Session {
	return &Session{
		id:     id,
		deps:   deps,
		sink:   sink,
		logger: logger.With("session", id),
		busy:   make(map[string]struct{}),
		likes:  make(map[uint64]uint64),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Account returns the connected account, or "" while disconnected.
func (s *Session) Account() domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Dispatch starts handling a. It returns false when the action was ignored:
// unknown, malformed, its element is busy, or it needs an account and none
// is connected.
func (s *Session) Dispatch(ctx context.Context, a Action) bool {
	switch a.Action {
	case ActionConnect:
		return s.spawn(ctx, connectElement, s.connect)

	case ActionSubmit:
		account, ok := s.requireAccount(a.Action)
		if !ok {
			return false
		}
		return s.spawn(ctx, submitElement, func(ctx context.Context) {
			s.submit(ctx, account, a.Content)
		})

	case ActionLike:
		account, ok := s.requireAccount(a.Action)
		if !ok {
			return false
		}
		id, err := strconv.ParseUint(a.ID, 10, 64)
		if err != nil {
			s.logger.Warn("ignoring like with invalid post id", "id", a.ID, "error", err)
			return false
		}
		author := domain.Account(a.Author)
		return s.spawn(ctx, likeElement(id), func(ctx context.Context) {
			s.like(ctx, account, author, id)
		})

	default:
		s.logger.Warn("ignoring unknown action", "action", a.Action)
		return false
	}
}

// Wait blocks until every dispatched action has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) requireAccount(action string) (domain.Account, bool) {
	account := s.Account()
	if account == "" {
		s.logger.Warn("ignoring action without a connected wallet", "action", action)
		return "", false
	}
	return account, true
}

// spawn runs fn in its own goroutine with element marked busy for its
// whole duration.
func (s *Session) spawn(ctx context.Context, element string, fn func(context.Context)) bool {
	s.mu.Lock()
	if _, busy := s.busy[element]; busy {
		s.mu.Unlock()
		s.logger.Debug("element busy, ignoring action", "element", element)
		return false
	}
	s.busy[element] = struct{}{}
	s.mu.Unlock()

	s.send(ctx, Event{Type: EventState, Element: element, State: StateBusy})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.busy, element)
			s.mu.Unlock()
			s.send(ctx, Event{Type: EventState, Element: element, State: StateIdle})
		}()
		fn(ctx)
	}()
	return true
}

func (s *Session) connect(ctx context.Context) {
	account, err := s.deps.Wallet.Connect(ctx)
	switch {
	case errors.Is(err, wallet.ErrNoProvider):
		s.send(ctx, Event{Type: EventMessage, Text: noProviderMessage})
		return
	case errors.Is(err, wallet.ErrDeclined):
		s.logger.Info("wallet connection declined")
		return
	case err != nil:
		s.logger.Error("wallet connection failed", "error", err)
		return
	}

	s.mu.Lock()
	s.account = account
	s.mu.Unlock()

	s.logger.Info("session connected", "account", account)
	s.send(ctx, Event{
		Type:    EventConnected,
		Account: string(account),
		Display: "Connected: " + render.ShortAddress(string(account)),
	})
	s.refresh(ctx)
}

func (s *Session) submit(ctx context.Context, account domain.Account, content string) {
	err := s.deps.Contract.SubmitPost(ctx, content, account)
	s.record(ctx, domain.WriteAttempt{Kind: domain.WritePost, Account: account}, err)
	if err != nil {
		s.logWriteError("post submission failed", err)
	}
	s.refresh(ctx)
}

func (s *Session) like(ctx context.Context, account, author domain.Account, id uint64) {
	err := s.deps.Contract.SubmitLike(ctx, author, id, account)
	s.record(ctx, domain.WriteAttempt{Kind: domain.WriteLike, Account: account, Author: author, PostID: id}, err)
	if err != nil {
		s.logWriteError("like failed", err, "post_id", id)
	} else {
		s.mu.Lock()
		s.likes[id]++
		count := s.likes[id]
		s.mu.Unlock()
		s.send(ctx, Event{Type: EventLikes, ID: strconv.FormatUint(id, 10), Likes: count})
	}
	s.refresh(ctx)
}

// refresh fetches the full post list and replaces the rendered region. A
// failed or malformed fetch renders an empty region. Completions older than
// the newest render already pushed are dropped.
func (s *Session) refresh(ctx context.Context) {
	s.mu.Lock()
	account := s.account
	s.issued++
	seq := s.issued
	s.mu.Unlock()

	posts, err := s.deps.Contract.FetchAllPosts(ctx, account)
	if err != nil {
		if errors.Is(err, contract.ErrMalformed) {
			s.logger.Error("malformed posts response, rendering empty list", "error", err)
		} else {
			s.logger.Error("fetch posts failed, rendering empty list", "error", err)
		}
		posts = nil
	}

	html, err := s.deps.Renderer.PostsHTML(posts)
	if err != nil {
		s.logger.Error("render posts failed", "error", err)
		return
	}

	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	if seq < s.rendered {
		s.mu.Unlock()
		s.logger.Debug("discarding stale render", "seq", seq, "rendered", s.rendered)
		return
	}
	s.rendered = seq
	s.likes = make(map[uint64]uint64, len(posts))
	for _, p := range posts {
		s.likes[p.ID] = p.Likes
	}
	s.mu.Unlock()

	s.send(ctx, Event{Type: EventPosts, HTML: html})
}

func (s *Session) record(ctx context.Context, attempt domain.WriteAttempt, err error) {
	attempt = journal.Complete(attempt, err)
	if rerr := s.deps.Recorder.Record(ctx, attempt); rerr != nil {
		s.logger.Error("failed to journal write", "kind", attempt.Kind, "error", rerr)
	}
}

func (s *Session) logWriteError(msg string, err error, args ...any) {
	args = append(args, "error", err)
	if errors.Is(err, contract.ErrRejected) {
		s.logger.Warn(msg+": rejected by user", args...)
		return
	}
	s.logger.Error(msg, args...)
}

func (s *Session) send(ctx context.Context, ev Event) {
	if err := s.sink.Send(ctx, ev); err != nil {
		s.logger.Debug("dropping event", "type", ev.Type, "error", err)
	}
}
