package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/festa-portal/portal-client/internal/adapters/devauth"
	"github.com/festa-portal/portal-client/internal/domain/access"
	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	"github.com/festa-portal/portal-client/internal/service"
)

// AuthClient is the part of the auth machine the shell drives.
type AuthClient interface {
	service.SnapshotSource
	SignIn(ctx context.Context, email, password string) (domainauth.Session, error)
	SignUp(ctx context.Context, email, password string) (domainauth.Session, error)
	SignOut(ctx context.Context) error
	SendEmailVerification(ctx context.Context) error
	SendPasswordResetEmail(ctx context.Context, email string) error
	InitProfile(ctx context.Context, in domainauth.RegistrationPayload) (domainauth.Profile, error)
}

var _ AuthClient = (*service.AuthMachine)(nil)

// DevMailbox exposes the mails captured by the development identity provider.
type DevMailbox interface {
	Outbox() []devauth.Mail
	ApplyVerificationCode(ctx context.Context, code string) error
	ResetPassword(ctx context.Context, code, newPassword string) error
}

var _ DevMailbox = (*devauth.Provider)(nil)

// Options groups dependencies for Shell.
type Options struct {
	Auth   AuthClient // Required
	Router *Router    // Required
	Pages  *access.Registry
	// Dev enables the outbox commands. Optional.
	Dev    DevMailbox
	In     io.Reader // Optional: defaults to os.Stdin
	Out    io.Writer // Optional: defaults to os.Stdout
	Prompt string
	Logger *slog.Logger
}

// Shell reads commands line by line and renders route outcomes.
type Shell struct {
	auth     AuthClient
	router   *Router
	pages    *access.Registry
	dev      DevMailbox
	in       io.Reader
	prompt   string
	logger   *slog.Logger
	commands map[string]command

	outMu    sync.Mutex
	out      io.Writer
	lastView viewKey
	hasView  bool
}

type viewKey struct {
	view     service.View
	path     string
	target   string
	snapshot string
}

type command struct {
	name        string
	usage       string
	description string
	devOnly     bool
	run         func(ctx context.Context, args []string) error
}

var (
	errQuit  = errors.New("quit")
	errUsage = errors.New("usage")
)

// New constructs a Shell.
func New(opts Options) (*Shell, error) {
	if opts.Auth == nil {
		return nil, errors.New("AuthClient is required")
	}
	if opts.Router == nil {
		return nil, errors.New("Router is required")
	}
	pages := opts.Pages
	if pages == nil {
		pages = access.NewRegistry(access.PortalPages()...)
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	prompt := opts.Prompt
	if prompt == "" {
		prompt = "portal> "
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Shell{
		auth:   opts.Auth,
		router: opts.Router,
		pages:  pages,
		dev:    opts.Dev,
		in:     in,
		out:    out,
		prompt: prompt,
		logger: logger.With("component", "shell"),
	}
	s.commands = s.buildCommands()
	return s, nil
}

// Run reads commands until quit, end of input or ctx ends.
func (s *Shell) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	s.writef("%s", s.prompt)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				return nil
			}
			if err := s.Exec(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				return err
			}
			s.writef("%s", s.prompt)
		}
	}
}

// Exec runs one command line. Command failures are printed, not returned;
// only quit and context cancellation end the loop.
func (s *Shell) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	cmd, ok := s.commands[name]
	if !ok {
		s.writef("unknown command %q, try help\n", name)
		return nil
	}

	err := cmd.run(ctx, args)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errQuit):
		return errQuit
	case errors.Is(err, errUsage):
		s.writef("usage: %s\n", cmd.usage)
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		s.logger.DebugContext(ctx, "command failed", "command", name, "error", err)
		s.writeln(presentError(err))
		return nil
	}
}

// Render prints an outcome when it differs from the last one rendered. It is
// meant to be the redirect effect's outcome callback.
func (s *Shell) Render(out service.Outcome) {
	key := viewKey{
		view:     out.View,
		path:     out.Path,
		target:   out.Target,
		snapshot: out.Snapshot.String(),
	}

	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.hasView && s.lastView == key {
		return
	}
	s.lastView, s.hasView = key, true

	switch out.View {
	case service.ViewLoading:
		fmt.Fprintf(s.out, "\n[loading] %s (%s)\n", out.Path, out.Snapshot.Kind())
	case service.ViewRedirecting:
		fmt.Fprintf(s.out, "\n[redirect] %s -> %s\n", out.Path, out.Target)
	case service.ViewContent:
		fmt.Fprintf(s.out, "\n[page] %s %s as %s\n", out.Page.Title, out.Path, out.Snapshot.ResolvedRole())
		if hint := pageHint(out); hint != "" {
			fmt.Fprintln(s.out, hint)
		}
	}
}

func pageHint(out service.Outcome) string {
	switch out.Page.Path {
	case "/register":
		if out.Snapshot.Kind() == domainauth.SnapshotSessionOnly {
			return "complete your profile: register <last> <first> <last_kana> <first_kana> <phone> <category>"
		}
	case "/login":
		return "sign in with: signin <email> <password>"
	case "/verify-email":
		if session, ok := out.Snapshot.Session(); ok && !session.EmailVerified() {
			return "check your inbox, or run verify to send the link again"
		}
	}
	return ""
}

func (s *Shell) writef(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) writeln(line string) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintln(s.out, line)
}

func (s *Shell) sortedCommands() []command {
	out := make([]command, 0, len(s.commands))
	seen := make(map[string]bool, len(s.commands))
	for _, c := range s.commands {
		if seen[c.name] {
			continue
		}
		seen[c.name] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
