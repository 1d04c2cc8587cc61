package shell

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/festa-portal/portal-client/internal/domain/access"
	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
)

func (s *Shell) buildCommands() map[string]command {
	list := []command{
		{name: "help", usage: "help", description: "List commands", run: s.cmdHelp},
		{name: "status", usage: "status", description: "Show the auth state and current route", run: s.cmdStatus},
		{name: "pages", usage: "pages", description: "List routes and whether the current role may open them", run: s.cmdPages},
		{name: "goto", usage: "goto <path>", description: "Open a route", run: s.cmdGoto},
		{name: "back", usage: "back", description: "Return to the previous route", run: s.cmdBack},
		{name: "signin", usage: "signin <email> <password>", description: "Sign in", run: s.cmdSignIn},
		{name: "signup", usage: "signup <email> <password>", description: "Create an account", run: s.cmdSignUp},
		{name: "signout", usage: "signout", description: "Sign out", run: s.cmdSignOut},
		{name: "verify", usage: "verify", description: "Send the email verification link again", run: s.cmdVerify},
		{name: "reset", usage: "reset <email>", description: "Send a password reset link", run: s.cmdReset},
		{
			name:        "register",
			usage:       "register <last> <first> <last_kana> <first_kana> <phone> <category>",
			description: "Create your portal profile",
			run:         s.cmdRegister,
		},
		{name: "quit", usage: "quit", description: "Leave the shell", run: s.cmdQuit},
	}
	if s.dev != nil {
		list = append(list,
			command{name: "outbox", usage: "outbox", description: "Show captured mails", devOnly: true, run: s.cmdOutbox},
			command{name: "apply", usage: "apply <code>", description: "Apply an email verification code", devOnly: true, run: s.cmdApply},
			command{
				name:        "newpass",
				usage:       "newpass <code> <password>",
				description: "Set a new password with a reset code",
				devOnly:     true,
				run:         s.cmdNewPass,
			},
		)
	}

	out := make(map[string]command, len(list)+1)
	for _, c := range list {
		out[c.name] = c
	}
	out["exit"] = out["quit"]
	return out
}

func (s *Shell) cmdHelp(_ context.Context, _ []string) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, c := range s.sortedCommands() {
		desc := c.description
		if c.devOnly {
			desc += " (dev)"
		}
		fmt.Fprintf(w, "%s\t%s\n", c.usage, desc)
	}
	return w.Flush()
}

func (s *Shell) cmdStatus(_ context.Context, _ []string) error {
	snap := s.auth.Snapshot()
	path := s.router.CurrentPath()
	page := s.pages.Lookup(path)
	decision := access.Evaluate(page.Policy, snap.ResolvedRole())

	s.outMu.Lock()
	defer s.outMu.Unlock()
	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "State\t%s\n", snap.Kind())
	fmt.Fprintf(w, "Role\t%s\n", snap.ResolvedRole())
	if session, ok := snap.Session(); ok {
		fmt.Fprintf(w, "Email\t%s (verified: %t)\n", session.Email(), session.EmailVerified())
	}
	if profile, ok := snap.Profile(); ok {
		fmt.Fprintf(w, "Name\t%s %s\n", profile.Name.Last, profile.Name.First)
		fmt.Fprintf(w, "Category\t%s\n", profile.Category)
	}
	if err := snap.Err(); err != nil {
		fmt.Fprintf(w, "Error\t%s\n", presentError(err))
	}
	fmt.Fprintf(w, "Route\t%s (%s)\n", path, page.Title)
	fmt.Fprintf(w, "Access\t%s\n", decision)
	return w.Flush()
}

func (s *Shell) cmdPages(_ context.Context, _ []string) error {
	role := s.auth.Snapshot().ResolvedRole()

	s.outMu.Lock()
	defer s.outMu.Unlock()
	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tTITLE\tPOLICY\tACCESS")
	for _, p := range s.pages.Pages() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Path, p.Title, p.Policy, access.Evaluate(p.Policy, role))
	}
	return w.Flush()
}

func (s *Shell) cmdGoto(_ context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	s.router.Navigate(args[0])
	return nil
}

func (s *Shell) cmdBack(_ context.Context, _ []string) error {
	if _, ok := s.router.Back(); !ok {
		s.writeln("no previous route")
	}
	return nil
}

func (s *Shell) cmdSignIn(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	session, err := s.auth.SignIn(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	s.writef("signed in as %s\n", session.Email())
	return nil
}

func (s *Shell) cmdSignUp(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	session, err := s.auth.SignUp(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	s.writef("account created for %s\n", session.Email())
	if !session.EmailVerified() {
		if err := s.auth.SendEmailVerification(ctx); err != nil {
			return err
		}
		s.writeln("a verification link was sent to your inbox")
	}
	return nil
}

func (s *Shell) cmdSignOut(ctx context.Context, _ []string) error {
	if err := s.auth.SignOut(ctx); err != nil {
		return err
	}
	s.writeln("signed out")
	return nil
}

func (s *Shell) cmdVerify(ctx context.Context, _ []string) error {
	if err := s.auth.SendEmailVerification(ctx); err != nil {
		return err
	}
	s.writeln("verification link sent")
	return nil
}

func (s *Shell) cmdReset(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := s.auth.SendPasswordResetEmail(ctx, args[0]); err != nil {
		return err
	}
	s.writef("password reset link sent to %s\n", args[0])
	return nil
}

func (s *Shell) cmdRegister(ctx context.Context, args []string) error {
	if len(args) != 6 {
		return errUsage
	}
	profile, err := s.auth.InitProfile(ctx, domainauth.RegistrationPayload{
		Name: domainauth.Name{
			Last:      args[0],
			First:     args[1],
			LastKana:  args[2],
			FirstKana: args[3],
		},
		PhoneNumber: args[4],
		Category:    domainauth.Category(args[5]),
	})
	if err != nil {
		return err
	}
	s.writef("welcome, %s %s\n", profile.Name.Last, profile.Name.First)
	return nil
}

func (s *Shell) cmdQuit(_ context.Context, _ []string) error {
	return errQuit
}

func (s *Shell) cmdOutbox(_ context.Context, _ []string) error {
	mails := s.dev.Outbox()
	if len(mails) == 0 {
		s.writeln("outbox is empty")
		return nil
	}

	s.outMu.Lock()
	defer s.outMu.Unlock()
	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SENT\tKIND\tTO\tCODE")
	for _, m := range mails {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.SentAt.Format("15:04:05"), m.Kind, m.To, m.Code)
	}
	return w.Flush()
}

func (s *Shell) cmdApply(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := s.dev.ApplyVerificationCode(ctx, strings.TrimSpace(args[0])); err != nil {
		return err
	}
	s.writeln("email verified")
	return nil
}

func (s *Shell) cmdNewPass(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if err := s.dev.ResetPassword(ctx, args[0], args[1]); err != nil {
		return err
	}
	s.writeln("password updated, sign in again")
	return nil
}
