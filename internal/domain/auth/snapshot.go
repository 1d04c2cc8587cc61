package auth

import "fmt"

// SnapshotKind identifies the active variant of a Snapshot.
type SnapshotKind int

const (
	// SnapshotUnchecked is the initial variant before the identity provider has reported anything.
	SnapshotUnchecked SnapshotKind = iota
	// SnapshotBothSignedIn means a valid session and a backend profile.
	SnapshotBothSignedIn
	// SnapshotSessionOnly means a valid session whose backend profile is not
	// provisioned yet (or whose email is not verified).
	SnapshotSessionOnly
	// SnapshotSignedOut means the checked absence of a session.
	SnapshotSignedOut
	// SnapshotError means resolving the snapshot failed unexpectedly.
	SnapshotError
)

func (k SnapshotKind) String() string {
	switch k {
	case SnapshotUnchecked:
		return "unchecked"
	case SnapshotBothSignedIn:
		return "both_signed_in"
	case SnapshotSessionOnly:
		return "session_only_no_profile"
	case SnapshotSignedOut:
		return "signed_out"
	case SnapshotError:
		return "error"
	default:
		return fmt.Sprintf("snapshot_kind(%d)", int(k))
	}
}

// Snapshot is the single authoritative summary of the client's auth status.
// Fields are unexported so that only the constructors below can build one;
// a profile without a session cannot be expressed. The zero value is unchecked.
type Snapshot struct {
	kind    SnapshotKind
	session Session
	profile Profile
	err     error
}

// Unchecked returns the initial snapshot.
func Unchecked() Snapshot {
	return Snapshot{kind: SnapshotUnchecked}
}

// BothSignedIn returns a snapshot for a session with a provisioned profile.
func BothSignedIn(profile Profile, session Session) Snapshot {
	mustSession(session)
	return Snapshot{kind: SnapshotBothSignedIn, session: session, profile: profile}
}

// SessionOnly returns a snapshot for a session without a provisioned profile.
func SessionOnly(session Session) Snapshot {
	mustSession(session)
	return Snapshot{kind: SnapshotSessionOnly, session: session}
}

// SignedOut returns the snapshot for the checked absence of a session.
func SignedOut() Snapshot {
	return Snapshot{kind: SnapshotSignedOut}
}

// Failed returns the error snapshot. err is kept for presentation only.
func Failed(err error) Snapshot {
	return Snapshot{kind: SnapshotError, err: err}
}

func mustSession(s Session) {
	if s == nil {
		panic("auth: snapshot variant requires a non-nil session")
	}
}

// Kind returns the active variant.
func (s Snapshot) Kind() SnapshotKind { return s.kind }

// Session returns the session for the bothSignedIn and sessionOnly variants.
func (s Snapshot) Session() (Session, bool) {
	return s.session, s.session != nil
}

// Profile returns the profile for the bothSignedIn variant.
func (s Snapshot) Profile() (Profile, bool) {
	if s.kind != SnapshotBothSignedIn {
		return Profile{}, false
	}
	return s.profile, true
}

// Err returns the failure behind the error variant, nil otherwise.
func (s Snapshot) Err() error {
	if s.kind != SnapshotError {
		return nil
	}
	return s.err
}

// ResolvedRole returns the role used for access decisions: RoleUnchecked while
// unchecked, the profile role when both are signed in, guest otherwise.
func (s Snapshot) ResolvedRole() Role {
	switch s.kind {
	case SnapshotUnchecked:
		return RoleUnchecked
	case SnapshotBothSignedIn:
		return s.profile.Role
	default:
		return RoleGuest
	}
}

// Settled reports whether the snapshot permits rendering page content.
// Unchecked and error snapshots keep the shell in its loading state.
func (s Snapshot) Settled() bool {
	return s.kind != SnapshotUnchecked && s.kind != SnapshotError
}

// UserID returns the identity user id of the snapshot's session, or "".
func (s Snapshot) UserID() string {
	if s.session == nil {
		return ""
	}
	return s.session.UserID()
}

func (s Snapshot) String() string {
	switch s.kind {
	case SnapshotBothSignedIn:
		return fmt.Sprintf("%s{user=%s role=%s}", s.kind, s.UserID(), s.profile.Role)
	case SnapshotSessionOnly:
		return fmt.Sprintf("%s{user=%s}", s.kind, s.UserID())
	case SnapshotError:
		return fmt.Sprintf("%s{%v}", s.kind, s.err)
	default:
		return s.kind.String()
	}
}
