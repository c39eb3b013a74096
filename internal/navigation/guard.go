// Package navigation decides, for a route's declared audience and the current
// authentication state, whether the route renders, shows a loading view or
// redirects elsewhere.
package navigation

import (
	"fmt"

	"storefront/internal/domain"
)

// Audience is the access policy a route declares.
type Audience string

const (
	Public        Audience = "public"
	UserOnly      Audience = "user-only"
	AdminOnly     Audience = "admin-only"
	LoginOnly     Audience = "login-only"
	// Authenticated admits any signed-in identity regardless of role.
	Authenticated Audience = "authenticated"
)

// ParseAudience validates an audience tag.
func ParseAudience(s string) (Audience, error) {
	switch a := Audience(s); a {
	case Public, UserOnly, AdminOnly, LoginOnly, Authenticated:
		return a, nil
	}
	return "", fmt.Errorf("unknown audience %q", s)
}

// Status is the identity-resolution status.
type Status string

const (
	Pending  Status = "pending"
	Resolved Status = "resolved"
)

// State is the input to a guard decision. Identity is nil for anonymous visitors.
type State struct {
	Status   Status           `json:"status"`
	Identity *domain.Identity `json:"identity,omitempty"`
}

// Outcome is what the view layer should do.
type Outcome string

const (
	Render   Outcome = "render"
	Loading  Outcome = "loading"
	Redirect Outcome = "redirect"
)

// Decision is the result of evaluating one navigation attempt.
type Decision struct {
	Path       string  `json:"path"`
	Outcome    Outcome `json:"outcome"`
	RedirectTo string  `json:"redirect_to,omitempty"`
}

// Paths are the redirect targets used by the decision table.
type Paths struct {
	Login     string
	UserHome  string
	AdminHome string
	Home      string
}

// DefaultPaths matches the storefront's route table.
var DefaultPaths = Paths{
	Login:     "/login",
	UserHome:  "/home",
	AdminHome: "/admin/dashboard",
	Home:      "/",
}

// Decide applies the audience table. Pending resolution always yields Loading.
func Decide(aud Audience, st State, p Paths) Decision {
	if st.Status != Resolved {
		return Decision{Outcome: Loading}
	}
	id := st.Identity
	switch aud {
	case Public:
		return Decision{Outcome: Render}
	case UserOnly:
		switch {
		case id == nil:
			return redirect(p.Login)
		case id.IsAdmin():
			return redirect(p.AdminHome)
		}
		return Decision{Outcome: Render}
	case AdminOnly:
		switch {
		case id == nil:
			return redirect(p.Login)
		case !id.IsAdmin():
			return redirect(p.UserHome)
		}
		return Decision{Outcome: Render}
	case Authenticated:
		if id == nil {
			return redirect(p.Login)
		}
		return Decision{Outcome: Render}
	case LoginOnly:
		switch {
		case id == nil:
			return Decision{Outcome: Render}
		case id.IsAdmin():
			return redirect(p.AdminHome)
		}
		return redirect(p.UserHome)
	}
	return redirect(p.Home)
}

func redirect(to string) Decision {
	return Decision{Outcome: Redirect, RedirectTo: to}
}

// Guard evaluates concrete paths against a route table.
type Guard struct {
	routes *Routes
	paths  Paths
}

func NewGuard(routes *Routes, paths Paths) *Guard {
	return &Guard{routes: routes, paths: paths}
}

// Evaluate decides for path. Unmatched paths always redirect to the public home,
// even while identity resolution is pending.
func (g *Guard) Evaluate(path string, st State) Decision {
	route, ok := g.routes.Match(path)
	if !ok {
		d := redirect(g.paths.Home)
		d.Path = path
		return d
	}
	d := Decide(route.Audience, st, g.paths)
	d.Path = path
	return d
}

// Paths returns the redirect targets this guard uses.
func (g *Guard) Paths() Paths {
	return g.paths
}
