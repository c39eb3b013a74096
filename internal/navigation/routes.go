package navigation

import "strings"

// Route is one entry in the route table. Pattern segments starting with ':'
// match any single non-empty segment.
type Route struct {
	Pattern  string
	Audience Audience
	segments []string
}

// Routes is an ordered route table; the first matching pattern wins.
type Routes struct {
	routes []Route
}

func NewRoutes(routes ...Route) *Routes {
	r := &Routes{}
	for _, rt := range routes {
		r.Add(rt.Pattern, rt.Audience)
	}
	return r
}

// Add appends a route.
func (r *Routes) Add(pattern string, aud Audience) {
	r.routes = append(r.routes, Route{
		Pattern:  pattern,
		Audience: aud,
		segments: split(pattern),
	})
}

// Match finds the route for path. Query strings and fragments are ignored.
func (r *Routes) Match(path string) (Route, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	segs := split(path)
	for _, rt := range r.routes {
		if matchSegments(rt.segments, segs) {
			return rt, true
		}
	}
	return Route{}, false
}

// StorefrontRoutes is the storefront's route table.
func StorefrontRoutes() *Routes {
	return NewRoutes(
		Route{Pattern: "/login", Audience: LoginOnly},
		Route{Pattern: "/", Audience: Public},
		Route{Pattern: "/home", Audience: Public},
		Route{Pattern: "/products", Audience: Public},
		Route{Pattern: "/products/:id", Audience: Public},
		Route{Pattern: "/cart", Audience: Public},
		Route{Pattern: "/checkout", Audience: UserOnly},
		Route{Pattern: "/orders", Audience: UserOnly},
		Route{Pattern: "/orders/:id", Audience: UserOnly},
		Route{Pattern: "/profile", Audience: UserOnly},
		Route{Pattern: "/admin/dashboard", Audience: AdminOnly},
		Route{Pattern: "/admin/products/add", Audience: AdminOnly},
		Route{Pattern: "/admin/products/edit/:id", Audience: AdminOnly},
		Route{Pattern: "/admin/orders", Audience: AdminOnly},
	)
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			if path[i] == "" {
				return false
			}
			continue
		}
		if p != path[i] {
			return false
		}
	}
	return true
}
