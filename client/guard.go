package client

// Decision is the outcome of a navigation-time guard check
type Decision int

const (
	// Proceed lets the navigation continue to its target
	Proceed Decision = iota
	// RedirectLogin short-circuits the navigation to the login page
	RedirectLogin
	// RedirectHome short-circuits the navigation to the home page
	RedirectHome
)

const (
	// LoginPath is the public login route
	LoginPath = "/login"
	// RegisterPath is the public registration route
	RegisterPath = "/register"
	// HomePath is where authenticated users land
	HomePath = "/"
)

// RouteGuard decides, before every navigation, whether to proceed or
// redirect based on the session store and the public-route allow-list.
type RouteGuard struct {
	store  *SessionStore
	public map[string]bool
}

// NewRouteGuard creates a guard over the given session store
func NewRouteGuard(store *SessionStore) *RouteGuard {
	return &RouteGuard{
		store: store,
		public: map[string]bool{
			LoginPath:    true,
			RegisterPath: true,
		},
	}
}

// Check runs the guard for a target path. Restore is attempted lazily,
// only when a protected route is requested and in-memory state looks
// empty; this tolerates a full reload where memory reset but the cookie
// and durable storage still hold valid data.
func (g *RouteGuard) Check(target string) Decision {
	isProtected := !g.public[target]

	// First render: durable storage not reachable yet, but a token is
	// visible in the transport. Treat as authenticated for this pass to
	// avoid a false redirect.
	if !g.store.StorageAvailable() && g.store.TokenDetectable() {
		return Proceed
	}

	if isProtected && !g.store.IsAuthenticated() {
		g.store.Restore()
		if !g.store.IsAuthenticated() {
			return RedirectLogin
		}
	}

	if target == LoginPath && g.store.IsAuthenticated() {
		return RedirectHome
	}

	return Proceed
}
