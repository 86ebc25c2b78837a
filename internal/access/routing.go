package access

// Surface is one of the interfaces a principal can land on.
type Surface string

// Surfaces served by the console.
const (
	SurfaceAny    Surface = ""
	SurfaceAdmin  Surface = "admin"
	SurfaceSeller Surface = "seller"
	SurfaceLogin  Surface = "login"
)

// Home links for each surface.
const (
	HomeAdmin  = "/admin"
	HomeSeller = "/seller"
	HomeLogin  = "/auth/login"
)

// RouteDecision is the outcome of the routing table.
type RouteDecision struct {
	Allow    bool
	Redirect string
}

var routeTable = map[Role]map[Surface]RouteDecision{
	RoleSuperAdmin: {
		SurfaceAdmin:  {Allow: true},
		SurfaceSeller: {Redirect: HomeAdmin},
		SurfaceLogin:  {Redirect: HomeAdmin},
	},
	RoleAdmin: {
		SurfaceAdmin:  {Allow: true},
		SurfaceSeller: {Redirect: HomeAdmin},
		SurfaceLogin:  {Redirect: HomeAdmin},
	},
	RoleSeller: {
		SurfaceAdmin:  {Redirect: HomeSeller},
		SurfaceSeller: {Allow: true},
		SurfaceLogin:  {Redirect: HomeSeller},
	},
}

// Route looks up the routing decision for role on surface. SurfaceAny is always
// allowed. Unknown roles are sent to the login surface. Every redirect target is
// the home of the role itself, so following it never bounces again.
func Route(role Role, surface Surface) RouteDecision {
	if surface == SurfaceAny {
		return RouteDecision{Allow: true}
	}
	row, ok := routeTable[role]
	if !ok {
		if surface == SurfaceLogin {
			return RouteDecision{Allow: true}
		}
		return RouteDecision{Redirect: HomeLogin}
	}
	return row[surface]
}

// HomeSurface returns the surface a role lands on after login.
func HomeSurface(role Role) Surface {
	switch role {
	case RoleSuperAdmin, RoleAdmin:
		return SurfaceAdmin
	case RoleSeller:
		return SurfaceSeller
	}
	return SurfaceLogin
}

// HomeLink returns the landing link for a role.
func HomeLink(role Role) string {
	switch HomeSurface(role) {
	case SurfaceAdmin:
		return HomeAdmin
	case SurfaceSeller:
		return HomeSeller
	}
	return HomeLogin
}
