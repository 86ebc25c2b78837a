package access

// State is the Access Guard state.
type State string

// Guard states. Every state except StateLoading is terminal.
const (
	StateLoading            State = "loading"
	StateAllowed            State = "allowed"
	StateDeniedNoIdentity   State = "denied_no_identity"
	StateDeniedNoPermission State = "denied_no_permission"
	StateDeniedWrongTenant  State = "denied_wrong_tenant"
)

// Policy is what a protected view declares. Empty fields are not checked.
type Policy struct {
	RequiredPermission PageID
	ResourceSellerID   string
	Surface            Surface
}

// Snapshot is the guard's view of the principal at one instant. Record is either
// complete or nil.
type Snapshot struct {
	Loading   bool
	Principal *Principal
	Record    *Record
}

// Decision is the guard outcome.
type Decision struct {
	State    State  `json:"state"`
	Redirect string `json:"redirect,omitempty"`
}

// Evaluate runs the guard transition rules against one snapshot.
func Evaluate(snap Snapshot, policy Policy) Decision {
	if snap.Loading {
		return Decision{State: StateLoading}
	}
	rec := snap.Record
	if rec == nil {
		if snap.Principal == nil {
			return Decision{State: StateDeniedNoIdentity}
		}
		// Unprovisioned principals look exactly like a permission denial.
		return Decision{State: StateDeniedNoPermission}
	}
	if route := Route(rec.Role, policy.Surface); !route.Allow {
		return Decision{State: StateDeniedNoPermission, Redirect: route.Redirect}
	}
	if policy.RequiredPermission != "" && !HasPermission(rec, policy.RequiredPermission) {
		return Decision{State: StateDeniedNoPermission}
	}
	if policy.ResourceSellerID != "" && !CanSellerAccess(rec, policy.ResourceSellerID) {
		return Decision{State: StateDeniedWrongTenant}
	}
	return Decision{State: StateAllowed}
}

// Views holds one render callback per guard state.
type Views[T any] struct {
	Loading     func() T
	Content     func() T
	Login       func() T
	Denied      func(redirect string) T
	WrongTenant func() T
}

// Render picks exactly one view for the decision. Unknown states render as denied.
func Render[T any](d Decision, v Views[T]) T {
	switch d.State {
	case StateLoading:
		return v.Loading()
	case StateAllowed:
		return v.Content()
	case StateDeniedNoIdentity:
		return v.Login()
	case StateDeniedWrongTenant:
		return v.WrongTenant()
	}
	return v.Denied(d.Redirect)
}

// Guard evaluates the policy and renders the matching view.
func Guard[T any](snap Snapshot, policy Policy, v Views[T]) T {
	return Render(Evaluate(snap, policy), v)
}
