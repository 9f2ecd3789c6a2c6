package domain

type Role string

const (
	RoleUser   Role = "user"
	RoleWorker Role = "worker"
	RoleAdmin  Role = "admin"
)

// Identity is the signed-in account as issued by the backend on login.
type Identity struct {
	UserID    int    `json:"id" yaml:"id"`
	Username  string `json:"username" yaml:"username"`
	Role      Role   `json:"role" yaml:"role"`
	AuthToken string `json:"token" yaml:"token"`
}

// EffectiveRole treats a missing role as a regular user.
func (i Identity) EffectiveRole() Role {
	if i.Role == "" {
		return RoleUser
	}
	return i.Role
}

// Destination is the page a signed-in identity belongs on.
type Destination string

const (
	DestinationAdmin     Destination = "admin.html"
	DestinationWorker    Destination = "worker.html"
	DestinationDashboard Destination = "index.html"
)

// RouteForRole maps a role to its landing page. Unknown roles get the user dashboard.
func RouteForRole(role Role) Destination {
	switch role {
	case RoleAdmin:
		return DestinationAdmin
	case RoleWorker:
		return DestinationWorker
	default:
		return DestinationDashboard
	}
}

// IsDashboard reports whether the destination is the one hosting the setup wizard.
func (d Destination) IsDashboard() bool {
	return d == DestinationDashboard
}
