package globals

// Context keys
type ContextKey string

const PrincipalKey ContextKey = "principal"
const RequestIDKey ContextKey = "requestId"

const (
	RoleUser  = "user"
	RoleOwner = "owner"
)

// Principal is the authenticated caller, resolved once from the session token.
type Principal struct {
	ID      string
	Email   string
	Role    string
	TokenID string
}

func (p Principal) IsOwner() bool { return p.Role == RoleOwner }
