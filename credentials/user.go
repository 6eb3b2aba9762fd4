package credentials

// Role represents a user's role on the platform
type Role string

const (
	RoleAdmin    Role = "admin"    // Can manage products, farmers and orders
	RoleFarmer   Role = "farmer"   // Supplies produce, manages own profile
	RoleCustomer Role = "customer" // Subscribes to farm boxes
)

// User is the sanitized user snapshot held by the session core. It carries only
// the whitelisted display fields; credentials and server-side attributes are
// never part of it.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Sanitize returns a copy of u reduced to the whitelisted field set. Anything
// else a caller may have attached (via embedding or future struct growth) is
// dropped before the record is persisted.
func Sanitize(u User) User {
	return User{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
