package access

import "fmt"

// Problem is one structural defect in a Config.
type Problem struct {
	Field   string
	Message string
}

func (p Problem) String() string { return p.Field + ": " + p.Message }

// Validate checks the structure of a config submitted for update. It does
// not check membership; the engine does that against the organization.
func Validate(c Config) []Problem {
	var problems []Problem

	switch v := deref(c).(type) {
	case Organization:

	case PerRole:
		for role, p := range v.Roles {
			if !role.Valid() {
				problems = append(problems, Problem{
					Field:   "role_permissions",
					Message: fmt.Sprintf("unrecognized role %q", role),
				})
			}
			if !p.Valid() {
				problems = append(problems, Problem{
					Field:   "role_permissions." + string(role),
					Message: fmt.Sprintf("invalid permission %d", uint8(p)),
				})
			}
		}

	case PerUser:
		seen := make(map[string]struct{}, len(v.Users))
		for i, g := range v.Users {
			field := fmt.Sprintf("user_permissions[%d]", i)
			if g.UserID == "" {
				problems = append(problems, Problem{Field: field, Message: "empty user id"})
				continue
			}
			if _, dup := seen[g.UserID]; dup {
				problems = append(problems, Problem{Field: field, Message: fmt.Sprintf("duplicate user %q", g.UserID)})
			}
			seen[g.UserID] = struct{}{}
			if !g.Permission.Valid() {
				problems = append(problems, Problem{Field: field, Message: fmt.Sprintf("invalid permission %d", uint8(g.Permission))})
			}
		}

	default:
		problems = append(problems, Problem{
			Field:   "access_mode",
			Message: fmt.Sprintf("unrecognized access mode %q", v.Mode()),
		})
	}

	return problems
}
