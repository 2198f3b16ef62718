package domain

// PermFinanceTransact gates deposit and withdrawal initiation.
const PermFinanceTransact = "finance:transact"

// Actor is the authorization context handed to usecases. It is built by the
// HTTP layer from the verified bearer token and the request; nothing below
// the handlers reads ambient request state.
type Actor struct {
	UserID      int64
	Permissions []string
	ClientIP    string
}

func (a Actor) Can(perm string) bool {
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
