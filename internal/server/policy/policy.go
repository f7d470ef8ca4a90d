// Package policy decides which actions an acting identity may perform.
package policy

import (
	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/server/models"
)

// Identity is the caller a request acts for. The zero value is anonymous.
type Identity struct {
	UserID   int64
	UserName string
	Role     models.Role
}

// Anonymous is the identity of a request without a valid session.
var Anonymous = Identity{}

func ForUser(u *models.User) Identity {
	return Identity{UserID: u.ID, UserName: u.UserName, Role: u.Role}
}

func (i Identity) Authenticated() bool {
	return i.UserID != 0
}

func (i Identity) IsAdmin() bool {
	return i.Authenticated() && i.Role == models.RoleAdmin
}

type Action int

const (
	ViewCatalog Action = iota
	ViewBook
	Borrow
	Return
	ViewOwnLoans
	ManageInventory
)

func (a Action) String() string {
	switch a {
	case ViewCatalog:
		return "view_catalog"
	case ViewBook:
		return "view_book"
	case Borrow:
		return "borrow"
	case Return:
		return "return"
	case ViewOwnLoans:
		return "view_own_loans"
	case ManageInventory:
		return "manage_inventory"
	default:
		return "unknown"
	}
}

type Decision int

const (
	Allow Decision = iota
	LoginRequired
	AdminRequired
)

func (d Decision) Allowed() bool {
	return d == Allow
}

// Err maps a denial to its sentinel error, nil for Allow.
func (d Decision) Err() error {
	switch d {
	case Allow:
		return nil
	case LoginRequired:
		return common.ErrUnauthenticated
	default:
		return common.ErrAdminRequired
	}
}

// Authorize decides whether identity may perform action. Anonymous callers
// may only browse; any authenticated user may lend; inventory needs Admin.
// Unknown actions are denied.
func Authorize(identity Identity, action Action) Decision {
	switch action {
	case ViewCatalog, ViewBook:
		return Allow
	case Borrow, Return, ViewOwnLoans:
		if !identity.Authenticated() {
			return LoginRequired
		}
		return Allow
	case ManageInventory:
		if !identity.Authenticated() {
			return LoginRequired
		}
		if !identity.IsAdmin() {
			return AdminRequired
		}
		return Allow
	default:
		if !identity.Authenticated() {
			return LoginRequired
		}
		return AdminRequired
	}
}

// Check is Authorize(identity, action).Err().
func Check(identity Identity, action Action) error {
	return Authorize(identity, action).Err()
}
