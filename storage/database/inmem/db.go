package inmemdb

import (
	"sync"

	"github.com/umoja/academy/core/auth"
	"github.com/umoja/academy/core/user"
)

var roleIDs = map[string]int{
	user.RoleNameSuperAdmin: 1,
	user.RoleNamePrincipal:  2,
	user.RoleNameTeacher:    3,
	user.RoleNameStudent:    4,
	user.RoleNameParent:     5,
	user.RoleNameAccountant: 6,
	user.RoleNameLibrarian:  7,
}

// DB holds the in-memory tables backing the fakes used in tests.
type DB struct {
	mutex    sync.RWMutex
	pkCount  int
	users    map[int]*user.User
	sessions map[string]*auth.Session
	names    map[int]string // user_id -> linked person's full name
}

func NewDB() *DB {
	return &DB{
		users:    make(map[int]*user.User),
		sessions: make(map[string]*auth.Session),
		names:    make(map[int]string),
	}
}

// LinkPerson records the full name of the person profile linked to userID.
func (db *DB) LinkPerson(userID int, fullName string) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.names[userID] = fullName
}
