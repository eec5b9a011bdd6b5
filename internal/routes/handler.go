// package routes contains the exposed API endpoints
package routes

import (
	"database/sql"

	"github.com/vibbin/vibbin/internal/dal"
	"github.com/vibbin/vibbin/internal/presence"
	"github.com/vibbin/vibbin/internal/relay"
)

// RouteHandler provides the dependencies for any endpoint, and is the reciever of the endpoint handling functions
type RouteHandler struct {
	db       *sql.DB
	store    dal.Store
	presence *presence.Directory
	relay    *relay.Relay
}

// NewRouteHandler creates the reciever for all endpoint handling functions
func NewRouteHandler(db *sql.DB, directory *presence.Directory, r *relay.Relay) *RouteHandler {
	return &RouteHandler{
		db:       db,
		store:    dal.Store{DB: db},
		presence: directory,
		relay:    r,
	}
}
