package eveonline

import (
	"context"
)

// Server covers the /server area.
type Server struct {
	*Entity
}

type ServerStatus struct {
	ServerOpen    Bool  `xml:"serverOpen"`
	OnlinePlayers int64 `xml:"onlinePlayers"`
}

// Status returns the Tranquility server status.
func (s *Server) Status(ctx context.Context) (*Response[ServerStatus], error) {
	return get[ServerStatus](ctx, s.Entity, "/server/ServerStatus.xml.aspx", nil, nil)
}
