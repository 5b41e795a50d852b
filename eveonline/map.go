package eveonline

import (
	"context"
)

// Map covers the /map area.
type Map struct {
	*Entity
}

type SystemJumps struct {
	SolarSystemID int64 `xml:"solarSystemID,attr"`
	ShipJumps     int64 `xml:"shipJumps,attr"`
}

type Jumps struct {
	SolarSystems []SystemJumps `xml:"rowset>row"`
	DataTime     Time          `xml:"dataTime"`
}

// Jumps returns ship jumps per solar system over the last hour.
func (m *Map) Jumps(ctx context.Context) (*Response[Jumps], error) {
	return get[Jumps](ctx, m.Entity, "/map/Jumps.xml.aspx", nil, nil)
}
