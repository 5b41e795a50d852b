package eveonline

import (
	"context"
	"errors"
	"strings"

	"github.com/briangreenhill/evelib/request"
)

// Eve covers the public /eve area.
type Eve struct {
	*Entity
}

type Alliance struct {
	AllianceID     int64  `xml:"allianceID,attr"`
	Name           string `xml:"name,attr"`
	ShortName      string `xml:"shortName,attr"`
	ExecutorCorpID int64  `xml:"executorCorpID,attr"`
	MemberCount    int64  `xml:"memberCount,attr"`
	StartDate      Time   `xml:"startDate,attr"`

	Corporations []MemberCorporation `xml:"rowset>row"`
}

type MemberCorporation struct {
	CorporationID int64 `xml:"corporationID,attr"`
	StartDate     Time  `xml:"startDate,attr"`
}

type AllianceList struct {
	Alliances []Alliance `xml:"rowset>row"`
}

type CharacterName struct {
	Name        string `xml:"name,attr"`
	CharacterID int64  `xml:"characterID,attr"`
}

type CharacterIDs struct {
	Characters []CharacterName `xml:"rowset>row"`
}

// AllianceList returns every alliance with its member corporations.
func (e *Eve) AllianceList(ctx context.Context) (*Response[AllianceList], error) {
	return get[AllianceList](ctx, e.Entity, "/eve/AllianceList.xml.aspx", nil, nil)
}

// CharacterID resolves character names to IDs. Unknown names come back with
// ID 0.
func (e *Eve) CharacterID(ctx context.Context, names ...string) (*Response[CharacterIDs], error) {
	if len(names) == 0 {
		return nil, errors.New("at least one name required")
	}
	q := request.NewQuery().Add("names", strings.Join(names, ","))
	return get[CharacterIDs](ctx, e.Entity, "/eve/CharacterID.xml.aspx", nil, q)
}
