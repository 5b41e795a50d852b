package eveonline

import (
	"context"

	"github.com/briangreenhill/evelib/request"
)

// Character covers the /char area.
type Character struct {
	*Entity
}

type CharacterSheet struct {
	CharacterID      int64           `xml:"characterID"`
	Name             string          `xml:"name"`
	HomeStationID    int64           `xml:"homeStationID"`
	DateOfBirth      Time            `xml:"DoB"`
	Race             string          `xml:"race"`
	Bloodline        string          `xml:"bloodLine"`
	Ancestry         string          `xml:"ancestry"`
	Gender           string          `xml:"gender"`
	CorporationName  string          `xml:"corporationName"`
	CorporationID    int64           `xml:"corporationID"`
	AllianceName     string          `xml:"allianceName"`
	AllianceID       int64           `xml:"allianceID"`
	CloneName        string          `xml:"cloneName"`
	CloneSkillPoints int64           `xml:"cloneSkillPoints"`
	Balance          float64         `xml:"balance"`
	Attributes       SheetAttributes `xml:"attributes"`
	Rowsets          []sheetRowset   `xml:"rowset"`
}

type SheetAttributes struct {
	Intelligence int `xml:"intelligence"`
	Memory       int `xml:"memory"`
	Charisma     int `xml:"charisma"`
	Perception   int `xml:"perception"`
	Willpower    int `xml:"willpower"`
}

type Skill struct {
	TypeID      int64 `xml:"typeID,attr"`
	SkillPoints int64 `xml:"skillpoints,attr"`
	Level       int   `xml:"level,attr"`
	Published   Bool  `xml:"published,attr"`
}

type sheetRowset struct {
	Name string  `xml:"name,attr"`
	Rows []Skill `xml:"row"`
}

// Skills returns the rows of the "skills" rowset.
func (c CharacterSheet) Skills() []Skill {
	for _, rs := range c.Rowsets {
		if rs.Name == "skills" {
			return rs.Rows
		}
	}
	return nil
}

// Sheet returns the character sheet for characterID.
func (c *Character) Sheet(ctx context.Context, cred *request.Credential, characterID int64) (*Response[CharacterSheet], error) {
	q := request.NewQuery().AddInt("characterID", characterID)
	return get[CharacterSheet](ctx, c.Entity, "/char/CharacterSheet.xml.aspx", cred, q)
}
