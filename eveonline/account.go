package eveonline

import (
	"context"

	"github.com/briangreenhill/evelib/request"
)

// Account covers the /account area. Every call needs an API key.
type Account struct {
	*Entity
}

// CharacterEntry is a character row as listed by key-scoped endpoints.
// Characters.xml names the character in "name", APIKeyInfo.xml in
// "characterName"; DisplayName picks whichever is set.
type CharacterEntry struct {
	CharacterID     int64  `xml:"characterID,attr"`
	Name            string `xml:"name,attr"`
	CharacterName   string `xml:"characterName,attr"`
	CorporationID   int64  `xml:"corporationID,attr"`
	CorporationName string `xml:"corporationName,attr"`
	AllianceID      int64  `xml:"allianceID,attr"`
	AllianceName    string `xml:"allianceName,attr"`
	FactionID       int64  `xml:"factionID,attr"`
	FactionName     string `xml:"factionName,attr"`
}

func (c CharacterEntry) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.CharacterName
}

type CharacterList struct {
	Characters []CharacterEntry `xml:"rowset>row"`
}

type APIKeyInfo struct {
	Key KeyInfo `xml:"key"`
}

// KeyInfo describes an API key. Expires is zero for keys that never expire.
type KeyInfo struct {
	AccessMask int64            `xml:"accessMask,attr"`
	Type       string           `xml:"type,attr"`
	Expires    Time             `xml:"expires,attr"`
	Characters []CharacterEntry `xml:"rowset>row"`
}

// Characters lists the characters on the account the key belongs to.
func (a *Account) Characters(ctx context.Context, cred *request.Credential) (*Response[CharacterList], error) {
	return get[CharacterList](ctx, a.Entity, "/account/Characters.xml.aspx", cred, nil)
}

// APIKeyInfo describes the key itself: access mask, type, expiry and the
// characters it exposes.
func (a *Account) APIKeyInfo(ctx context.Context, cred *request.Credential) (*Response[APIKeyInfo], error) {
	return get[APIKeyInfo](ctx, a.Entity, "/account/APIKeyInfo.xml.aspx", cred, nil)
}
