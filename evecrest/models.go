package evecrest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the CREST timestamp format. Times carry no zone and are UTC.
const TimeLayout = "2006-01-02T15:04:05"

type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("crest time: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		// Some resources include a zone suffix.
		if parsed, err = time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("parse crest time %q: %w", s, err)
		}
	}
	t.Time = parsed.UTC()
	return nil
}

// Link is a reference to another CREST resource.
type Link struct {
	Href  string `json:"href"`
	ID    int64  `json:"id"`
	IDStr string `json:"id_str"`
	Name  string `json:"name"`
}

type CharacterEntry struct {
	Link
	IsNPC     bool `json:"isNPC"`
	Capsuleer Link `json:"capsuleer"`
}

type CorporationEntry struct {
	Link
	IsNPC bool `json:"isNPC"`
}

// Alliance is the /alliances/{id}/ resource.
type Alliance struct {
	ID                  int64              `json:"id"`
	Name                string             `json:"name"`
	ShortName           string             `json:"shortName"`
	StartDate           Time               `json:"startDate"`
	CorporationsCount   int                `json:"corporationsCount"`
	Description         string             `json:"description"`
	Deleted             bool               `json:"deleted"`
	URL                 string             `json:"url"`
	ExecutorCorporation Link               `json:"executorCorporation"`
	CreatorCorporation  Link               `json:"creatorCorporation"`
	CreatorCharacter    CharacterEntry     `json:"creatorCharacter"`
	Corporations        []CorporationEntry `json:"corporations"`
}

// BonusType is the efficiency an industry team worker improves.
type BonusType string

const (
	BonusMaterial BonusType = "ME"
	BonusTime     BonusType = "TE"
)

func (b *BonusType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch BonusType(strings.ToUpper(s)) {
	case BonusMaterial:
		*b = BonusMaterial
	case BonusTime:
		*b = BonusTime
	default:
		return fmt.Errorf("unknown bonus type %q", s)
	}
	return nil
}

type WorkerBonus struct {
	ID    int       `json:"id"`
	Value float64   `json:"value"`
	Type  BonusType `json:"bonusType"`
}

type IndustryTeamWorker struct {
	Bonus          WorkerBonus `json:"bonus"`
	Specialization Link        `json:"specialization"`
}

type IndustryTeam struct {
	ID             int64                `json:"id"`
	Name           string               `json:"name"`
	SolarSystem    Link                 `json:"solarSystem"`
	Specialization Link                 `json:"specialization"`
	Activity       int                  `json:"activity"`
	CostModifier   float64              `json:"costModifier"`
	CreationTime   Time                 `json:"creationTime"`
	ExpiryTime     Time                 `json:"expiryTime"`
	Workers        []IndustryTeamWorker `json:"workers"`
}

// Collection is a paged CREST list.
type Collection[T any] struct {
	TotalCount int   `json:"totalCount"`
	PageCount  int   `json:"pageCount"`
	Items      []T   `json:"items"`
	Next       *Link `json:"next,omitempty"`
}
