package rechtsinfo

import "strings"

// Query selects a page of search results.
type Query struct {
	Term string
	Size int
	// Court narrows case law searches to one court type (e.g. BGH, BVerwG).
	Court string
}

// SearchResult is a page of the API's hydra collection.
type SearchResult struct {
	TotalItems int            `json:"totalItems"`
	Member     []SearchMember `json:"member"`
}

// SearchMember wraps one hit and the text fragments that matched.
type SearchMember struct {
	Item        Item        `json:"item"`
	TextMatches []TextMatch `json:"textMatches"`
}

// TextMatch is a highlighted fragment of a hit.
type TextMatch struct {
	Name     string `json:"name"`
	Text     string `json:"text"`
	Location string `json:"location"`
}

// Item is either a legislation expression or a court decision. Fields that do
// not apply to the item's @type are left empty.
type Item struct {
	Type string `json:"@type"`
	ID   string `json:"@id"`

	// Legislation.
	Name                  string `json:"name"`
	Abbreviation          string `json:"abbreviation"`
	AlternateName         string `json:"alternateName"`
	LegislationIdentifier string `json:"legislationIdentifier"`
	LegislationDate       string `json:"legislationDate"`
	DatePublished         string `json:"datePublished"`

	// Case law.
	DocumentNumber string   `json:"documentNumber"`
	ECLI           string   `json:"ecli"`
	Headline       string   `json:"headline"`
	DecisionDate   string   `json:"decisionDate"`
	FileNumbers    []string `json:"fileNumbers"`
	CourtType      string   `json:"courtType"`
	CourtName      string   `json:"courtName"`
	DocumentType   string   `json:"documentType"`
	Keywords       []string `json:"keywords"`

	// Detail documents only.
	GuidingPrinciple string `json:"guidingPrinciple"`
	Tenor            string `json:"tenor"`
}

// IsDecision reports whether the item is a court decision.
func (i Item) IsDecision() bool {
	return i.DocumentNumber != "" || strings.EqualFold(i.Type, "Decision")
}

// Title returns the most descriptive label available for the item.
func (i Item) Title() string {
	for _, s := range []string{i.Headline, i.Name, i.AlternateName, i.Abbreviation, i.DocumentNumber, i.ID} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return "(untitled)"
}
