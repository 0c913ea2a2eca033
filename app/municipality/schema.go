package municipality

import (
	"github.com/mahesh-hegde/tilasto/app/common"
)

type SuggestParams struct {
	PartialQuery string
	Limit        int
}

type Suggestions struct {
	Items []common.Entity `json:"items"`
}

// EntityInDB is the indexed form of an entity. Position keeps the order
// the statistics API lists entities in, whole country first.
type EntityInDB struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NameFolded string `json:"name_f"`
	Position   int    `json:"position"`
}

// Type implements bleve's mapping.Classifier.
func (e *EntityInDB) Type() string {
	return "entity"
}

func prepareEntityForDb(e common.Entity, position int) EntityInDB {
	return EntityInDB{
		Code:       e.Code,
		Name:       e.Name,
		NameFolded: common.FoldName(e.Name),
		Position:   position,
	}
}

const defaultSuggestLimit = 20
