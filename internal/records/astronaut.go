package records

import "github.com/petrijr/hubcheck/pkg/api"

// AstronautCollection is the collection the workflow writes to.
const AstronautCollection = "Astronaut"

// Astronaut is the demo record of the round trip.
type Astronaut struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Missions  int    `json:"missions"`
}

// NewAstronaut returns the record the workflow creates. The id is left
// empty for the database to assign.
func NewAstronaut() Astronaut {
	return Astronaut{FirstName: "Buzz", LastName: "Aldrin", Missions: 2}
}

// AstronautQuery matches records created by NewAstronaut.
func AstronautQuery() api.Query {
	return api.Where("firstName").Eq("Buzz")
}

// AstronautSchema is the JSON schema of the collection.
var AstronautSchema = []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "Astronaut",
  "type": "object",
  "required": ["_id", "firstName", "lastName", "missions"],
  "properties": {
    "_id": {"type": "string"},
    "firstName": {"type": "string", "minLength": 1},
    "lastName": {"type": "string", "minLength": 1},
    "missions": {"type": "integer", "minimum": 0}
  }
}`)
