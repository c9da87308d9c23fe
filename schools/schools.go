// Package schools is the static directory of campuses served by the marketplace.
package schools

import "strings"

type Type string

const (
	TypeUniversity         Type = "university"
	TypeCollege            Type = "college"
	TypeCommunityCollege   Type = "community_college"
	TypeTechnicalInstitute Type = "technical_institute"
)

type School struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	District string `json:"district"`
}

// Filter narrows the directory. Empty fields match everything.
type Filter struct {
	// Name matches case-insensitively anywhere in the school name.
	Name     string
	Type     Type
	District string
}

var directory = []School{
	{Name: "North Campus University", Type: TypeUniversity, District: "North"},
	{Name: "South Campus University", Type: TypeUniversity, District: "South"},
	{Name: "Riverside State University", Type: TypeUniversity, District: "Riverside"},
	{Name: "Lakeshore College", Type: TypeCollege, District: "Lakeshore"},
	{Name: "Hillcrest College of Arts", Type: TypeCollege, District: "Hillcrest"},
	{Name: "Downtown Community College", Type: TypeCommunityCollege, District: "Downtown"},
	{Name: "Eastside Community College", Type: TypeCommunityCollege, District: "Eastside"},
	{Name: "Westfield Institute of Technology", Type: TypeTechnicalInstitute, District: "Westfield"},
	{Name: "Harbor Technical Institute", Type: TypeTechnicalInstitute, District: "Harbor"},
	{Name: "Riverside Community College", Type: TypeCommunityCollege, District: "Riverside"},
}

// All returns a copy of the directory.
func All() []School {
	return append([]School(nil), directory...)
}

func List(f Filter) []School {
	name := strings.ToLower(strings.TrimSpace(f.Name))
	district := strings.TrimSpace(f.District)

	out := make([]School, 0, len(directory))
	for _, s := range directory {
		if name != "" && !strings.Contains(strings.ToLower(s.Name), name) {
			continue
		}
		if f.Type != "" && !strings.EqualFold(string(s.Type), string(f.Type)) {
			continue
		}
		if district != "" && !strings.EqualFold(s.District, district) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Exists reports whether name is a school in the directory.
func Exists(name string) bool {
	for _, s := range directory {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
