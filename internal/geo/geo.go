// Package geo resolves free-text country and city names against an embedded
// reference dataset.
package geo

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/countries.yaml
var countriesYAML []byte

// Country is one entry of the reference dataset.
type Country struct {
	Code   string   `yaml:"code"`
	Name   string   `yaml:"name"`
	Cities []string `yaml:"cities"`
}

// CityMatch pairs a matched city with its country.
type CityMatch struct {
	City        string
	CountryCode string
	CountryName string
}

// Index holds the loaded dataset with lookup structures.
type Index struct {
	countries []Country
	byCode    map[string]*Country
}

// Load parses the embedded dataset into an Index.
func Load() (*Index, error) {
	var doc struct {
		Countries []Country `yaml:"countries"`
	}
	if err := yaml.Unmarshal(countriesYAML, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse country data: %w", err)
	}
	if len(doc.Countries) == 0 {
		return nil, fmt.Errorf("country data is empty")
	}

	idx := &Index{
		countries: doc.Countries,
		byCode:    make(map[string]*Country, len(doc.Countries)),
	}
	for i := range idx.countries {
		c := &idx.countries[i]
		idx.byCode[strings.ToUpper(c.Code)] = c
	}
	return idx, nil
}

// Countries returns all countries in dataset order.
func (idx *Index) Countries() []Country {
	return idx.countries
}

// Country returns a country by its ISO code, or nil when unknown.
func (idx *Index) Country(code string) *Country {
	return idx.byCode[strings.ToUpper(strings.TrimSpace(code))]
}

// SearchCountries returns countries whose name starts with the query,
// case-insensitive. An exact name match returns just that country.
func (idx *Index) SearchCountries(query string) []Country {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var matches []Country
	for _, c := range idx.countries {
		name := strings.ToLower(c.Name)
		if name == q {
			return []Country{c}
		}
		if strings.HasPrefix(name, q) {
			matches = append(matches, c)
		}
	}
	return matches
}

// SearchCities returns cities matching the query across all countries,
// case-insensitive. Exact matches win over prefix matches; a single exact
// match in a single country resolves unambiguously.
func (idx *Index) SearchCities(query string) []CityMatch {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var exact, prefix []CityMatch
	for _, c := range idx.countries {
		for _, city := range c.Cities {
			name := strings.ToLower(city)
			m := CityMatch{City: city, CountryCode: c.Code, CountryName: c.Name}
			if name == q {
				exact = append(exact, m)
			} else if strings.HasPrefix(name, q) {
				prefix = append(prefix, m)
			}
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return prefix
}

// SearchCitiesIn restricts the city search to one country.
func (idx *Index) SearchCitiesIn(code, query string) []CityMatch {
	c := idx.Country(code)
	if c == nil {
		return nil
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var exact, prefix []CityMatch
	for _, city := range c.Cities {
		name := strings.ToLower(city)
		m := CityMatch{City: city, CountryCode: c.Code, CountryName: c.Name}
		if name == q {
			exact = append(exact, m)
		} else if strings.HasPrefix(name, q) {
			prefix = append(prefix, m)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return prefix
}
