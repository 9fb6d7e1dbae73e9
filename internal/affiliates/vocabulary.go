package affiliates

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary holds the closed code sets used as validation oracles.
type Vocabulary struct {
	IdentificationTypes map[string]struct{}
	StatusTypes         map[string]struct{}
	AreaTypes           map[string]struct{}
	EPSCodes            map[string]struct{}
	PopulationTypes     map[int]struct{}
}

var (
	defaultIdentificationTypes = []string{"CC", "CE", "CD", "CN", "TI", "RC", "PA", "PE", "PT", "SC", "MS", "AS"}
	defaultStatusTypes         = []string{"AC", "AF", "RE", "SD", "SM", "SU", "FA"}
	defaultAreaTypes           = []string{"U", "R"}
	defaultEPSCodes            = []string{
		"EPS001", "EPS002", "EPS005", "EPS008", "EPS010", "EPS012", "EPS017", "EPS018",
		"EPS037", "EPS041", "EPS042", "EPS044", "EPS045", "EPS046", "EPS047", "EPS048",
		"EPSS01", "EPSS02", "EPSS05", "EPSS08", "EPSS10", "EPSS12", "EPSS17", "EPSS18",
		"EPSS37", "EPSS41", "EPSS42", "EPSS44", "EPSS45", "EPSS46", "EPSS47", "EPSS48",
		"CCF024", "CCF033", "CCF055", "CCF102", "ESS024", "ESS062", "ESS076", "ESS118",
		"ESS133", "ESS207", "EPSI01", "EPSI03", "EPSI04", "EPSI05", "EPSI06",
		"EPSIC1", "EPSIC3", "EPSIC4", "EPSIC5", "EPSIC6",
	}
	defaultPopulationTypes = []int{
		1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25,
		31, 32, 33, 34, 35, 36, 37, 38, 39, 40,
	}
)

// DefaultVocabulary returns a fresh copy of the built-in code sets.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		IdentificationTypes: stringSet(defaultIdentificationTypes),
		StatusTypes:         stringSet(defaultStatusTypes),
		AreaTypes:           stringSet(defaultAreaTypes),
		EPSCodes:            stringSet(defaultEPSCodes),
		PopulationTypes:     intSet(defaultPopulationTypes),
	}
}

type vocabularyFile struct {
	IdentificationTypes []string `yaml:"identification_types"`
	StatusTypes         []string `yaml:"status_types"`
	AreaTypes           []string `yaml:"area_types"`
	EPSCodes            []string `yaml:"eps_codes"`
	PopulationTypes     []int    `yaml:"population_types"`
}

// LoadVocabulary returns the defaults with every list present in the YAML
// file at path replacing its built-in counterpart. An empty path yields the
// defaults.
func LoadVocabulary(path string) (*Vocabulary, error) {
	vocab := DefaultVocabulary()
	if strings.TrimSpace(path) == "" {
		return vocab, nil
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	var file vocabularyFile
	if err := yaml.Unmarshal(blob, &file); err != nil {
		return nil, fmt.Errorf("parse vocabulary file %s: %w", path, err)
	}

	if len(file.IdentificationTypes) > 0 {
		vocab.IdentificationTypes = stringSet(file.IdentificationTypes)
	}
	if len(file.StatusTypes) > 0 {
		vocab.StatusTypes = stringSet(file.StatusTypes)
	}
	if len(file.AreaTypes) > 0 {
		vocab.AreaTypes = stringSet(file.AreaTypes)
	}
	if len(file.EPSCodes) > 0 {
		vocab.EPSCodes = stringSet(file.EPSCodes)
	}
	if len(file.PopulationTypes) > 0 {
		vocab.PopulationTypes = intSet(file.PopulationTypes)
	}
	return vocab, nil
}

func (v *Vocabulary) HasIdentificationType(code string) bool {
	return hasCode(v.IdentificationTypes, code)
}

func (v *Vocabulary) HasStatus(code string) bool {
	return hasCode(v.StatusTypes, code)
}

func (v *Vocabulary) HasArea(code string) bool {
	return hasCode(v.AreaTypes, code)
}

func (v *Vocabulary) HasEPS(code string) bool {
	return hasCode(v.EPSCodes, code)
}

func (v *Vocabulary) HasPopulationType(id int) bool {
	_, ok := v.PopulationTypes[id]
	return ok
}

func hasCode(set map[string]struct{}, code string) bool {
	_, ok := set[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

func stringSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

func intSet(values []int) map[int]struct{} {
	out := make(map[int]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
