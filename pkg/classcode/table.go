package classcode

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Department classifies a class into a school department.
type Department string

const (
	NoDepartment   Department = ""
	DeptGymD       Department = "GYMD"
	DeptGymDBili   Department = "GYMD_BILI"
	DeptGymF       Department = "GYMF"
	DeptGymFBili   Department = "GYMF_BILI"
	DeptFMS        Department = "FMS"
	DeptFMPaed     Department = "FMPAED"
	DeptWMS        Department = "WMS"
	DeptESC        Department = "ESC"
	DeptECG        Department = "ECG"
	DeptMSOP       Department = "MSOP"
	DeptPasserelle Department = "PASSERELLE"
)

// LegacyEntry maps a legacy code onto the current naming scheme.
type LegacyEntry struct {
	Department Department `yaml:"department"`
	// Code is the department letter of the current scheme.
	Code string `yaml:"code"`
	// Seat overrides the seat letter; empty keeps the legacy letter.
	Seat string `yaml:"seat,omitempty"`
}

// LegacyTable holds the substitutions for years before the cutoff.
type LegacyTable struct {
	Letters   map[string]LegacyEntry `yaml:"letters"`
	Overrides map[string]LegacyEntry `yaml:"overrides"`
}

// SeatRule assigns a department to an inclusive seat letter range.
type SeatRule struct {
	From       string     `yaml:"from"`
	To         string     `yaml:"to"`
	Department Department `yaml:"department"`
}

// Table is the configuration data driving the resolver.
type Table struct {
	CutoffYear int                   `yaml:"cutoff_year"`
	Legacy     LegacyTable           `yaml:"legacy"`
	Current    map[string][]SeatRule `yaml:"current"`
}

// DefaultTable returns the built-in naming scheme.
func DefaultTable() Table {
	letters := map[string]LegacyEntry{
		"i": {Department: DeptWMS, Code: "W", Seat: "a"},
		"k": {Department: DeptFMS, Code: "F", Seat: "a"},
		"l": {Department: DeptFMS, Code: "F", Seat: "b"},
		"m": {Department: DeptFMPaed, Code: "F", Seat: "p"},
		"K": {Department: DeptESC, Code: "s", Seat: "a"},
		"L": {Department: DeptESC, Code: "s", Seat: "b"},
		"M": {Department: DeptECG, Code: "c", Seat: "A"},
	}
	for _, l := range "abcdefgh" {
		letters[string(l)] = LegacyEntry{Department: DeptGymD, Code: "G"}
	}
	for _, l := range "wxyz" {
		letters[string(l)] = LegacyEntry{Department: DeptGymDBili, Code: "G"}
	}
	// upper-case blocks belong to the French-speaking scheme
	for _, l := range "ABCDEFGH" {
		letters[string(l)] = LegacyEntry{Department: DeptGymF, Code: "m"}
	}
	for _, l := range "STUVWXYZ" {
		letters[string(l)] = LegacyEntry{Department: DeptGymFBili, Code: "m"}
	}

	return Table{
		CutoffYear: 27,
		Legacy: LegacyTable{
			Letters: letters,
			Overrides: map[string]LegacyEntry{
				"25h": {Department: DeptGymDBili, Code: "G", Seat: "w"},
				"26n": {Department: DeptMSOP, Code: "M", Seat: "a"},
			},
		},
		Current: map[string][]SeatRule{
			"G": {{From: "a", To: "r", Department: DeptGymD}, {From: "s", To: "z", Department: DeptGymDBili}},
			"m": {{From: "A", To: "R", Department: DeptGymF}, {From: "S", To: "Z", Department: DeptGymFBili}},
			"F": {{From: "a", To: "o", Department: DeptFMS}, {From: "p", To: "z", Department: DeptFMPaed}},
			"W": {{From: "a", To: "z", Department: DeptWMS}},
			"s": {{From: "a", To: "z", Department: DeptESC}},
			"c": {{From: "A", To: "Z", Department: DeptECG}},
			"M": {{From: "a", To: "z", Department: DeptMSOP}},
			"P": {{From: "a", To: "z", Department: DeptPasserelle}},
		},
	}
}

// LoadTable reads a YAML table from path. An empty path yields DefaultTable.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read class code table: %w", err)
	}
	var table Table
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return Table{}, fmt.Errorf("parse class code table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return Table{}, err
	}
	return table, nil
}

// Validate checks the table for malformed letters and ranges.
func (t Table) Validate() error {
	if t.CutoffYear < 0 || t.CutoffYear > 99 {
		return fmt.Errorf("cutoff year %d out of range", t.CutoffYear)
	}
	for key, entry := range t.Legacy.Letters {
		if !isLetter(key) {
			return fmt.Errorf("legacy letter %q must be a single letter", key)
		}
		if err := entry.validate(key); err != nil {
			return err
		}
	}
	for key, entry := range t.Legacy.Overrides {
		if len(key) != 3 || !isDigits(key[:2]) || !isLetter(key[2:]) {
			return fmt.Errorf("legacy override %q must look like 24a", key)
		}
		if err := entry.validate(key); err != nil {
			return err
		}
	}
	for code, rules := range t.Current {
		if !isLetter(code) {
			return fmt.Errorf("department code %q must be a single letter", code)
		}
		for _, rule := range rules {
			if !isLetter(rule.From) || !isLetter(rule.To) || rule.From > rule.To {
				return fmt.Errorf("department %q: invalid seat range %s-%s", code, rule.From, rule.To)
			}
			if rule.Department == NoDepartment {
				return fmt.Errorf("department %q: seat range %s-%s has no department", code, rule.From, rule.To)
			}
		}
	}
	return nil
}

func (e LegacyEntry) validate(key string) error {
	if e.Department == NoDepartment {
		return fmt.Errorf("legacy entry %q has no department", key)
	}
	if !isLetter(e.Code) {
		return fmt.Errorf("legacy entry %q: code %q must be a single letter", key, e.Code)
	}
	if e.Seat != "" && !isLetter(e.Seat) {
		return fmt.Errorf("legacy entry %q: seat %q must be a single letter", key, e.Seat)
	}
	return nil
}

func isLetter(s string) bool {
	if len(s) != 1 {
		return false
	}
	c := s[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
