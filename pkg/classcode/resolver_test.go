package classcode

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCurrentScheme(t *testing.T) {
	r := NewResolver(DefaultTable())

	cases := []struct {
		name string
		want Department
	}{
		{"27Ga", DeptGymD},
		{"27Gr", DeptGymD},
		{"27Gw", DeptGymDBili},
		{"27mA", DeptGymF},
		{"27mT", DeptGymFBili},
		{"27Fa", DeptFMS},
		{"27Fp", DeptFMPaed},
		{"28Wa", DeptWMS},
		{"28sb", DeptESC},
		{"28cA", DeptECG},
		{"29Ma", DeptMSOP},
		{"29Pa", DeptPasserelle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := r.Resolve(tc.name)
			assert.Equal(t, tc.want, res.Department)
			assert.Equal(t, tc.name, res.Canonical)
			assert.False(t, res.Legacy)
			assert.True(t, res.OK())
		})
	}
}

func TestResolveLegacyScheme(t *testing.T) {
	r := NewResolver(DefaultTable())

	res := r.Resolve("24a")
	assert.True(t, res.Legacy)
	assert.Equal(t, DeptGymD, res.Department)
	assert.Equal(t, "24Ga", res.Canonical)
	assert.Equal(t, 24, res.Year)

	res = r.Resolve("26C")
	assert.Equal(t, DeptGymF, res.Department)
	assert.Equal(t, "26mC", res.Canonical)

	res = r.Resolve("24i")
	assert.Equal(t, DeptWMS, res.Department)
	assert.Equal(t, "24Wa", res.Canonical)

	// full-code override wins over the letter table
	res = r.Resolve("25h")
	assert.Equal(t, DeptGymDBili, res.Department)
	assert.Equal(t, "25Gw", res.Canonical)
	assert.Equal(t, DeptGymD, r.Department("24h"))
}

func TestResolveUnresolved(t *testing.T) {
	r := NewResolver(DefaultTable())

	for _, name := range []string{"", "a", "27", "xyGa", "27Qa", "27G1", "24q", "27Gaa", "  "} {
		res := r.Resolve(name)
		assert.Equal(t, NoDepartment, res.Department, name)
		assert.False(t, res.OK(), name)
	}
	assert.Equal(t, "27Qa", r.Canonical(" 27Qa "))
}

func TestLegacyTableAlwaysResolves(t *testing.T) {
	table := DefaultTable()
	r := NewResolver(table)
	legacyDepartments := map[Department]bool{}
	for _, entry := range table.Legacy.Letters {
		legacyDepartments[entry.Department] = true
	}
	for _, entry := range table.Legacy.Overrides {
		legacyDepartments[entry.Department] = true
	}

	for year := 0; year < table.CutoffYear; year++ {
		for letter := range table.Legacy.Letters {
			name := fmt.Sprintf("%02d%s", year, letter)
			res := r.Resolve(name)
			require.True(t, res.OK(), name)
			assert.True(t, legacyDepartments[res.Department], name)
			assert.True(t, res.Legacy, name)
		}
	}
	for code := range table.Legacy.Overrides {
		assert.True(t, r.Resolve(code).OK(), code)
	}
}

func TestAliasesAndEquivalence(t *testing.T) {
	r := NewResolver(DefaultTable())

	assert.Equal(t, []string{"24a", "24Ga"}, r.Aliases("24a"))
	assert.Equal(t, []string{"27Gw"}, r.Aliases("27Gw"))
	assert.True(t, r.Equivalent("24a", "24Ga"))
	assert.True(t, r.Equivalent("24Ga", "24a"))
	assert.False(t, r.Equivalent("24a", "24Gb"))
	assert.False(t, r.Equivalent("27Qa", "27Qb"))
}

func TestLoadTableFixture(t *testing.T) {
	table, err := LoadTable("testdata/table.yaml")
	require.NoError(t, err)
	r := NewResolver(table)

	assert.Equal(t, DeptGymD, r.Department("18a"))
	assert.Equal(t, "18mB", r.Canonical("18B"))
	assert.Equal(t, DeptWMS, r.Department("19z"))
	assert.Equal(t, NoDepartment, r.Department("18c"))
	assert.Equal(t, DeptGymD, r.Department("21Gq"))
}

func TestLoadTableDefaultsAndErrors(t *testing.T) {
	table, err := LoadTable("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTable().CutoffYear, table.CutoffYear)

	_, err = LoadTable("testdata/missing.yaml")
	assert.Error(t, err)

	_, err = LoadTable("testdata/invalid.yaml")
	assert.ErrorContains(t, err, "invalid seat range")
}

func TestDefaultTableIsValid(t *testing.T) {
	assert.NoError(t, DefaultTable().Validate())
}
