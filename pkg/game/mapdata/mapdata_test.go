package mapdata

import (
	"errors"
	"testing"
)

const sampleMap = `{
	"nome": "Villaggio",
	"larghezza": 3,
	"altezza": 2,
	"griglia": [[0, 1, 0], [0, 0, 0]],
	"npg": {"[2,1]": {"nome": "Goblin", "sprite": "goblin"}, "[0,0]": {"nome": "Guardia"}},
	"oggetti": {"[1,1]": {"nome": "Chiave"}, "oops": {"nome": "Rotto"}}
}`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleMap))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Name != "Villaggio" || m.Width != 3 || m.Height != 2 {
		t.Errorf("Parse = %+v", m)
	}
	if warnings, err := m.Validate(); err != nil || len(warnings) != 0 {
		t.Errorf("Validate() = %v, %v; want no warnings, nil", warnings, err)
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		m    Map
		want error
	}{
		{"no width", Map{Height: 1, Grid: [][]int{{0}}}, ErrNoWidth},
		{"no height", Map{Width: 1, Grid: [][]int{{0}}}, ErrNoHeight},
		{"empty grid", Map{Width: 1, Height: 1}, ErrEmptyGrid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.m.Validate()
			if !errors.Is(err, tc.want) {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidate_ShortGridIsWarning(t *testing.T) {
	m := Map{Width: 2, Height: 4, Grid: [][]int{{0, 0}, {0, 1}}}
	warnings, err := m.Validate()
	if err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one", warnings)
	}
	g := m.WorldGrid()
	if g.Rows() != 4 || !g.IsWalkable(3, 1) || g.IsWalkable(1, 1) {
		t.Error("WorldGrid did not pad the short grid with walkable rows")
	}
}

func TestPlacements(t *testing.T) {
	m, err := Parse([]byte(sampleMap))
	if err != nil {
		t.Fatal(err)
	}
	npcs, bad := m.NPCPlacements()
	if len(bad) != 0 {
		t.Errorf("bad NPC keys = %v, want none", bad)
	}
	if len(npcs) != 2 || npcs[0].Name != "Guardia" || npcs[1].X != 2 || npcs[1].Y != 1 {
		t.Errorf("NPCPlacements() = %+v", npcs)
	}
	objs, bad := m.ObjectPlacements()
	if len(objs) != 1 || len(bad) != 1 || bad[0] != "oops" {
		t.Errorf("ObjectPlacements() = %+v, bad %v", objs, bad)
	}
}

func TestParseKey(t *testing.T) {
	cases := []struct {
		key  string
		x, y int
		ok   bool
	}{
		{"[3,4]", 3, 4, true},
		{" [ 10 , 2 ] ", 10, 2, true},
		{"3,4", 0, 0, false},
		{"[a,4]", 0, 0, false},
		{"[1,2,3]", 0, 0, false},
	}
	for _, tc := range cases {
		x, y, err := ParseKey(tc.key)
		if (err == nil) != tc.ok || x != tc.x || y != tc.y {
			t.Errorf("ParseKey(%q) = %d, %d, %v", tc.key, x, y, err)
		}
	}
	if FormatKey(3, 4) != "[3,4]" {
		t.Errorf("FormatKey(3, 4) = %q", FormatKey(3, 4))
	}
}
