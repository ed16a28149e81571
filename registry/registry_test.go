package registry_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/xraph/warden/registry"
)

func TestLookup(t *testing.T) {
	r := registry.Default()

	d := r.Lookup("visuals_sketch")
	if d.BaseCost != 12 || d.Category != registry.CategoryAIVisual {
		t.Errorf("visuals_sketch = %+v", d)
	}
	if !r.Known("visuals_sketch") {
		t.Error("visuals_sketch should be known")
	}

	unknown := r.Lookup("brand_new_event")
	if unknown.Category != registry.CategoryUnknown {
		t.Errorf("unknown category = %q, want %q", unknown.Category, registry.CategoryUnknown)
	}
	if unknown.BaseCost != 0 {
		t.Errorf("unknown base cost = %d, want 0", unknown.BaseCost)
	}
	if unknown.Description != "brand_new_event" {
		t.Errorf("unknown description = %q", unknown.Description)
	}
	if r.Known("brand_new_event") {
		t.Error("brand_new_event should not be known")
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	lookup := func(r *registry.Registry) registry.Definition { return r.Lookup("structuring_diagnose") }
	fromAll := func(r *registry.Registry) registry.Definition {
		all := r.All()
		return all[slices.IndexFunc(all, func(d registry.Definition) bool { return d.EventType == "structuring_diagnose" })]
	}

	tests := []struct {
		name   string
		get    func(r *registry.Registry) registry.Definition
		mutate func(d *registry.Definition)
		check  func(d registry.Definition) bool
	}{
		{
			name:   "features",
			get:    lookup,
			mutate: func(d *registry.Definition) { d.Features["echo"] = 500 },
			check:  func(d registry.Definition) bool { return d.Features["echo"] == 5 },
		},
		{
			name:   "complexity bounds",
			get:    lookup,
			mutate: func(d *registry.Definition) { d.Complexity.Max = 100 },
			check:  func(d registry.Definition) bool { return d.Complexity.Max == 2.5 },
		},
		{
			name:   "complexity bounds through All",
			get:    fromAll,
			mutate: func(d *registry.Definition) { d.Complexity.Min = 0 },
			check:  func(d registry.Definition) bool { return d.Complexity.Min == 1.0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := registry.Default()

			d := tt.get(r)
			tt.mutate(&d)

			if got := r.Lookup("structuring_diagnose"); !tt.check(got) {
				t.Errorf("registry mutated through a returned definition: %+v", got)
			}
		})
	}
}

func TestCategoryMembers(t *testing.T) {
	r := registry.Default()

	got := r.CategoryMembers(registry.CategoryDataTransfer)
	want := []string{
		"push_solutioning_to_sow",
		"push_sow_to_loe",
		"push_structuring_to_visuals",
		"push_visuals_to_solutioning",
	}
	if !slices.Equal(got, want) {
		t.Errorf("CategoryMembers = %v, want %v", got, want)
	}

	if got := r.CategoryMembers("nonexistent"); len(got) != 0 {
		t.Errorf("expected no members, got %v", got)
	}
	if !slices.Contains(r.Categories(), registry.CategoryAICanvas) {
		t.Errorf("Categories missing %q: %v", registry.CategoryAICanvas, r.Categories())
	}
	if r.Len() != 14 {
		t.Errorf("Len = %d, want 14", r.Len())
	}
}

func TestNewRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name string
		defs []registry.Definition
		want error
	}{
		{"empty type", []registry.Definition{{Category: "x"}}, registry.ErrInvalidDefinition},
		{"empty category", []registry.Definition{{EventType: "a"}}, registry.ErrInvalidDefinition},
		{"negative cost", []registry.Definition{{EventType: "a", Category: "x", BaseCost: -1}}, registry.ErrInvalidDefinition},
		{"inverted bounds", []registry.Definition{{EventType: "a", Category: "x", Complexity: &registry.Bounds{Min: 2, Max: 1}}}, registry.ErrInvalidDefinition},
		{"negative feature", []registry.Definition{{EventType: "a", Category: "x", Features: map[string]int64{"f": -2}}}, registry.ErrInvalidDefinition},
		{"duplicate", []registry.Definition{{EventType: "a", Category: "x"}, {EventType: "a", Category: "y"}}, registry.ErrDuplicateEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.New(tt.defs...)
			if !errors.Is(err, tt.want) {
				t.Errorf("New error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseYAML(t *testing.T) {
	r, err := registry.Parse([]byte(`
events:
  - event_type: report_export
    description: Export a report
    category: exports
    base_cost: 4
    complexity:
      min: 1
      max: 2
    features:
      watermark: 1
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	d := r.Lookup("report_export")
	if d.BaseCost != 4 || d.Complexity == nil || d.Complexity.Max != 2 || d.Features["watermark"] != 1 {
		t.Errorf("report_export = %+v", d)
	}

	out, err := r.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	again, err := registry.Parse(out)
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}
	if again.Lookup("report_export").BaseCost != 4 {
		t.Error("catalog did not survive a YAML round trip")
	}

	if _, err := registry.Parse([]byte("events: [{event_type: bad, base_cost: 1}]")); !errors.Is(err, registry.ErrInvalidDefinition) {
		t.Errorf("expected invalid definition error, got %v", err)
	}
}
