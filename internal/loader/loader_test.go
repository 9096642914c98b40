package loader

import (
	"reflect"
	"strings"
	"testing"
)

func TestPlanSteps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		plan Plan
		want []string
	}{
		{"none", Plan{}, nil},
		{"all", Plan{All: true}, []string{
			StepSchema, StepCSV, StepEmbeddings, StepLocations, StepSearchVector, StepImageURLs, StepIndexes,
		}},
		{"all with images", Plan{All: true, Images: true}, order},
		{"subset keeps order", Plan{Indexes: true, Schema: true, CSV: true}, []string{StepSchema, StepCSV, StepIndexes}},
	}
	for _, tt := range tests {
		if got := tt.plan.Steps(); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("%s: Steps() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCopyQuery(t *testing.T) {
	t.Parallel()

	got := copyQuery("stores")
	for _, part := range []string{"COPY stores FROM STDIN", "FORMAT csv", "HEADER true", "NULL ''"} {
		if !strings.Contains(got, part) {
			t.Fatalf("copyQuery() = %q, missing %q", got, part)
		}
	}
}

func TestCSVOrderRespectsReferences(t *testing.T) {
	t.Parallel()

	pos := map[string]int{}
	for i, table := range csvTables {
		pos[table] = i
	}
	for child, parents := range map[string][]string{
		"products_variants": {"products"},
		"delivery_methods":  {"stores"},
		"inventory":         {"stores", "products_variants"},
	} {
		for _, parent := range parents {
			if pos[child] < pos[parent] {
				t.Fatalf("%s is loaded before %s", child, parent)
			}
		}
	}
}

func TestVectorLiteral(t *testing.T) {
	t.Parallel()

	if got, want := vectorLiteral([]float32{0.5, -1, 0.25}), "[0.5,-1,0.25]"; got != want {
		t.Fatalf("vectorLiteral() = %q, want %q", got, want)
	}
	if got := vectorLiteral(nil); got != "[]" {
		t.Fatalf("vectorLiteral(nil) = %q, want []", got)
	}
}

func TestLocationsAreLonLat(t *testing.T) {
	t.Parallel()

	for _, points := range []map[int64]Point{storeLocations, userLocations} {
		for id, p := range points {
			// Barcelona: longitude about 2, latitude about 41.
			if p.Lon < 1 || p.Lon > 3 || p.Lat < 41 || p.Lat > 42 {
				t.Fatalf("point %d = %+v, want lon/lat around Barcelona", id, p)
			}
		}
	}
	if ids := sortedIDs(storeLocations); len(ids) != 6 || ids[0] != 1 || ids[5] != 6 {
		t.Fatalf("sortedIDs() = %v", ids)
	}
}

func TestImagePrompt(t *testing.T) {
	t.Parallel()

	got := imagePrompt(product{Name: "Nimbus 25", Brand: "ASICS", Description: "Cushioned running shoe"})
	if !strings.HasPrefix(got, "A professional product photo of ASICS Nimbus 25, Cushioned running shoe.") {
		t.Fatalf("imagePrompt() = %q", got)
	}
}

func TestFirstLine(t *testing.T) {
	t.Parallel()

	if got := firstLine("\n\tCREATE TABLE x (\n id INT\n)"); got != "CREATE TABLE x" {
		t.Fatalf("firstLine() = %q", got)
	}
}
