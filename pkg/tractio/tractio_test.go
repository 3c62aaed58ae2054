package tractio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"tractseg/internal/models"
)

// TestReadBundle verifies parsing of points, separators, comments and directives
func TestReadBundle(t *testing.T) {
	input := `# exported bundle
# affine 2 0 0 -10 0 2 0 0 0 0 2 0 0 0 0 1
# group patients left
0 0 0
1 0 0
2.5 0 0


0 1 0
1 1 1e-1
`
	b, err := ReadBundle(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadBundle failed: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("Expected 2 streamlines, got %d", b.Len())
	}
	if len(b.Streamlines[0]) != 3 || len(b.Streamlines[1]) != 2 {
		t.Errorf("Expected 3 and 2 points, got %d and %d", len(b.Streamlines[0]), len(b.Streamlines[1]))
	}
	if b.Streamlines[1][1] != (models.Point{X: 1, Y: 1, Z: 0.1}) {
		t.Errorf("Unexpected last point %v", b.Streamlines[1][1])
	}
	if b.Affine[0][0] != 2 || b.Affine[0][3] != -10 {
		t.Errorf("Unexpected affine %v", b.Affine)
	}
	if b.Group != "patients" || b.Subgroup != "left" {
		t.Errorf("Expected group patients/left, got %s/%s", b.Group, b.Subgroup)
	}
}

// TestReadBundleErrors verifies rejection of malformed input
func TestReadBundleErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"two coordinates", "1 2\n"},
		{"bad number", "1 2 x\n"},
		{"short affine", "# affine 1 0 0\n1 2 3\n"},
	}
	for _, tt := range tests {
		if _, err := ReadBundle(strings.NewReader(tt.input)); !errors.Is(err, models.ErrInput) {
			t.Errorf("%s: expected ErrInput, got %v", tt.name, err)
		}
	}
}

// TestBundleFileRoundTrip verifies that a written bundle reads back unchanged
func TestBundleFileRoundTrip(t *testing.T) {
	b := models.NewBundle([]models.Streamline{
		{{X: 0.125, Y: -3, Z: 7}, {X: 1e-7, Y: 2, Z: 3}},
		{{X: 9, Y: 9, Z: 9}},
	}, models.Scaling(1.25, 1.25, 1.25, models.Point{X: -90, Y: -126, Z: -72}))
	b.Group = "controls"

	path := filepath.Join(t.TempDir(), "out", "bundle.txt")
	if err := WriteBundleFile(path, b); err != nil {
		t.Fatalf("WriteBundleFile failed: %v", err)
	}
	got, err := ReadBundleFile(path)
	if err != nil {
		t.Fatalf("ReadBundleFile failed: %v", err)
	}
	if got.Len() != b.Len() || got.NumPoints() != b.NumPoints() {
		t.Fatalf("Expected %d streamlines and %d points, got %d and %d",
			b.Len(), b.NumPoints(), got.Len(), got.NumPoints())
	}
	for i, p := range b.Points() {
		if got.Points()[i] != p {
			t.Errorf("Point %d: expected %v, got %v", i, p, got.Points()[i])
		}
	}
	if got.Affine != b.Affine || got.Group != "controls" {
		t.Errorf("Metadata did not survive: %v %q", got.Affine, got.Group)
	}
}

// TestWritePoints verifies the per-point CSV layout
func TestWritePoints(t *testing.T) {
	b := models.NewBundle([]models.Streamline{
		{{X: 0}, {X: 1}},
		{{Y: 2}},
	}, models.Identity())
	labels := []int{1, 2, 0}
	colors := []models.RGB{{1, 0, 0}, {0, 1, 0}, {0, 0, 0}}

	var buf bytes.Buffer
	if err := WritePoints(&buf, b, labels, colors); err != nil {
		t.Fatalf("WritePoints failed: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse output: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("Expected header and 3 rows, got %d records", len(records))
	}
	if strings.Join(records[0], ",") != "streamline,point,x,y,z,label,r,g,b" {
		t.Errorf("Unexpected header %v", records[0])
	}
	last := records[3]
	if last[0] != "1" || last[1] != "0" || last[3] != "2.000000" || last[5] != "0" {
		t.Errorf("Unexpected last row %v", last)
	}

	if err := WritePoints(&buf, b, labels[:2], colors); !errors.Is(err, models.ErrInput) {
		t.Errorf("Expected ErrInput for short labels, got %v", err)
	}
	buf.Reset()
	if err := WritePoints(&buf, b, nil, colors); err != nil {
		t.Errorf("Expected nil labels to be accepted, got %v", err)
	}
}
