package detection

import (
	"reflect"
	"testing"
)

func det(label string, conf float64, x, y, w, h int) Detection {
	return Detection{Label: label, Confidence: conf, Box: BoundingBox{X: x, Y: y, Width: w, Height: h}}
}

func TestMerge_ShortListsUnchanged(t *testing.T) {
	// Heavily overlapping, same label, but only three of them.
	in := []Detection{
		det("button", 0.6, 0, 0, 100, 100),
		det("button", 0.7, 5, 5, 100, 100),
		det("button", 0.8, 10, 10, 100, 100),
	}

	out := Merge(in)
	if !reflect.DeepEqual(out, in) {
		t.Errorf("Merge changed a 3-element list: %+v", out)
	}
	if len(Merge(nil)) != 0 {
		t.Error("Merge(nil) should be empty")
	}
}

func TestMerge_Cases(t *testing.T) {
	far := det("icon", 0.5, 900, 900, 10, 10)
	far2 := det("icon", 0.5, 700, 900, 10, 10)

	tests := []struct {
		name string
		in   []Detection
		want []Detection
	}{
		{
			name: "overlapping same label merge",
			in: []Detection{
				det("window", 0.6, 0, 0, 100, 100),
				det("window", 0.9, 10, 10, 100, 100),
				far, far2,
			},
			want: []Detection{det("window", 0.9, 0, 0, 110, 110), far, far2},
		},
		{
			name: "different labels never merge",
			in: []Detection{
				det("window", 0.6, 0, 0, 100, 100),
				det("button", 0.9, 10, 10, 100, 100),
				far, far2,
			},
			want: []Detection{
				det("window", 0.6, 0, 0, 100, 100),
				det("button", 0.9, 10, 10, 100, 100),
				far, far2,
			},
		},
		{
			name: "overlap at exactly half does not merge",
			in: []Detection{
				det("window", 0.6, 0, 0, 100, 100),
				det("window", 0.6, 50, 0, 100, 100),
				far, far2,
			},
			want: []Detection{
				det("window", 0.6, 0, 0, 100, 100),
				det("window", 0.6, 50, 0, 100, 100),
				far, far2,
			},
		},
		{
			name: "touching edges do not merge",
			in: []Detection{
				det("button", 0.6, 0, 0, 10, 10),
				det("button", 0.6, 10, 0, 10, 10),
				far, far2,
			},
			want: []Detection{
				det("button", 0.6, 0, 0, 10, 10),
				det("button", 0.6, 10, 0, 10, 10),
				far, far2,
			},
		},
		{
			name: "small box inside large box",
			in: []Detection{
				det("ui_element", 0.5, 200, 200, 10, 10),
				det("ui_element", 0.7, 150, 150, 200, 200),
				far, far2,
			},
			want: []Detection{det("ui_element", 0.7, 150, 150, 200, 200), far, far2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Merge() =\n %+v\nwant\n %+v", got, tt.want)
			}
		})
	}
}

func TestMerge_GrowingBoxIsOrderDependent(t *testing.T) {
	a := det("button", 0.6, 0, 0, 10, 10)
	b := det("button", 0.7, 4, 0, 10, 10) // overlaps a by 60
	c := det("button", 0.8, 8, 0, 10, 10) // overlaps a by 20, a∪b by 60
	x := det("icon", 0.5, 500, 500, 10, 10)

	// a absorbs b, grows to x∈[0,14), then absorbs c through the grown box.
	inOrder := Merge([]Detection{a, b, c, x})
	want := []Detection{det("button", 0.8, 0, 0, 18, 10), x}
	if !reflect.DeepEqual(inOrder, want) {
		t.Errorf("a,b,c order = %+v, want %+v", inOrder, want)
	}

	// With c before b, a has not grown yet when c is examined.
	swapped := Merge([]Detection{a, c, b, x})
	want = []Detection{det("button", 0.7, 0, 0, 14, 10), c, x}
	if !reflect.DeepEqual(swapped, want) {
		t.Errorf("a,c,b order = %+v, want %+v", swapped, want)
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	in := []Detection{
		det("window", 0.6, 0, 0, 100, 100),
		det("window", 0.9, 10, 10, 100, 100),
		det("icon", 0.5, 900, 900, 10, 10),
		det("icon", 0.5, 700, 900, 10, 10),
	}
	snapshot := append([]Detection(nil), in...)

	Merge(in)
	if !reflect.DeepEqual(in, snapshot) {
		t.Errorf("input modified: %+v", in)
	}
}
