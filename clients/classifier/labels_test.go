package classifier

import "testing"

func TestMapClassLabel(t *testing.T) {
	cases := map[string]Label{
		"Class 0": LabelBackward,
		"Class 3": LabelForward,
		"Class 5": LabelLeft,
		"Class 6": LabelNoOperation,
		"Class 7": LabelRight,
		"Class 1": LabelUnknown,
		"Class 9": LabelUnknown,
		"":        LabelUnknown,
		"forward": LabelUnknown,
	}

	for class, expected := range cases {
		if actual := MapClassLabel(class); actual != expected {
			t.Errorf("MapClassLabel(%q): expected %s, got %s", class, expected, actual)
		}
	}
}
