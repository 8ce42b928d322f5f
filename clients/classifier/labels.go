package classifier

// Label is the canonical motion directive derived from a classifier
// output class.
type Label string

const (
	LabelForward     Label = "Forward"
	LabelBackward    Label = "Backward"
	LabelLeft        Label = "Left"
	LabelRight       Label = "Right"
	LabelNoOperation Label = "NoOperation"
	LabelUnknown     Label = "Unknown"
)

// the model's output classes are fixed, anything else is unrecognized
var classLabels = map[string]Label{
	"Class 0": LabelBackward,
	"Class 3": LabelForward,
	"Class 5": LabelLeft,
	"Class 6": LabelNoOperation,
	"Class 7": LabelRight,
}

func MapClassLabel(class string) Label {
	if label, ok := classLabels[class]; ok {
		return label
	}

	return LabelUnknown
}
