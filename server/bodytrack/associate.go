package bodytrack

import "github.com/cyclopcam/perimeter/pkg/nn"

// AssociateFace returns the index of the person box that contains the largest fraction
// of the face's area, or -1 if no person box contains more than minOverlap of it.
// We don't use IoU here, because faces are so much smaller than bodies that IoU would
// never clear a sane threshold.
func AssociateFace(face nn.Rect, persons []nn.PersonBox, minOverlap float32) int {
	best := -1
	bestOverlap := minOverlap
	for i := range persons {
		ov := face.OverlapFraction(persons[i].Box)
		if ov > bestOverlap {
			bestOverlap = ov
			best = i
		}
	}
	return best
}

// FaceForPerson is the reverse lookup: the face that best belongs to a single person box.
// Returns nil if no face has more than minOverlap of its area inside the person.
func FaceForPerson(person nn.Rect, faces []nn.FaceMatch, minOverlap float32) *nn.FaceMatch {
	var best *nn.FaceMatch
	bestOverlap := minOverlap
	for i := range faces {
		ov := faces[i].Box.OverlapFraction(person)
		if ov > bestOverlap {
			bestOverlap = ov
			best = &faces[i]
		}
	}
	return best
}
