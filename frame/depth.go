package frame

// NoBody marks a body index pixel that belongs to no tracked person.
const NoBody uint8 = 0xFF

// MaxBodies is the number of body slots a body index frame distinguishes.
const MaxBodies = 6

// Depth is a raw depth frame: distance from the sensor in millimeters, 0
// where the sensor has no reading.
type Depth struct {
	Width, Height int
	Data          []uint16
}

func (d Depth) Pixels() int {
	return d.Width * d.Height
}

// BodyIndex labels every depth pixel with the body slot occupying it, or
// NoBody. It always shares the depth frame's resolution.
type BodyIndex struct {
	Width, Height int
	Data          []uint8
}

func (b BodyIndex) Pixels() int {
	return b.Width * b.Height
}

// Tracked reports whether pixel i belongs to any tracked body.
func (b BodyIndex) Tracked(i int) bool {
	return b.Data[i] != NoBody
}
