package ports

type Direction uint8

const (
	DirIn Direction = iota
	DirOut
)

func (d Direction) String() string {
	if d == DirIn {
		return "in"
	}
	return "out"
}

// FrameTap observes traffic crossing the bridge's attachments.
type FrameTap interface {
	Record(port int, dir Direction, b []byte)
}
