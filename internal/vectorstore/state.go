package vectorstore

// ConnState is the cached outcome of an Index's connectivity probe.
// It moves from Unprobed to Available or Unavailable once per instance
// and only Reset moves it back.
type ConnState int

const (
	Unprobed ConnState = iota
	Available
	Unavailable
)

func (s ConnState) String() string {
	switch s {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unprobed"
	}
}
