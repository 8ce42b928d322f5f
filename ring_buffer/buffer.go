package ring_buffer

// bufImpl is a fixed-size circular window of level readings. Writing
// past the end overwrites the oldest reading.
type bufImpl struct {
	buffer []float64
	head   int
	filled int
}

func New(size int) *bufImpl {
	return &bufImpl{
		buffer: make([]float64, size),
		head:   0,
	}
}

func (r *bufImpl) Add(level float64) {
	r.buffer[r.head] = level
	r.head = (r.head + 1) % len(r.buffer)

	if r.filled < len(r.buffer) {
		r.filled++
	}
}

// Average returns the mean of the readings currently in the window,
// or 0 when nothing has been added yet.
func (r *bufImpl) Average() float64 {
	if r.filled == 0 {
		return 0
	}

	sum := 0.0
	for i := 0; i < r.filled; i++ {
		sum += r.buffer[(r.head-1-i+2*len(r.buffer))%len(r.buffer)]
	}

	return sum / float64(r.filled)
}

func (r *bufImpl) Clear() {
	for i := 0; i < len(r.buffer); i++ {
		r.buffer[i] = 0
	}

	r.head = 0
	r.filled = 0
}
