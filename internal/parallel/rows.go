package parallel

import "image"

// MinBandRows is the smallest band Rows hands to a worker. Smaller bands
// cost more in scheduling than they save.
const MinBandRows = 16

// Rows calls fn for horizontal bands [y0, y1) covering r and waits for all
// of them. Bands never overlap, so fn may write its rows without locking.
// A nil pool, or a rectangle too short to split, runs fn once inline.
func (p *WorkerPool) Rows(r image.Rectangle, fn func(y0, y1 int)) {
	h := r.Dy()
	if h <= 0 {
		return
	}
	if p == nil || p.workers < 2 || h < 2*MinBandRows {
		fn(r.Min.Y, r.Max.Y)
		return
	}

	band := max(MinBandRows, (h+p.workers*4-1)/(p.workers*4))
	work := make([]func(), 0, (h+band-1)/band)
	for y := r.Min.Y; y < r.Max.Y; y += band {
		y0, y1 := y, min(y+band, r.Max.Y)
		work = append(work, func() { fn(y0, y1) })
	}
	p.ExecuteAll(work)
}
