package mux

// ContentSize converts an outer pane size in cells to the terminal area
// inside a one-cell border.
func ContentSize(paneWidth, paneHeight int) (cols, rows int) {
	return max(paneWidth-2, 0), max(paneHeight-2, 0)
}

// ObserveGeometry records the terminal pane's content size and fits the
// visible widget to it. Every observation re-fits and, when the connection
// is open, sends a resize frame, even if nothing changed.
func (w *Workspace) ObserveGeometry(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	w.cols, w.rows = cols, rows
	if inst := w.ActiveInstance(); inst != nil {
		w.fit(inst)
	}
}

// Geometry returns the last observed content size, zero before the first
// observation.
func (w *Workspace) Geometry() (cols, rows int) { return w.cols, w.rows }

func (w *Workspace) fit(inst *Instance) {
	if w.cols == 0 || w.rows == 0 || !inst.Widget.Visible() {
		return
	}
	inst.Widget.Fit(w.cols, w.rows)
}
