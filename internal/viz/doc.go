// Package viz renders runs in the terminal.
//
//   - [RenderSummary]: lipgloss table of a finished run
//   - [PlotFieldProfile], [PlotSeries]: asciigraph line plots
//   - [LiveModel]: Bubble Tea program stepping a batch and drawing the
//     tracks on a braille [Canvas], in a side view or a rotating 3D view
//   - [PresetMenu]: picks a preset before a live run
//
// # Key Bindings
//
//	Space - Pause/Resume stepping
//	S     - Single step while paused
//	V     - Toggle side and 3D views
//	X/Y   - Rotate the 3D view
//	+/-   - Zoom
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
