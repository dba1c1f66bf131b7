// Package generation defines the boundary between the trail pipeline and the
// external content generation provider. The application core depends only on
// the interfaces here; concrete providers live behind them.
package generation
