// Package compare measures how similar two screenshots are and where they
// differ.
//
// The score is the mean structural similarity (SSIM) of the two luminance
// planes. Changed regions are the outer contours of the pixels whose local
// similarity drops to half or less, ignoring specks of 50 px² or smaller.
//
// Comparison is symmetric for equally sized inputs. Inputs of different
// sizes are compared in the first image's coordinates.
package compare
