// Package imaging holds the pixel-level building blocks of the UI region
// engine and the image helpers its callers use.
//
// # Engine primitives
//
//   - Image: an immutable, interleaved 8-bit buffer with 1, 3 or 4 channels
//   - Normalize: canonical 3-channel RGB form, with an AlphaMode for RGBA input
//   - Luminance, GaussianBlur, Canny, Dilate: the edge-map stages
//   - Resize: bilinear rescaling used to align screenshots before comparison
//
// These functions never touch the file system and never modify their
// inputs. Each allocates its own output.
//
// # Collaborator helpers
//
//   - ImageCache and DecodeBase64: acquiring screenshots from disk, base64 or
//     data URLs
//   - EdgeMap, Annotate, CropRegion: PNG renderings returned as base64
//
// # Coordinate System
//
// (0,0) is the top-left pixel, X increases rightward and Y downward.
// Rectangles are reported as {X, Y, Width, Height}.
package imaging
