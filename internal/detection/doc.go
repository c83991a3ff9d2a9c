// Package detection finds user-interface regions in screenshots with
// geometric heuristics only.
//
// Detect runs the whole pipeline: edge map, outer contours, area filter,
// classification, confidence scoring and overlap merging. The pieces are
// exported for callers that need one stage:
//
//   - FindContours: outermost contours of any binary mask (also used by
//     the compare package on thresholded difference maps)
//   - Classify: label a box with a Profile's ordered rules
//   - Confidence: the rectangularity × relative-area score
//   - Merge: greedy same-label overlap merging
//
// # Classifier Profiles
//
// ProfileDesktop (default) labels taskbar, titlebar, window, icon, button
// and ui_element. ProfilePanels labels window, menubar, sidebar, icon,
// button and ui_element. Rules are evaluated in a fixed order and the
// first match wins.
//
// # Coordinate System
//
// Boxes are {X, Y, Width, Height} with (0, 0) at the top-left pixel.
//
// # Concurrency
//
// Every function works on buffers it allocates itself. Calls on different
// goroutines need no coordination.
package detection
