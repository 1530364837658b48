// Package scene describes a show: visual objects, the recurring tasks attached
// to them, and the panels (frame windows) that decide when objects are drawn.
//
// A scene is built once, frozen with Freeze, and then only queried:
//   - Scene.Load tells the loop which objects to draw for a frame
//   - Task.Claim tells the task runner whether a task fires on a frame
//
// All time is expressed in frames of the scene's refresh rate; the seconds
// accepted by the builder API are converted (rounded) at configuration time.
package scene
