// Package pixel implements the colors and images behind the pixel
// formats a screen driver can report.
//
// The package provides additional color models, compatible with Go's
// native [color.Color] and [image.Image] / [draw.Image] interfaces.
// Images are thin views over a byte buffer in the driver's wire layout,
// so a granted frame buffer can be wrapped and drawn on in place.
package pixel
