// Package render is the render collaborator: it turns a finished run into
// output for a person to read.
//
// Text produces ASCII plain text wrapped at 90 columns, suitable for saving
// next to the question. Terminal produces a styled view of the answer and
// its pipeline trace. Both clip trace fields at 400 characters.
package render
