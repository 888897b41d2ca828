// Package parse extracts structured publication records from Google
// Scholar profile listings and citation detail pages. It works on raw
// HTML and never touches the network, so every fetch tier shares one
// parser.
package parse
