// Package query exposes checkout reads as go-command queriers.
package query
