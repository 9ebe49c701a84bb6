// Package command exposes checkout mutations as go-command commanders.
package command
